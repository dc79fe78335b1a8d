package domain

import "time"

type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderAccepted OrderStatus = "accepted"
	OrderRejected OrderStatus = "rejected"
)

type Order struct {
	ID           string      `json:"id"`
	BranchID     string      `json:"branch_id"`
	Number       string      `json:"number"`
	Status       OrderStatus `json:"status"`
	CustomerName string      `json:"customer_name"`
	Items        []OrderItem `json:"items"`
	TotalMinor   int64       `json:"total_minor"`
	Currency     string      `json:"currency"`
	PrepMinutes  int         `json:"prep_minutes,omitempty"`
	RejectReason string      `json:"reject_reason,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceMinor int64  `json:"price_minor"`
	Notes      string `json:"notes,omitempty"`
}

// Pending orders are the only ones staff can still accept or reject.
func (o Order) Pending() bool {
	return o.Status == OrderPending
}
