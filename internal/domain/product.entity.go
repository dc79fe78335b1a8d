package domain

import "time"

type Product struct {
	ID         string    `json:"id"`
	BranchID   string    `json:"branch_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	PriceMinor int64     `json:"price_minor"`
	Currency   string    `json:"currency"`
	Visible    bool      `json:"visible"`
	UpdatedAt  time.Time `json:"updated_at"`
}
