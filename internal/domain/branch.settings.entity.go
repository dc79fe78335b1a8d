package domain

import "time"

type BranchSettings struct {
	BranchID  string           `json:"branch_id"`
	Name      string           `json:"name"`
	Open      bool             `json:"open"`
	Delivery  DeliverySettings `json:"delivery"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type DeliverySettings struct {
	Enabled          bool    `json:"enabled"`
	RadiusKm         float64 `json:"radius_km"`
	FeeMinor         int64   `json:"fee_minor"`
	MinOrderMinor    int64   `json:"min_order_minor"`
	EstimatedMinutes int     `json:"estimated_minutes"`
}
