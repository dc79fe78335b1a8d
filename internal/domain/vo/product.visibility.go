package vo

import "github.com/joshuarp/branchdesk/internal/domain"

type ProductList struct {
	Products []domain.Product `json:"products"`
}

type ProductVisibility struct {
	Visible bool `json:"visible"`
}
