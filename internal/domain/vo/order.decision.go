package vo

import "github.com/joshuarp/branchdesk/internal/domain"

type OrderList struct {
	Orders []domain.Order `json:"orders"`
}

type AcceptOrder struct {
	PrepMinutes int `json:"prep_minutes"`
}

type RejectOrder struct {
	Reason string `json:"reason"`
}

// MaxPrepMinutes bounds the preparation time staff can promise.
const MaxPrepMinutes = 180
