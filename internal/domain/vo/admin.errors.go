package vo

import "errors"

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrOrderNotFound = errors.New("order not found")
var ErrProductNotFound = errors.New("product not found")
var ErrOrderAlreadyDecided = errors.New("order already decided")
var ErrInvalidPrepTime = errors.New("invalid prep time")
var ErrMissingRejectReason = errors.New("reject reason is required")
var ErrInvalidDelivery = errors.New("invalid delivery settings")
var ErrBranchTemporarilyClosed = errors.New("branch is temporarily closed")
var ErrForeignBranch = errors.New("resource belongs to another branch")

// Machine-readable codes carried next to "error" in backend responses.
const (
	CodeBranchTemporarilyClosed = "branch_temporarily_closed"
	CodeOrderAlreadyDecided     = "order_already_decided"
	CodeInternal                = "internal_error"
)
