package vo

type BranchStatus struct {
	Open bool `json:"open"`
}
