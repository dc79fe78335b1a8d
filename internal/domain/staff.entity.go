package domain

type Staff struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	BranchID     string `json:"branch_id"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
}
