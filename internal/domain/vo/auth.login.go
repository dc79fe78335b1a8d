package vo

import (
	"time"

	"github.com/joshuarp/branchdesk/internal/domain"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLogin struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Staff       domain.Staff `json:"staff"`
}
