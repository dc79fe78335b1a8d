package jwt

import (
	"context"
	"fmt"
	"time"
)

// Strategy defines which signing algorithm family to use.
type Strategy string

const (
	StrategyHMAC Strategy = "hmac"
)

// Options configures the token manager.
type Options struct {
	Strategy Strategy

	// Secret is the shared key for HMAC-based strategies. Must be at least 32 bytes.
	Secret []byte

	// Algorithm: "HS256" (default), "HS384", "HS512".
	Algorithm string

	Issuer string
	TTL    time.Duration
}

// Claims are the staff session claims carried in admin tokens.
type Claims struct {
	// Subject is the staff user ID.
	Subject string

	// BranchID scopes the session to a single restaurant branch.
	BranchID string

	// Role is "manager" or "staff".
	Role string

	Issuer    string
	ExpiresAt time.Time
	IssuedAt  time.Time
	ID        string
}

// Expired reports whether the claims carry an expiry at or before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type Signer interface {
	Sign(ctx context.Context, claims Claims) (string, error)
}

type Verifier interface {
	Verify(ctx context.Context, tokenString string) (*Claims, error)
}

// TokenManager combines signing and verification capabilities.
// Implementations must be safe for concurrent use.
type TokenManager interface {
	Signer
	Verifier
}

func New(opts Options) (TokenManager, error) {
	switch opts.Strategy {
	case StrategyHMAC:
		return NewHMAC(opts)
	default:
		return nil, fmt.Errorf("jwt: unknown strategy %q", opts.Strategy)
	}
}
