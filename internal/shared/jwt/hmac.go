package jwt

import (
	"context"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var _ TokenManager = (*hmacManager)(nil)

type staffClaims struct {
	BranchID string `json:"branch_id,omitempty"`
	Role     string `json:"role,omitempty"`
	jwtlib.RegisteredClaims
}

type hmacManager struct {
	secret []byte
	method jwtlib.SigningMethod
	issuer string
	ttl    time.Duration
}

func NewHMAC(opts Options) (TokenManager, error) {
	if len(opts.Secret) < 32 {
		return nil, fmt.Errorf("jwt: HMAC secret must be at least 32 bytes, got %d", len(opts.Secret))
	}

	method, err := resolveHMACMethod(opts.Algorithm)
	if err != nil {
		return nil, err
	}

	return &hmacManager{
		secret: opts.Secret,
		method: method,
		issuer: opts.Issuer,
		ttl:    opts.TTL,
	}, nil
}

func resolveHMACMethod(alg string) (jwtlib.SigningMethod, error) {
	switch alg {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("jwt: unsupported HMAC algorithm %q", alg)
	}
}

func (m *hmacManager) Sign(_ context.Context, claims Claims) (string, error) {
	now := time.Now()

	sc := staffClaims{
		BranchID: claims.BranchID,
		Role:     claims.Role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:  claims.Subject,
			ID:       claims.ID,
			Issuer:   m.issuer,
			IssuedAt: jwtlib.NewNumericDate(now),
		},
	}
	if claims.Issuer != "" {
		sc.Issuer = claims.Issuer
	}
	if !claims.IssuedAt.IsZero() {
		sc.IssuedAt = jwtlib.NewNumericDate(claims.IssuedAt)
	}
	if !claims.ExpiresAt.IsZero() {
		sc.ExpiresAt = jwtlib.NewNumericDate(claims.ExpiresAt)
	} else if m.ttl > 0 {
		sc.ExpiresAt = jwtlib.NewNumericDate(now.Add(m.ttl))
	}

	signed, err := jwtlib.NewWithClaims(m.method, sc).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *hmacManager) Verify(_ context.Context, tokenString string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(
		tokenString,
		&staffClaims{},
		func(token *jwtlib.Token) (any, error) {
			if token.Method.Alg() != m.method.Alg() {
				return nil, fmt.Errorf("jwt: unexpected signing method %q", token.Method.Alg())
			}
			return m.secret, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("jwt: token validation failed: %w", err)
	}

	sc, ok := token.Claims.(*staffClaims)
	if !ok {
		return nil, fmt.Errorf("jwt: unexpected claims type")
	}

	return sc.toClaims(), nil
}

// ParseUnverified decodes claims without checking the signature. The client
// uses it to read the expiry of its own stored token; it must never be used
// for authorization decisions.
func ParseUnverified(tokenString string) (*Claims, error) {
	sc := &staffClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(tokenString, sc); err != nil {
		return nil, fmt.Errorf("jwt: failed to decode token: %w", err)
	}
	return sc.toClaims(), nil
}

func (sc *staffClaims) toClaims() *Claims {
	c := &Claims{
		Subject:  sc.Subject,
		BranchID: sc.BranchID,
		Role:     sc.Role,
		Issuer:   sc.Issuer,
		ID:       sc.ID,
	}
	if sc.ExpiresAt != nil {
		c.ExpiresAt = sc.ExpiresAt.Time
	}
	if sc.IssuedAt != nil {
		c.IssuedAt = sc.IssuedAt.Time
	}
	return c
}
