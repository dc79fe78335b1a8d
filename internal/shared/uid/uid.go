// Package uid generates identifiers attached to outbound requests as
// X-Request-ID, so client log lines can be joined with backend logs.
package uid

import (
	"context"
	"fmt"
	"strings"
)

// Header carries the generated identifier on every outbound request.
const Header = "X-Request-ID"

// Strategy defines which UID generation algorithm to use.
type Strategy string

const (
	StrategySnowflake Strategy = "snowflake"
	StrategyUUIDv7    Strategy = "uuidv7"
)

// Options configures the UID generator.
type Options struct {
	Strategy Strategy

	// NodeID identifies this terminal among the branch's devices (Snowflake only).
	// Valid range: 0–1023.
	NodeID int64
}

// UIDGenerator is the interface consumers depend on for generating unique identifiers.
// Implementations must be safe for concurrent use.
type UIDGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// New creates a UIDGenerator. An empty strategy selects UUIDv7.
func New(opts Options) (UIDGenerator, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(string(opts.Strategy)))) {
	case StrategySnowflake:
		return NewSnowflake(opts.NodeID)
	case StrategyUUIDv7, "":
		return NewUUIDv7(), nil
	default:
		return nil, fmt.Errorf("uid: unknown strategy %q", opts.Strategy)
	}
}
