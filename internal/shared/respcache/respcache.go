// Package respcache holds the last successful body of idempotent reads.
// It is a performance aid, never a consistency guarantee: an entry older than
// the TTL is not returned and is evicted.
package respcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 5 * time.Minute

// Driver selects the storage backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
)

type Entry struct {
	Body     []byte    `json:"body"`
	StoredAt time.Time `json:"stored_at"`
}

// Cache is the interface the API client depends on.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns a fresh entry. Stale entries are evicted and reported absent.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Set overwrites the entry for key wholesale.
	Set(ctx context.Context, key string, body []byte) error
	// Sweep evicts every stale entry and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

type Options struct {
	Driver Driver
	TTL    time.Duration

	// Redis is required for DriverRedis.
	Redis  *redis.Client
	Prefix string

	// Now overrides the clock (memory driver).
	Now func() time.Time
}

func New(opts Options) (Cache, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	switch opts.Driver {
	case DriverMemory, "":
		return NewMemory(opts.TTL, opts.Now), nil
	case DriverRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("respcache: redis client is required for driver %q", opts.Driver)
		}
		return NewRedis(opts.Redis, opts.TTL, opts.Prefix), nil
	default:
		return nil, fmt.Errorf("respcache: unknown driver %q", opts.Driver)
	}
}

// Key builds the cache key from the request URL and its query parameters.
// Params are serialized as JSON (map keys sorted), nil as "{}".
func Key(url string, params map[string]string) string {
	if len(params) == 0 {
		return url + "{}"
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return url + "{}"
	}
	return url + string(raw)
}
