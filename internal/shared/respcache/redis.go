package respcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares cached reads between the branch's terminals. Expiry is delegated
// to Redis key TTLs, so Sweep has nothing to do.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ Cache = (*Redis)(nil)

func NewRedis(client *redis.Client, ttl time.Duration, prefix string) *Redis {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "branchdesk:respcache"
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, r.storageKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("respcache: redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		_ = r.client.Del(ctx, r.storageKey(key)).Err()
		return Entry{}, false, nil
	}
	if time.Since(entry.StoredAt) > r.ttl {
		_ = r.client.Del(ctx, r.storageKey(key)).Err()
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, body []byte) error {
	raw, err := json.Marshal(Entry{Body: body, StoredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("respcache: failed to encode entry: %w", err)
	}
	if err := r.client.Set(ctx, r.storageKey(key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("respcache: redis set failed: %w", err)
	}
	return nil
}

func (r *Redis) storageKey(key string) string {
	return r.prefix + ":" + key
}

func (r *Redis) Sweep(context.Context) (int, error) {
	return 0, nil
}
