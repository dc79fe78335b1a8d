package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSeenOrdersTTL = 24 * time.Hour

// SeenOrdersRedisRepository keeps the announced-order set in one Redis set per
// branch. The set expires when no order has been marked for a full TTL.
type SeenOrdersRedisRepository struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewSeenOrdersRedisRepository(client *redis.Client, branchID string, ttl time.Duration) *SeenOrdersRedisRepository {
	if ttl <= 0 {
		ttl = defaultSeenOrdersTTL
	}
	return &SeenOrdersRedisRepository{
		client: client,
		key:    "branchdesk:seen_orders:" + branchID,
		ttl:    ttl,
	}
}

func (r *SeenOrdersRedisRepository) Filter(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	flags, err := r.client.SMIsMember(ctx, r.key, members(ids)...).Result()
	if err != nil {
		return nil, fmt.Errorf("repository: redis SMISMEMBER failed: %w", err)
	}

	unseen := make([]string, 0, len(ids))
	for i, id := range ids {
		if i >= len(flags) || !flags[i] {
			unseen = append(unseen, id)
		}
	}
	return unseen, nil
}

func (r *SeenOrdersRedisRepository) Mark(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.key, members(ids)...)
	pipe.Expire(ctx, r.key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("repository: redis mark seen failed: %w", err)
	}
	return nil
}

func members(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
