package app

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/joshuarp/branchdesk/internal/shared/config"
)

// provideRedisClient builds a lazily connecting client; nothing dials until
// the redis cache driver or the redis seen store issues a command.
func provideRedisClient(cfg config.ConfigProvider) *redis.Client {
	host := strings.TrimSpace(cfg.GetString("redis.host"))
	if host == "" {
		host = "localhost"
	}

	port := cfg.GetInt("redis.port")
	if port == 0 {
		port = 6379
	}

	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: cfg.GetString("redis.password"),
		DB:       cfg.GetInt("redis.db"),
	})
}
