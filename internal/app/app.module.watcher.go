package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/joshuarp/branchdesk/internal/repository"
	"github.com/joshuarp/branchdesk/internal/services"
	"github.com/joshuarp/branchdesk/internal/shared/config"
	"github.com/joshuarp/branchdesk/internal/shared/events"
	"github.com/joshuarp/branchdesk/internal/shared/i18n"
	"github.com/joshuarp/branchdesk/internal/watcher"
)

// WatcherModule signs staff in when needed and polls for new orders.
// It expects ClientModule.
func WatcherModule() fx.Option {
	return fx.Module("watcher",
		fx.Invoke(registerWatcher),
	)
}

type watcherIn struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.ConfigProvider
	Logger    *slog.Logger
	Bus       events.Bus
	Dict      *i18n.Dictionary
	Auth      *services.AuthService
	Orders    *services.OrderService
	Redis     *redis.Client `optional:"true"`
	Postgres  *postgresPool `optional:"true"`
}

func registerWatcher(in watcherIn) {
	var (
		w      *watcher.Watcher
		cancel context.CancelFunc
	)

	in.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			branchID := ensureSignedIn(ctx, in)

			seen, err := openSeenStore(ctx, in, branchID)
			if err != nil {
				return err
			}

			w, err = watcher.New(watcher.Options{
				Orders:    in.Orders,
				Seen:      seen,
				Bus:       in.Bus,
				Formatter: in.Dict,
				Interval:  in.Config.GetDuration("watcher.interval"),
				Logger:    in.Logger.With("branch_id", branchID),
			})
			if err != nil {
				return err
			}

			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			w.Start(runCtx)
			in.Logger.Info("order watcher started", "branch_id", branchID, "store", in.Config.GetString("watcher.store"))
			return nil
		},
		OnStop: func(context.Context) error {
			if w != nil {
				w.Stop()
			}
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

// ensureSignedIn logs in with auth.email/auth.password when no unexpired token
// is stored, and returns the branch the session belongs to. watcher.branch_id
// wins when set. A failed login is already reported by the client; the
// watcher still starts and its polls surface the session state.
func ensureSignedIn(ctx context.Context, in watcherIn) string {
	expiresAt, ok, err := in.Auth.TokenExpiry(ctx)
	if err != nil {
		in.Logger.Warn("stored session unreadable", "error", err)
	}

	if !ok || !time.Now().Before(expiresAt) {
		email := strings.TrimSpace(in.Config.GetString("auth.email"))
		if email != "" {
			if _, err := in.Auth.Login(ctx, email, in.Config.GetString("auth.password")); err != nil {
				in.Logger.Warn("automatic login failed", "email", email, "error", err)
			}
		}
	}

	if branchID := strings.TrimSpace(in.Config.GetString("watcher.branch_id")); branchID != "" {
		return branchID
	}
	staff, ok, err := in.Auth.CurrentStaff(ctx)
	if err != nil {
		in.Logger.Warn("stored staff record unreadable", "error", err)
	}
	if ok && staff.BranchID != "" {
		return staff.BranchID
	}
	return "default"
}

func openSeenStore(ctx context.Context, in watcherIn, branchID string) (watcher.SeenStore, error) {
	switch store := strings.ToLower(strings.TrimSpace(in.Config.GetString("watcher.store"))); store {
	case "", "memory":
		return watcher.NewMemorySeenStore(), nil
	case "redis":
		if in.Redis == nil {
			return nil, fmt.Errorf("app: redis client is required for watcher.store %q", store)
		}
		return repository.NewSeenOrdersRedisRepository(in.Redis, branchID, in.Config.GetDuration("watcher.retention")), nil
	case "postgres":
		if in.Postgres == nil {
			return nil, fmt.Errorf("app: postgres is required for watcher.store %q", store)
		}
		db, err := in.Postgres.DB()
		if err != nil {
			return nil, err
		}
		repo := repository.NewSeenOrdersRepository(db, branchID)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		if retention := in.Config.GetDuration("watcher.retention"); retention > 0 {
			if pruned, err := repo.Prune(ctx, retention); err != nil {
				in.Logger.Warn("failed to prune seen orders", "error", err)
			} else if pruned > 0 {
				in.Logger.Info("pruned seen orders", "removed", pruned)
			}
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("app: unknown watcher.store %q", store)
	}
}
