package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/joshuarp/branchdesk/internal/shared/config"
)

type resourcesIn struct {
	fx.In

	Config   config.ConfigProvider
	Logger   *slog.Logger
	Postgres *postgresPool `optional:"true"`
	Redis    *redis.Client `optional:"true"`
}

func registerResourceLifecycle(lifecycle fx.Lifecycle, in resourcesIn) {
	lifecycle.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			in.Config.StopWatching()

			var shutdownErrors []error
			if in.Postgres != nil {
				if err := in.Postgres.Close(); err != nil {
					shutdownErrors = append(shutdownErrors, err)
				}
			}
			if in.Redis != nil {
				if err := in.Redis.Close(); err != nil {
					shutdownErrors = append(shutdownErrors, err)
				}
			}

			if len(shutdownErrors) > 0 {
				return errors.Join(shutdownErrors...)
			}

			in.Logger.Info("shutdown completed")
			return nil
		},
	})
}

func registerServerLifecycle(
	lifecycle fx.Lifecycle,
	app *fiber.App,
	cfg config.ConfigProvider,
	logger *slog.Logger,
) {
	port := cfg.GetInt("mockapi.port")
	if port == 0 {
		port = 8080
	}
	address := fmt.Sprintf(":%d", port)
	var serveErrCh chan error

	lifecycle.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			listener, err := net.Listen("tcp", address)
			if err != nil {
				return fmt.Errorf("app: failed to bind server address %s: %w", address, err)
			}

			serveErrCh = make(chan error, 1)
			go func() {
				err := app.Listener(listener, fiber.ListenConfig{DisableStartupMessage: true})
				if err != nil && !errors.Is(err, net.ErrClosed) {
					logger.Error("fiber server stopped unexpectedly", "error", err)
				}
				serveErrCh <- err
			}()

			logger.Info("fiber server started", "address", address)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var shutdownErrors []error

			if err := app.ShutdownWithContext(ctx); err != nil {
				shutdownErrors = append(shutdownErrors, err)
			}

			if serveErrCh != nil {
				select {
				case err := <-serveErrCh:
					if err != nil && !errors.Is(err, net.ErrClosed) {
						shutdownErrors = append(shutdownErrors, err)
					}
				case <-ctx.Done():
					shutdownErrors = append(shutdownErrors, ctx.Err())
				}
			}

			if len(shutdownErrors) > 0 {
				return errors.Join(shutdownErrors...)
			}

			logger.Info("fiber server shutdown completed")
			return nil
		},
	})
}
