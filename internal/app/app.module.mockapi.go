package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"

	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/handlers"
	"github.com/joshuarp/branchdesk/internal/middlewares"
	"github.com/joshuarp/branchdesk/internal/mockapi"
	"github.com/joshuarp/branchdesk/internal/repository"
	"github.com/joshuarp/branchdesk/internal/shared/config"
	sharedhash "github.com/joshuarp/branchdesk/internal/shared/hash"
	sharedjwt "github.com/joshuarp/branchdesk/internal/shared/jwt"
	"github.com/joshuarp/branchdesk/internal/shared/uid"
)

// MockAPIModule serves the stub admin backend over fiber.
func MockAPIModule() fx.Option {
	return fx.Module("mockapi",
		fx.Provide(
			provideFiberApp,
			providePasswordHasher,
			provideJWTTokenManager,
			provideStaffDirectory,
			provideRouterGroups,
			fx.Annotate(
				provideBackend,
				fx.As(fx.Self()),
				fx.As(new(handlers.AuthLoginService)),
				fx.As(new(handlers.OrderQueueService)),
				fx.As(new(handlers.ProductCatalogService)),
				fx.As(new(handlers.BranchSettingsService)),
			),
			handlers.NewAuthLoginHandler,
			handlers.NewOrderQueueHandler,
			handlers.NewProductCatalogHandler,
			handlers.NewBranchSettingsHandler,
		),
		fx.Invoke(
			registerAdminRoutes,
			registerServerLifecycle,
			registerDemoFeed,
		),
	)
}

func provideFiberApp(cfg config.ConfigProvider) *fiber.App {
	readTimeout := cfg.GetDuration("server.read_timeout")
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}

	writeTimeout := cfg.GetDuration("server.write_timeout")
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	return fiber.New(fiber.Config{
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})
}

func providePasswordHasher(cfg config.ConfigProvider) (sharedhash.Hasher, error) {
	return sharedhash.NewBcrypt(cfg.GetInt("security.bcrypt_cost"))
}

func provideJWTTokenManager(cfg config.ConfigProvider) (sharedjwt.TokenManager, error) {
	secret := cfg.GetString("security.jwt.secret")
	if secret == "" {
		secret = "change-me-please-use-strong-secret-in-production"
	}

	if len(secret) < 32 {
		secret = secret + strings.Repeat("x", 32-len(secret))
	}

	ttl := cfg.GetDuration("security.jwt.ttl")
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	tokenManager, err := sharedjwt.New(sharedjwt.Options{
		Strategy:  sharedjwt.StrategyHMAC,
		Secret:    []byte(secret),
		Algorithm: "HS256",
		TTL:       ttl,
		Issuer:    cfg.GetString("security.jwt.issuer"),
	})
	if err != nil {
		return nil, fmt.Errorf("app: failed to init JWT manager: %w", err)
	}

	return tokenManager, nil
}

type staffDirectoryIn struct {
	fx.In

	Config   config.ConfigProvider
	Hasher   sharedhash.Hasher
	Postgres *postgresPool `optional:"true"`
}

// provideStaffDirectory reads staff from postgres, or builds the single demo
// account from mockapi.staff.*. A plaintext mockapi.staff.password is hashed
// at startup; mockapi.staff.password_hash is used as is.
func provideStaffDirectory(in staffDirectoryIn) (mockapi.StaffDirectory, error) {
	switch source := strings.ToLower(strings.TrimSpace(in.Config.GetString("mockapi.staff_source"))); source {
	case "postgres":
		if in.Postgres == nil {
			return nil, errors.New("app: postgres is required for mockapi.staff_source \"postgres\"")
		}
		db, err := in.Postgres.DB()
		if err != nil {
			return nil, err
		}
		return repository.NewStaffRepository(db), nil
	case "", "config":
		hash := in.Config.GetString("mockapi.staff.password_hash")
		if hash == "" {
			password := in.Config.GetString("mockapi.staff.password")
			if password == "" {
				return nil, errors.New("app: mockapi.staff.password or mockapi.staff.password_hash is required")
			}
			var err error
			hash, err = in.Hasher.Hash(context.Background(), password)
			if err != nil {
				return nil, err
			}
		}

		return mockapi.NewStaticStaff([]domain.Staff{{
			ID:           "staff-demo",
			Email:        in.Config.GetString("mockapi.staff.email"),
			Name:         in.Config.GetString("mockapi.staff.name"),
			BranchID:     in.Config.GetString("mockapi.branch_id"),
			Role:         in.Config.GetString("mockapi.staff.role"),
			PasswordHash: hash,
		}}), nil
	default:
		return nil, fmt.Errorf("app: unknown mockapi.staff_source %q", source)
	}
}

type backendIn struct {
	fx.In

	Config config.ConfigProvider
	Staff  mockapi.StaffDirectory
	Hasher sharedhash.Hasher
	Tokens sharedjwt.TokenManager
	IDs    uid.UIDGenerator
}

func provideBackend(in backendIn) (*mockapi.Backend, error) {
	backend, err := mockapi.New(mockapi.Options{
		Staff:    in.Staff,
		Hasher:   in.Hasher,
		Tokens:   in.Tokens,
		IDs:      in.IDs,
		TokenTTL: in.Config.GetDuration("security.jwt.ttl"),
	})
	if err != nil {
		return nil, err
	}

	backend.SeedBranch(domain.BranchSettings{
		BranchID: in.Config.GetString("mockapi.branch_id"),
		Name:     in.Config.GetString("mockapi.branch_name"),
		Open:     true,
	}, mockapi.DemoMenu(in.Config.GetString("mockapi.currency")))
	return backend, nil
}

type routerGroupsOut struct {
	fx.Out
	Public    fiber.Router `name:"api_public"`
	Protected fiber.Router `name:"api_protected"`
}

func provideRouterGroups(
	app *fiber.App,
	cfg config.ConfigProvider,
	logger *slog.Logger,
	tokenManager sharedjwt.TokenManager,
	ids uid.UIDGenerator,
) routerGroupsOut {
	app.Use(middlewares.NewHTTPRecoveryMiddleware(logger))
	app.Use(middlewares.NewHTTPRequestIDMiddleware(ids))
	app.Use(middlewares.NewHTTPCORSMiddleware(cfg.GetStringSlice("mockapi.cors_origins")))
	app.Use(middlewares.NewHTTPRequestResponseLogMiddleware(logger))

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	basePath := cfg.GetString("api.base_path")
	if basePath == "" {
		basePath = "/api/v1/admin"
	}
	api := app.Group(basePath)
	protected := api.Group("", middlewares.NewHTTPJWTMiddleware(tokenManager))

	return routerGroupsOut{
		Public:    api,
		Protected: protected,
	}
}

type adminRoutesIn struct {
	fx.In

	Public    fiber.Router `name:"api_public"`
	Protected fiber.Router `name:"api_protected"`
	Auth      *handlers.AuthLoginHandler
	Orders    *handlers.OrderQueueHandler
	Products  *handlers.ProductCatalogHandler
	Branch    *handlers.BranchSettingsHandler
}

func registerAdminRoutes(in adminRoutesIn) {
	in.Auth.Register(in.Public)
	in.Orders.Register(in.Protected)
	in.Products.Register(in.Protected)
	in.Branch.Register(in.Protected)
}

// registerDemoFeed keeps new pending orders arriving so the watcher has
// something to announce. A non-positive mockapi.feed_interval disables it.
func registerDemoFeed(lifecycle fx.Lifecycle, cfg config.ConfigProvider, backend *mockapi.Backend, logger *slog.Logger) {
	interval := cfg.GetDuration("mockapi.feed_interval")
	if interval <= 0 {
		return
	}

	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan struct{})
			go func() {
				defer close(done)
				backend.RunDemoFeed(ctx, cfg.GetString("mockapi.branch_id"), interval, logger)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
				<-done
			}
			return nil
		},
	})
}
