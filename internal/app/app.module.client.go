package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/joshuarp/branchdesk/internal/apiclient"
	"github.com/joshuarp/branchdesk/internal/services"
	"github.com/joshuarp/branchdesk/internal/shared/config"
	"github.com/joshuarp/branchdesk/internal/shared/connectivity"
	"github.com/joshuarp/branchdesk/internal/shared/events"
	"github.com/joshuarp/branchdesk/internal/shared/i18n"
	"github.com/joshuarp/branchdesk/internal/shared/respcache"
	"github.com/joshuarp/branchdesk/internal/shared/securestore"
	"github.com/joshuarp/branchdesk/internal/shared/uid"
)

// ClientModule wires the resilient API client and the admin services on top of it.
func ClientModule() fx.Option {
	return fx.Module("client",
		fx.Provide(
			apiclient.NewSession,
			provideCredentialStore,
			provideConnectivityProbe,
			provideResponseCache,
			provideClassifier,
			provideNotifier,
			fx.Annotate(
				provideAPIClient,
				fx.As(fx.Self()),
				fx.As(new(services.APIClient)),
			),
			services.NewAuthService,
			services.NewOrderService,
			services.NewProductService,
			services.NewBranchService,
		),
		fx.Invoke(
			registerPolicyReload,
			registerCacheSweeper,
			registerSessionExpiry,
			registerConsoleToasts,
		),
	)
}

func provideCredentialStore(cfg config.ConfigProvider) (securestore.Store, error) {
	store, err := securestore.NewFile(cfg.GetString("storage.path"), cfg.GetString("storage.passphrase"))
	if err != nil {
		return nil, fmt.Errorf("app: failed to open credential store: %w", err)
	}
	return store, nil
}

func provideConnectivityProbe(cfg config.ConfigProvider) connectivity.Probe {
	return connectivity.NewHTTPProbe(connectivity.Options{
		URL:     cfg.GetString("connectivity.probe_url"),
		Timeout: cfg.GetDuration("connectivity.timeout"),
	})
}

type responseCacheIn struct {
	fx.In

	Config config.ConfigProvider
	Redis  *redis.Client `optional:"true"`
}

func provideResponseCache(in responseCacheIn) (respcache.Cache, error) {
	cache, err := respcache.New(respcache.Options{
		Driver: respcache.Driver(strings.ToLower(strings.TrimSpace(in.Config.GetString("cache.driver")))),
		TTL:    in.Config.GetDuration("cache.ttl"),
		Redis:  in.Redis,
		Prefix: "branchdesk:respcache",
	})
	if err != nil {
		return nil, fmt.Errorf("app: failed to init response cache: %w", err)
	}
	return cache, nil
}

// policyFromConfig builds the visibility policy named by errors.visibility,
// extended with errors.noise_patterns.
func policyFromConfig(cfg config.ConfigProvider) (apiclient.Policy, error) {
	allow := apiclient.BaseAllowList()
	switch visibility := strings.ToLower(strings.TrimSpace(cfg.GetString("errors.visibility"))); visibility {
	case "", "base":
	case "extended":
		allow = apiclient.ExtendedAllowList()
	default:
		return apiclient.Policy{}, fmt.Errorf("app: unknown errors.visibility %q", visibility)
	}

	noise := append([]string{}, apiclient.DefaultNoisePatterns...)
	noise = append(noise, cfg.GetStringSlice("errors.noise_patterns")...)
	return apiclient.NewPolicy(allow, noise)
}

func provideClassifier(cfg config.ConfigProvider, dict *i18n.Dictionary) (*apiclient.Classifier, error) {
	policy, err := policyFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	var tunnels []string
	if extra := cfg.GetStringSlice("errors.tunnel_patterns"); len(extra) > 0 {
		tunnels = append(append(tunnels, apiclient.DefaultTunnelPatterns...), extra...)
	}

	return apiclient.NewClassifier(apiclient.ClassifierOptions{
		Policy:         policy,
		Translator:     dict,
		TunnelPatterns: tunnels,
	})
}

func provideNotifier(logger *slog.Logger, session *apiclient.Session, bus events.Bus, dict *i18n.Dictionary) *apiclient.Notifier {
	return apiclient.NewNotifier(apiclient.NotifierOptions{
		Logger:     logger,
		Session:    session,
		Bus:        bus,
		Translator: dict,
	})
}

type apiClientIn struct {
	fx.In

	Config      config.ConfigProvider
	Logger      *slog.Logger
	Credentials securestore.Store
	Probe       connectivity.Probe
	Cache       respcache.Cache
	Bus         events.Bus
	Classifier  *apiclient.Classifier
	Notifier    *apiclient.Notifier
	RequestIDs  uid.UIDGenerator
}

func provideAPIClient(in apiClientIn) (*apiclient.Client, error) {
	return apiclient.New(apiclient.Options{
		BaseURL: apiBaseURL(in.Config),
		Timeout: in.Config.GetDuration("api.timeout"),
		Retry: apiclient.RetryPolicy{
			MaxRetries:     in.Config.GetInt("retry.max_retries"),
			BaseDelay:      in.Config.GetDuration("retry.base_delay"),
			TimeoutFactor:  in.Config.GetFloat64("retry.timeout_factor"),
			OfflinePenalty: in.Config.GetInt("retry.offline_penalty"),
		},
		Credentials: in.Credentials,
		Probe:       in.Probe,
		Cache:       in.Cache,
		Bus:         in.Bus,
		Classifier:  in.Classifier,
		Notifier:    in.Notifier,
		RequestIDs:  in.RequestIDs,
		Logger:      in.Logger,
	})
}

// apiBaseURL is {scheme}://{domain}{base_path}. Without a domain the client
// targets the local stub backend.
func apiBaseURL(cfg config.ConfigProvider) string {
	basePath := cfg.GetString("api.base_path")
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	domain := strings.TrimSpace(cfg.GetString("api.domain"))
	if domain == "" {
		port := cfg.GetInt("mockapi.port")
		if port == 0 {
			port = 8080
		}
		return (&url.URL{Scheme: "http", Host: fmt.Sprintf("127.0.0.1:%d", port), Path: basePath}).String()
	}

	scheme := cfg.GetString("api.scheme")
	if scheme == "" {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: domain, Path: basePath}).String()
}

func registerPolicyReload(cfg config.ConfigProvider, classifier *apiclient.Classifier, logger *slog.Logger) {
	cfg.OnChange(func() {
		policy, err := policyFromConfig(cfg)
		if err != nil {
			logger.Error("config reload rejected", "error", err)
			return
		}
		classifier.SetPolicy(policy)
		logger.Info("error visibility policy reloaded", "visibility", cfg.GetString("errors.visibility"))
	})
}

// registerCacheSweeper drives the periodic sweep of the in-process cache.
// The redis driver expires keys on its own.
func registerCacheSweeper(lifecycle fx.Lifecycle, cache respcache.Cache) {
	memory, ok := cache.(*respcache.Memory)
	if !ok {
		return
	}

	var cancel context.CancelFunc
	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			memory.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			memory.Stop()
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

// registerSessionExpiry turns the client's session teardown signal into a
// single SESSION_EXPIRED notice for staff. Errors stay quiet until the next login.
func registerSessionExpiry(lifecycle fx.Lifecycle, bus events.Bus, client *apiclient.Client, session *apiclient.Session) {
	var unsubscribe func()
	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			unsubscribe = bus.Subscribe(events.TopicSessionExpired, func(any) {
				if session.LoggedOut() {
					return
				}
				client.Notify(context.Background(), apiclient.KindSessionExpired, "")
				session.MarkLoggedOut()
			})
			return nil
		},
		OnStop: func(context.Context) error {
			if unsubscribe != nil {
				unsubscribe()
			}
			return nil
		},
	})
}

// registerConsoleToasts is the terminal's toast renderer: every toast becomes
// one structured log line.
func registerConsoleToasts(lifecycle fx.Lifecycle, bus events.Bus, logger *slog.Logger) {
	var unsubscribe func()
	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			unsubscribe = bus.Subscribe(events.TopicShowToast, func(payload any) {
				toast, ok := payload.(events.Toast)
				if !ok {
					return
				}
				logger.Info("toast", "type", toast.Type, "title", toast.Title, "subtitle", toast.Subtitle)
			})
			return nil
		},
		OnStop: func(context.Context) error {
			if unsubscribe != nil {
				unsubscribe()
			}
			return nil
		},
	})
}
