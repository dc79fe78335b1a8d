package app

import (
	"fmt"
	"strings"

	"go.uber.org/fx"

	"github.com/joshuarp/branchdesk/internal/shared/config"
	"github.com/joshuarp/branchdesk/internal/shared/events"
	"github.com/joshuarp/branchdesk/internal/shared/i18n"
	sharedlog "github.com/joshuarp/branchdesk/internal/shared/log"
	"github.com/joshuarp/branchdesk/internal/shared/uid"
)

const (
	BinWatch   = "watch"
	BinMockAPI = "mockapi"
	BinAll     = "all"
)

const envPrefix = "BRANCHDESK"

type configBinIn struct {
	fx.In
	Bin string `name:"bin"`
}

func New(bin string, modules ...fx.Option) *fx.App {
	return fx.New(Options(bin, modules...))
}

// Options is the full option set behind New, exposed for fx.ValidateApp.
func Options(bin string, modules ...fx.Option) fx.Option {
	normalizedBin := NormalizeBin(bin)
	opts := []fx.Option{
		fx.Supply(
			fx.Annotate(
				normalizedBin,
				fx.ResultTags(`name:"bin"`),
			),
		),
		CoreModule(),
	}
	opts = append(opts, modules...)
	opts = append(opts, fx.Invoke(registerResourceLifecycle))
	return fx.Options(opts...)
}

// NormalizeBin maps the -bin flag onto BinWatch, BinMockAPI or BinAll.
func NormalizeBin(bin string) string {
	switch normalized := strings.TrimSpace(strings.ToLower(bin)); normalized {
	case BinWatch, "client", "watcher":
		return BinWatch
	case BinMockAPI, "mock", "stub":
		return BinMockAPI
	default:
		return BinAll
	}
}

func CoreModule() fx.Option {
	return fx.Module("core",
		fx.Provide(
			provideConfig,
			sharedlog.NewJSONLogger,
			provideRedisClient,
			providePostgresPool,
			provideDictionary,
			provideRequestIDGenerator,
			events.NewBus,
		),
	)
}

func provideConfig(in configBinIn) (config.ConfigProvider, error) {
	bin := NormalizeBin(in.Bin)

	loadOrder := make([]config.Options, 0, 4)
	if bin != BinAll {
		loadOrder = append(loadOrder,
			config.Options{
				YAMLPath:  fmt.Sprintf("config.%s.yaml", bin),
				EnvPath:   fmt.Sprintf(".env.%s", bin),
				EnvPrefix: envPrefix,
			},
			config.Options{
				YAMLPath:  fmt.Sprintf("config.%s.yaml.example", bin),
				EnvPath:   fmt.Sprintf(".env.%s.example", bin),
				EnvPrefix: envPrefix,
			},
		)
	}

	loadOrder = append(loadOrder,
		config.Options{
			YAMLPath:  "config.yaml",
			EnvPath:   ".env",
			EnvPrefix: envPrefix,
		},
		config.Options{
			YAMLPath:     "config.yaml.example",
			EnvPath:      ".env.example",
			EnvPrefix:    envPrefix,
			AllowMissing: true,
		},
	)

	var lastErr error
	for _, opts := range loadOrder {
		provider, err := config.Init(opts)
		if err == nil {
			provider.WatchChanges()
			return provider, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

func provideDictionary(cfg config.ConfigProvider) (*i18n.Dictionary, error) {
	dict, err := i18n.Load(cfg.GetString("errors.locale"))
	if err != nil {
		return nil, fmt.Errorf("app: failed to load locale dictionary: %w", err)
	}
	return dict, nil
}

func provideRequestIDGenerator(cfg config.ConfigProvider) (uid.UIDGenerator, error) {
	generator, err := uid.New(uid.Options{
		Strategy: uid.Strategy(cfg.GetString("request_id.strategy")),
		NodeID:   int64(cfg.GetInt("request_id.node_id")),
	})
	if err != nil {
		return nil, fmt.Errorf("app: failed to init request id generator: %w", err)
	}
	return generator, nil
}
