package config

import "time"

// Options configures the config loader.
type Options struct {
	// YAMLPath is the path to the primary YAML config file.
	YAMLPath string

	// EnvPath is the path to the fallback .env file, used only when YAML is absent.
	EnvPath string

	// EnvPrefix enables BRANCHDESK_API_DOMAIN style overrides for every key.
	// Empty disables environment overrides.
	EnvPrefix string

	// AllowMissing lets Init succeed with built-in defaults when neither file exists.
	AllowMissing bool
}

// ConfigProvider is the interface consumers depend on for reading configuration.
// Implementations must be safe for concurrent use.
type ConfigProvider interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetFloat64(key string) float64
	GetStringSlice(key string) []string
	GetStringMap(key string) map[string]interface{}
	IsSet(key string) bool
	AllSettings() map[string]interface{}

	// WatchChanges starts watching the config file for changes (YAML only).
	// Non-blocking: spawns a background goroutine.
	WatchChanges()

	// OnChange registers a callback that fires after a successful config reload.
	// Callbacks execute in registration order.
	OnChange(fn func())

	// StopWatching detaches all reload callbacks. Viper keeps its watcher
	// goroutine alive, but no further reloads are applied.
	StopWatching()

	// Source returns which config source is active: "yaml", "env" or "defaults".
	Source() string
}

// Defaults are applied before any file is read. Keys mirror config.yaml.example.
var Defaults = map[string]any{
	"api.scheme":    "https",
	"api.base_path": "/api/v1/admin",
	"api.timeout":   5 * time.Second,

	"retry.max_retries":     1,
	"retry.base_delay":      200 * time.Millisecond,
	"retry.timeout_factor":  1.5,
	"retry.offline_penalty": 5,

	"cache.driver": "memory",
	"cache.ttl":    5 * time.Minute,

	"errors.visibility": "base",
	"errors.locale":     "en",

	"storage.path": ".branchdesk/credentials.enc",

	"connectivity.timeout": 2 * time.Second,

	"request_id.strategy": "uuidv7",

	"watcher.interval":  15 * time.Second,
	"watcher.store":     "memory",
	"watcher.retention": 24 * time.Hour,

	"mockapi.port":          8080,
	"mockapi.branch_id":     "branch-demo",
	"mockapi.branch_name":   "Demo branch",
	"mockapi.currency":      "EGP",
	"mockapi.feed_interval": 45 * time.Second,
	"mockapi.staff_source":  "config",
	"mockapi.staff.email":   "manager@branchdesk.test",
	"mockapi.staff.name":    "Demo Manager",
	"mockapi.staff.role":    "manager",

	"security.jwt.ttl": 12 * time.Hour,

	"logging.level": "info",
}
