package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/fusionn-seer/internal/status"
	"github.com/fusionn-seer/pkg/logger"
)

const envPrefix = "FUSIONN_SEER"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Overseerr OverseerrConfig `mapstructure:"overseerr"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Apprise   AppriseConfig   `mapstructure:"apprise"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port      int     `mapstructure:"port"`
	RateLimit float64 `mapstructure:"rate_limit"` // Requests per second per client IP (0 = unlimited)
	RateBurst int     `mapstructure:"rate_burst"`
}

type OverseerrConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	UserID            int     `mapstructure:"user_id"`             // Request as specific user (0 = API key owner)
	ServerID          int     `mapstructure:"server_id"`           // Target Sonarr server for requests (0 = Overseerr default)
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // Outbound throttle (0 = unlimited)
}

type SchedulerConfig struct {
	Cron       string `mapstructure:"cron"`
	DryRun     bool   `mapstructure:"dry_run"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

type TrackerConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Shows     []int    `mapstructure:"shows"`     // TMDB IDs to watch
	NotifyOn  []string `mapstructure:"notify_on"` // Aggregate statuses that trigger a notification (empty = any change)
	StateFile string   `mapstructure:"state_file"`
}

type CacheConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	Size        int           `mapstructure:"size"`
	Concurrency int           `mapstructure:"concurrency"` // Parallel Overseerr lookups for batch checks
}

type AppriseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"` // Apprise API URL (e.g., http://apprise:8000)
	Key     string `mapstructure:"key"`      // Apprise config key (default: apprise)
	Tag     string `mapstructure:"tag"`      // Tag to filter services (default: all)
}

type LogConfig struct {
	Path       string `mapstructure:"path"` // Directory for rotated log files (empty = stdout only)
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("overseerr.requests_per_second", 5)
	v.SetDefault("scheduler.cron", "*/30 * * * *")
	v.SetDefault("tracker.state_file", "data/tracker_state.json")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.concurrency", 4)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Overseerr.BaseURL == "" {
		errs = append(errs, errors.New("overseerr.base_url is required"))
	}
	if c.Overseerr.APIKey == "" {
		errs = append(errs, errors.New("overseerr.api_key is required"))
	}
	if c.Scheduler.Cron == "" {
		errs = append(errs, errors.New("scheduler.cron is required"))
	}
	if c.Apprise.Enabled && c.Apprise.BaseURL == "" {
		errs = append(errs, errors.New("apprise.base_url is required when apprise is enabled"))
	}
	for _, name := range c.Tracker.NotifyOn {
		if _, ok := status.ParseStatus(name); !ok {
			errs = append(errs, fmt.Errorf("tracker.notify_on: unknown status %q", name))
		}
	}

	return errors.Join(errs...)
}

// NotifyStatuses returns the configured notify_on set, or nil for "any change".
func (c TrackerConfig) NotifyStatuses() map[status.Status]bool {
	if len(c.NotifyOn) == 0 {
		return nil
	}
	set := make(map[status.Status]bool, len(c.NotifyOn))
	for _, name := range c.NotifyOn {
		if st, ok := status.ParseStatus(name); ok {
			set[st] = true
		}
	}
	return set
}

// ChangeCallback is called when config changes. Receives old and new config.
type ChangeCallback func(old, new *Config)

// Manager handles config loading and hot-reload.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	cfg       *Config
	callbacks []ChangeCallback
}

// NewManager creates a config manager with hot-reload support.
func NewManager(path string) (*Manager, error) {
	v, cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	m := &Manager{v: v, cfg: cfg}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Infof("🔄 Config file changed: %s", e.Name)
		m.reload()
	})
	v.WatchConfig()

	return m, nil
}

// NewStatic wraps an already loaded config in a Manager that never reloads.
func NewStatic(cfg *Config) *Manager {
	return &Manager{cfg: cfg}
}

// Get returns the current config (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// OnChange registers a callback for config changes.
func (m *Manager) OnChange(cb ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// reload re-reads config and notifies subscribers.
func (m *Manager) reload() {
	var newCfg Config
	if err := m.v.Unmarshal(&newCfg); err != nil {
		logger.Errorf("❌ Failed to reload config: %v", err)
		return
	}
	if err := newCfg.Validate(); err != nil {
		logger.Errorf("❌ Ignoring invalid config: %v", err)
		return
	}

	m.apply(&newCfg)
}

func (m *Manager) apply(newCfg *Config) {
	m.mu.Lock()
	oldCfg := m.cfg
	m.cfg = newCfg
	callbacks := m.callbacks
	m.mu.Unlock()

	logChanges(oldCfg, newCfg, "")

	// Notify subscribers outside lock
	for _, cb := range callbacks {
		cb(oldCfg, newCfg)
	}
}

// logChanges logs field-level differences between old and new config.
func logChanges(old, cur any, prefix string) {
	for _, line := range diff(old, cur, prefix) {
		logger.Infof("  📝 %s", line)
	}
}

func diff(old, cur any, prefix string) []string {
	oldVal := reflect.ValueOf(old)
	newVal := reflect.ValueOf(cur)

	if oldVal.Kind() == reflect.Ptr {
		oldVal = oldVal.Elem()
	}
	if newVal.Kind() == reflect.Ptr {
		newVal = newVal.Elem()
	}

	if oldVal.Kind() != reflect.Struct {
		return nil
	}

	var lines []string
	t := oldVal.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		oldField := oldVal.Field(i)
		newField := newVal.Field(i)

		fieldName := field.Name
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		// Recurse into nested sections
		if oldField.Kind() == reflect.Struct {
			lines = append(lines, diff(oldField.Interface(), newField.Interface(), fieldName)...)
			continue
		}

		if !reflect.DeepEqual(oldField.Interface(), newField.Interface()) {
			lines = append(lines, fmt.Sprintf("%s: %s → %s",
				fieldName, formatValue(field.Name, oldField), formatValue(field.Name, newField)))
		}
	}
	return lines
}

// formatValue formats a reflect.Value for logging, masking secrets.
func formatValue(name string, v reflect.Value) string {
	if name == "APIKey" {
		if v.String() == "" {
			return `""`
		}
		return "****"
	}
	return fmt.Sprintf("%v", v.Interface())
}

// Load reads and validates the config file once, without watching it.
func Load(path string) (*Config, error) {
	_, cfg, err := load(path)
	return cfg, err
}

func load(path string) (*viper.Viper, *Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Environment variable override support
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return v, &cfg, nil
}
