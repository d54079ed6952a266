package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "sherpos"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App     AppConfig
	Store   StoreConfig
	Backend BackendConfig
	Probe   ProbeConfig
	Sync    SyncConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.ensureBaseURL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHERPOS_APP_ENV" default:"prod"`
	Port         string `envconfig:"SHERPOS_APP_PORT" default:"7070"`
	TerminalID   string `envconfig:"SHERPOS_TERMINAL_ID" required:"true"`
	LogLevel     string `envconfig:"SHERPOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHERPOS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StoreConfig points at the terminal's embedded SQLite file. The store is the
// offline-resilience anchor, so the path must live on durable local disk.
type StoreConfig struct {
	Path        string        `envconfig:"SHERPOS_STORE_PATH" default:"sherpos-terminal.db"`
	BusyTimeout time.Duration `envconfig:"SHERPOS_STORE_BUSY_TIMEOUT" default:"5s"`
	AutoMigrate bool          `envconfig:"SHERPOS_STORE_AUTO_MIGRATE" default:"true"`
}

type BackendConfig struct {
	BaseURL        string        `envconfig:"SHERPOS_BACKEND_BASE_URL" required:"true"`
	Token          string        `envconfig:"SHERPOS_BACKEND_TOKEN"`
	RequestTimeout time.Duration `envconfig:"SHERPOS_BACKEND_REQUEST_TIMEOUT" default:"10s"`
	RefreshRetries uint64        `envconfig:"SHERPOS_BACKEND_REFRESH_RETRIES" default:"3"`
}

func (b *BackendConfig) ensureBaseURL() error {
	raw := strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing backend base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend base url must be http(s), got %q", b.BaseURL)
	}
	b.BaseURL = raw
	return nil
}

type ProbeConfig struct {
	Interval time.Duration `envconfig:"SHERPOS_PROBE_INTERVAL" default:"15s"`
	Timeout  time.Duration `envconfig:"SHERPOS_PROBE_TIMEOUT" default:"3s"`
}

type SyncConfig struct {
	PruneRetention time.Duration `envconfig:"SHERPOS_SYNC_PRUNE_RETENTION" default:"720h"`
}
