package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is empty because every field carries its fully qualified
// FIELDSYNC_* name in its envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Remote       RemoteConfig
	Sync         SyncConfig
	Probe        ProbeConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FIELDSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"FIELDSYNC_APP_PORT" default:"7643"`
	LogLevel     string `envconfig:"FIELDSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FIELDSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	Path        string        `envconfig:"FIELDSYNC_DB_PATH" default:"fieldsync.db"`
	BusyTimeout time.Duration `envconfig:"FIELDSYNC_DB_BUSY_TIMEOUT" default:"5s"`
}

func (db DBConfig) validate() error {
	if strings.TrimSpace(db.Path) == "" {
		return fmt.Errorf("FIELDSYNC_DB_PATH is required")
	}
	return nil
}

// RemoteConfig describes the quote submission endpoint and the retry
// policy applied to it: MaxRetries beyond the first attempt, delays
// growing from RetryBaseDelay and capped at RetryMaxDelay.
type RemoteConfig struct {
	BaseURL        string        `envconfig:"FIELDSYNC_REMOTE_BASE_URL" required:"true"`
	SubmitTimeout  time.Duration `envconfig:"FIELDSYNC_REMOTE_SUBMIT_TIMEOUT" default:"10s"`
	RetryBaseDelay time.Duration `envconfig:"FIELDSYNC_REMOTE_RETRY_BASE_DELAY" default:"2s"`
	RetryMaxDelay  time.Duration `envconfig:"FIELDSYNC_REMOTE_RETRY_MAX_DELAY" default:"4s"`
	MaxRetries     int           `envconfig:"FIELDSYNC_REMOTE_MAX_RETRIES" default:"2"`
}

type SyncConfig struct {
	FlushInterval time.Duration `envconfig:"FIELDSYNC_SYNC_FLUSH_INTERVAL" default:"2m"`
}

// ProbeConfig drives the connectivity monitor. URL defaults to the
// remote base URL when empty.
type ProbeConfig struct {
	URL      string        `envconfig:"FIELDSYNC_PROBE_URL"`
	Interval time.Duration `envconfig:"FIELDSYNC_PROBE_INTERVAL" default:"30s"`
	Timeout  time.Duration `envconfig:"FIELDSYNC_PROBE_TIMEOUT" default:"3s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FIELDSYNC_AUTO_MIGRATE" default:"false"`
}
