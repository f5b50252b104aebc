package config

import (
	"errors"
	"io/fs"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Spear  SpearConfig  `yaml:"spear" mapstructure:"spear"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Sync   SyncConfig   `yaml:"sync" mapstructure:"sync"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SpearConfig holds SPEAR API endpoints, public credentials and HTTP tuning.
type SpearConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	InfoBaseURL string  `yaml:"info_base_url" mapstructure:"info_base_url"`
	Username    string  `yaml:"username" mapstructure:"username"`
	ClientID    string  `yaml:"client_id" mapstructure:"client_id"`
	BasicAuth   string  `yaml:"basic_auth" mapstructure:"basic_auth"`
	Scope       string  `yaml:"scope" mapstructure:"scope"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SyncConfig configures a sync run.
type SyncConfig struct {
	Concurrency        int   `yaml:"concurrency" mapstructure:"concurrency"`
	ReauthBeforeEnrich bool  `yaml:"reauth_before_enrich" mapstructure:"reauth_before_enrich"`
	Tenants            []int `yaml:"tenants" mapstructure:"tenants"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MaxConcurrency bounds sync.concurrency.
const MaxConcurrency = 32

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SPEAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("spear.base_url", "https://www.spear.land.vic.gov.au/spear/api/v1")
	v.SetDefault("spear.info_base_url", "https://www.spear.land.vic.gov.au/spear/api/v1")
	v.SetDefault("spear.username", "public")
	v.SetDefault("spear.client_id", "clientapp")
	v.SetDefault("spear.basic_auth", "Y2xpZW50YXBwOg==")
	v.SetDefault("spear.scope", "spear_rest_api")
	v.SetDefault("spear.timeout_secs", 30)
	v.SetDefault("spear.rate_per_sec", 5.0)
	v.SetDefault("spear.burst", 5)
	v.SetDefault("spear.user_agent", "spear-sync/1.0")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data.sqlite")
	v.SetDefault("sync.concurrency", 1)
	v.SetDefault("sync.reauth_before_enrich", true)
	v.SetDefault("sync.tenants", []int{})
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required by mode ("sync", "serve", "store").
// All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "store":
	case "sync":
		if c.Sync.Concurrency < 1 || c.Sync.Concurrency > MaxConcurrency {
			errs = append(errs, "sync.concurrency must be between 1 and 32")
		}
		if u, err := url.Parse(c.Spear.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "spear.base_url must be an absolute URL")
		}
		if c.Spear.RatePerSec <= 0 {
			errs = append(errs, "spear.rate_per_sec must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
