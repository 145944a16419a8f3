package app

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogFile   string `envconfig:"LOG_FILE"`

	BackendURL string `envconfig:"BACKEND_URL" required:"true"`
	NamesURL   string `envconfig:"NAMES_URL" default:"https://practice.mehtakrish.in"`

	RedisAddr  string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	SearchBudget    time.Duration `envconfig:"SEARCH_BUDGET" default:"10s"`
	SearchDebounce  time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"1s"`
	DatasetCacheTTL time.Duration `envconfig:"DATASET_CACHE_TTL" default:"5m"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	cfg.NamesURL = strings.TrimRight(strings.TrimSpace(cfg.NamesURL), "/")
	if cfg.BackendURL == "" {
		return nil, errors.New("backend url must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// ClientConfig is the subset read by the terminal client, which talks to a
// running server and needs no secrets.
type ClientConfig struct {
	ProxyURL       string        `envconfig:"PROXY_URL" default:"http://127.0.0.1:8080/api/proxy"`
	SearchDebounce time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"1s"`
	LogFile        string        `envconfig:"LOG_FILE"`
}

// LoadClientConfig reads the terminal client configuration.
func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.ProxyURL = strings.TrimRight(strings.TrimSpace(cfg.ProxyURL), "/")
	if cfg.ProxyURL == "" {
		return nil, errors.New("proxy url must be provided")
	}
	return &cfg, nil
}
