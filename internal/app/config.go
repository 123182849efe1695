package app

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
)

// Store kinds accepted by TRIPLEDGER_STORE.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds runtime configuration for the client.
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`

	APIBaseURL  string        `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"warn"`

	Store           string `envconfig:"STORE" default:"file"`
	StorePath       string `envconfig:"STORE_PATH" default:"~/.config/tripledger/credentials.json"`
	StorePassphrase string `envconfig:"STORE_PASSPHRASE"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"tripledger"`

	OAuthGrace         time.Duration `envconfig:"OAUTH_GRACE" default:"3s"`
	OAuthLookupTimeout time.Duration `envconfig:"OAUTH_LOOKUP_TIMEOUT" default:"10s"`
	OAuthWait          time.Duration `envconfig:"OAUTH_WAIT" default:"2m"`
	CallbackAddr       string        `envconfig:"CALLBACK_ADDR" default:"127.0.0.1:8765"`

	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	Locale   string        `envconfig:"LOCALE" default:"en"`
	Language language.Tag  `ignored:"true"`
}

// LoadConfig reads configuration from TRIPLEDGER_* environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("tripledger", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case StoreFile, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("app: unknown store %q", c.Store)
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		return fmt.Errorf("app: api base url must be provided")
	}
	base, err := url.Parse(c.APIBaseURL)
	if err != nil || base.Host == "" {
		return fmt.Errorf("app: api base url %q is not absolute", c.APIBaseURL)
	}
	if c.IsProduction() && base.Scheme != "https" && !isLoopback(base.Hostname()) {
		return fmt.Errorf("app: production requires an https api base url, got %q", c.APIBaseURL)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("app: redis db must not be negative")
	}
	if c.OAuthGrace < 0 || c.OAuthLookupTimeout < 0 || c.OAuthWait < 0 || c.HTTPTimeout < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("app: durations must not be negative")
	}
	tag, err := language.Parse(strings.TrimSpace(c.Locale))
	if err != nil {
		return fmt.Errorf("app: locale %q: %w", c.Locale, err)
	}
	c.Language = tag
	return nil
}

// IsProduction returns true when the client runs against production.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
