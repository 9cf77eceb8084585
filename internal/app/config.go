package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"

	coreconfig "github.com/bekksaar/intakebot/core/config"
	coredatabase "github.com/bekksaar/intakebot/core/database"
	"github.com/bekksaar/intakebot/internal/delivery"
)

// State backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DeliveryConfig points at the external collector.
type DeliveryConfig struct {
	URL            string `yaml:"url" envconfig:"APPS_SCRIPT_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"DELIVERY_TIMEOUT_SECONDS"`
}

// Timeout returns the per-submission deadline.
func (c DeliveryConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return delivery.DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RedisConfig configures the shared conversation store.
type RedisConfig struct {
	Addr       string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password   string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB         int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix     string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
	TTLSeconds int    `yaml:"ttl_seconds" envconfig:"REDIS_TTL_SECONDS"`
}

// StateConfig selects where conversations live.
type StateConfig struct {
	Backend string      `yaml:"backend" envconfig:"STATE_BACKEND"`
	Redis   RedisConfig `yaml:"redis"`
}

// MetricsConfig enables the /metrics and /healthz listener.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the application configuration. The core section is inlined at
// the top level of the YAML document.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Delivery DeliveryConfig      `yaml:"delivery"`
	State    StateConfig         `yaml:"state"`
	Database coredatabase.Config `yaml:"database"`
	Metrics  MetricsConfig       `yaml:"metrics"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads .env (when present), the YAML file at path (when present) and
// the environment, then validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required settings and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	cfg.Delivery.URL = strings.TrimSpace(cfg.Delivery.URL)
	if cfg.Delivery.URL == "" {
		return errors.New("delivery url is required (APPS_SCRIPT_URL)")
	}
	u, err := url.Parse(cfg.Delivery.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("delivery url %q must be an absolute http(s) url", cfg.Delivery.URL)
	}
	if cfg.Delivery.TimeoutSeconds < 0 {
		return errors.New("delivery.timeout_seconds must be >= 0")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.State.Backend))
	if backend == "" {
		backend = BackendMemory
	}
	switch backend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(cfg.State.Redis.Addr) == "" {
			return errors.New("state.redis.addr is required when state.backend is 'redis'")
		}
		if cfg.State.Redis.TTLSeconds < 0 {
			return errors.New("state.redis.ttl_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid state.backend %q; allowed: memory, redis", cfg.State.Backend)
	}
	cfg.State.Backend = backend
	return nil
}
