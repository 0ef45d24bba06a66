package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Slot backends understood by SlotBackend.
const (
	BackendRedis  = "redis"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"CART_HTTP_PORT" envDefault:"8003"`
	ShutdownTimeout time.Duration `env:"CART_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSOrigins     []string      `env:"CART_CORS_ORIGINS" envDefault:"*" envSeparator:","`

	// Durable slot
	SlotBackend string        `env:"CART_SLOT_BACKEND" envDefault:"redis"`
	SlotDir     string        `env:"CART_SLOT_DIR" envDefault:"./data/carts"`
	SlotTimeout time.Duration `env:"CART_SLOT_TIMEOUT" envDefault:"2s"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	RedisSlowThreshold time.Duration `env:"REDIS_SLOW_THRESHOLD" envDefault:"100ms"`

	// Slot TTL in hours (default: 7 days). Only the redis backend expires slots.
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"168"`

	// In-memory sessions untouched for this long are dropped.
	SessionIdle time.Duration `env:"CART_SESSION_IDLE" envDefault:"30m"`

	// Kafka. Empty disables cart events.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Order service
	OrderServiceURL string        `env:"ORDER_SERVICE_URL" envDefault:"http://localhost:8004"`
	OrderTimeout    time.Duration `env:"ORDER_SERVICE_TIMEOUT" envDefault:"10s"`

	// Observability
	OTELEnabled    bool     `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string   `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64  `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	PprofCIDRs     []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CartTTLDuration is CartTTL as a duration.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.SlotBackend {
	case BackendRedis, BackendMemory:
	case BackendFile:
		if c.SlotDir == "" {
			return fmt.Errorf("CART_SLOT_DIR is required for the file backend")
		}
	default:
		return fmt.Errorf("CART_SLOT_BACKEND must be one of redis, file, memory: %q", c.SlotBackend)
	}
	if c.SlotTimeout <= 0 {
		return fmt.Errorf("CART_SLOT_TIMEOUT must be positive: %s", c.SlotTimeout)
	}
	if c.CartTTL < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be at least 1: %d", c.CartTTL)
	}
	if c.SessionIdle < time.Second {
		return fmt.Errorf("CART_SESSION_IDLE must be at least 1s: %s", c.SessionIdle)
	}
	u, err := url.Parse(c.OrderServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ORDER_SERVICE_URL must be an absolute http(s) URL: %q", c.OrderServiceURL)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0: %v", c.OTELSampleRate)
	}
	return nil
}
