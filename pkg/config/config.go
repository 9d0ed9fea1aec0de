package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv             = "STOREFRONT_APP_ENV"
	EnvPort               = "STOREFRONT_APP_PORT"
	EnvLogLevel           = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat          = "STOREFRONT_LOG_FORMAT"
	EnvRedisURL           = "STOREFRONT_REDIS_URL"
	EnvCommerceBaseURL    = "STOREFRONT_COMMERCE_BASE_URL"
	EnvCommercePublishKey = "STOREFRONT_COMMERCE_PUBLISHABLE_KEY"
	EnvCommerceTimeout    = "STOREFRONT_COMMERCE_TIMEOUT"
	EnvStripeAPIKey       = "STOREFRONT_STRIPE_API_KEY"
	EnvStripeEnv          = "STOREFRONT_STRIPE_ENV"
	EnvSessionSecret      = "STOREFRONT_SESSION_SECRET"
	EnvSessionTTL         = "STOREFRONT_SESSION_TTL"
)

type Config struct {
	App       AppConfig
	Redis     RedisConfig
	Commerce  CommerceConfig
	Breaker   BreakerConfig
	Stripe    StripeConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Commerce.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CommerceConfig points at the commerce platform Store API.
type CommerceConfig struct {
	BaseURL        string        `envconfig:"STOREFRONT_COMMERCE_BASE_URL" default:"http://localhost:9000"`
	PublishableKey string        `envconfig:"STOREFRONT_COMMERCE_PUBLISHABLE_KEY" required:"true"`
	Timeout        time.Duration `envconfig:"STOREFRONT_COMMERCE_TIMEOUT" default:"10s"`
}

func (c CommerceConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvCommerceBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvCommerceBaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s is missing a host", EnvCommerceBaseURL)
	}
	return nil
}

// BreakerConfig tunes the circuit breaker wrapped around commerce calls.
type BreakerConfig struct {
	MaxRequests         uint32        `envconfig:"STOREFRONT_BREAKER_MAX_REQUESTS" default:"3"`
	Interval            time.Duration `envconfig:"STOREFRONT_BREAKER_INTERVAL" default:"1m"`
	Timeout             time.Duration `envconfig:"STOREFRONT_BREAKER_TIMEOUT" default:"30s"`
	ConsecutiveFailures uint32        `envconfig:"STOREFRONT_BREAKER_CONSECUTIVE_FAILURES" default:"5"`
}

type StripeConfig struct {
	APIKey string `envconfig:"STOREFRONT_STRIPE_API_KEY"`
	Env    string `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SessionConfig struct {
	Secret       string        `envconfig:"STOREFRONT_SESSION_SECRET" required:"true"`
	CookieName   string        `envconfig:"STOREFRONT_SESSION_COOKIE" default:"sf_session"`
	CookieSecure bool          `envconfig:"STOREFRONT_SESSION_COOKIE_SECURE" default:"true"`
	TTL          time.Duration `envconfig:"STOREFRONT_SESSION_TTL" default:"720h"`
}

type RateLimitConfig struct {
	PaymentWindow time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_PAYMENT_WINDOW" default:"10m"`
	PaymentLimit  int           `envconfig:"STOREFRONT_RATE_LIMIT_PAYMENT_LIMIT" default:"5"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:8100,http://localhost:3000"`
}
