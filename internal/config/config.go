// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Stripe    StripeConfig    `koanf:"stripe"`
	Google    GoogleConfig    `koanf:"google"`
	Uber      UberConfig      `koanf:"uber"`
	Search    SearchConfig    `koanf:"search"`
	MagicLink MagicLinkConfig `koanf:"magic_link"`
	Pricing   PricingConfig   `koanf:"pricing"`
	Client    ClientConfig    `koanf:"client"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests     int           `koanf:"requests"`
	Window       time.Duration `koanf:"window"`
	Burst        int           `koanf:"burst"`
	AuthRequests int           `koanf:"auth_requests"`
	AuthBurst    int           `koanf:"auth_burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type StripeConfig struct {
	SecretKey      string `koanf:"secret_key"`
	WebhookSecret  string `koanf:"webhook_secret"`
	PublishableKey string `koanf:"publishable_key"`
	Currency       string `koanf:"currency"`
}

type GoogleConfig struct {
	MapsAPIKey string        `koanf:"maps_api_key"`
	GeocodeURL string        `koanf:"geocode_url"`
	Timeout    time.Duration `koanf:"timeout"`
}

type UberConfig struct {
	CustomerID   string        `koanf:"customer_id"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	BaseURL      string        `koanf:"base_url"`
	AuthURL      string        `koanf:"auth_url"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

func (u UberConfig) Enabled() bool {
	return u.CustomerID != "" && u.ClientID != "" && u.ClientSecret != ""
}

type SearchConfig struct {
	URL     string        `koanf:"url"`
	Index   string        `koanf:"index"`
	Timeout time.Duration `koanf:"timeout"`
}

type MagicLinkConfig struct {
	TTL     time.Duration `koanf:"ttl"`
	BaseURL string        `koanf:"base_url"`
}

type PricingConfig struct {
	TaxRate     float64 `koanf:"tax_rate"`
	DeliveryFee float64 `koanf:"delivery_fee"`
}

// ClientConfig is consumed by the terminal client, never by the API server.
type ClientConfig struct {
	APIURL         string        `koanf:"api_url"`
	BackendURL     string        `koanf:"backend_url"`
	SearchURL      string        `koanf:"search_url"`
	PublishableKey string        `koanf:"publishable_key"`
	SessionDir     string        `koanf:"session_dir"`
	Timeout        time.Duration `koanf:"timeout"`
}

// Load parses and validates the API server's configuration.
func Load(configPath string) (*Config, error) {
	c, err := Parse(configPath)
	if err != nil {
		return nil, err
	}
	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse layers defaults, the optional YAML file and the environment without
// validating server requirements. The CLI and tests use it directly.
func Parse(configPath string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Only the variables listed in envKeys are read; everything else in
	// the environment is ignored.
	err := k.Load(env.Provider("", ".", func(name string) string {
		return envKeys[name]
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

var defaults = map[string]any{
	"app.name":        "LocalMart API",
	"app.version":     "0.1.0",
	"app.environment": "development",

	"server.host":             "0.0.0.0",
	"server.port":             8000,
	"server.read_timeout":     "30s",
	"server.write_timeout":    "30s",
	"server.idle_timeout":     "120s",
	"server.shutdown_timeout": "15s",

	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  "1h",
	"database.conn_max_idle_time": "30m",

	"redis.pool_size":      10,
	"redis.min_idle_conns": 2,

	"jwt.access_token_expire":  "15m",
	"jwt.refresh_token_expire": "168h",
	"jwt.issuer":               "localmart",
	"jwt.audience":             "localmart-api",
	"jwt.private_key_path":     "keys/private.pem",
	"jwt.public_key_path":      "keys/public.pem",

	"rate_limit.requests":      100,
	"rate_limit.window":        "1m",
	"rate_limit.burst":         20,
	"rate_limit.auth_requests": 10,
	"rate_limit.auth_burst":    5,

	"cors.allowed_origins":   []string{"http://localhost:3000"},
	"cors.allowed_methods":   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	"cors.allowed_headers":   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Stripe-Signature"},
	"cors.allow_credentials": true,
	"cors.max_age":           300,
	"log.level":              "info",
	"log.format":             "json",
	"otel.insecure":          true,
	"otel.sample_rate":       0.1,
	"otel.service_name":      "localmart-api",
	"stripe.currency":        "usd",
	"google.geocode_url":     "https://maps.googleapis.com/maps/api/geocode/json",
	"google.timeout":         "10s",
	"uber.base_url":          "https://api.uber.com/v1",
	"uber.auth_url":          "https://auth.uber.com/oauth/v2/token",
	"uber.poll_interval":     "30s",
	"search.url":             "http://localhost:4100",
	"search.index":           "products",
	"search.timeout":         "5s",
	"magic_link.ttl":         "15m",
	"magic_link.base_url":    "http://localhost:3000/login",
	"pricing.tax_rate":       0.08875,
	"pricing.delivery_fee":   5.99,
	"client.api_url":         "http://localhost:8000",
	"client.backend_url":     "http://localhost:8090",
	"client.search_url":      "http://localhost:4100",
	"client.session_dir":     ".localmart",
	"client.timeout":         "10s",
}

var envKeys = map[string]string{
	"ENVIRONMENT": "app.environment",
	"HOST":        "server.host",
	"PORT":        "server.port",
	"LOG_LEVEL":   "log.level",
	"LOG_FORMAT":  "log.format",

	"DATABASE_URL":         "database.url",
	"REDIS_URL":            "redis.url",
	"JWT_PRIVATE_KEY_PATH": "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":  "jwt.public_key_path",
	"RATE_LIMIT_REQUESTS":  "rate_limit.requests",
	"RATE_LIMIT_WINDOW":    "rate_limit.window",

	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",

	"STRIPE_SECRET_KEY":      "stripe.secret_key",
	"STRIPE_WEBHOOK_SECRET":  "stripe.webhook_secret",
	"STRIPE_PUBLISHABLE_KEY": "stripe.publishable_key",
	"GOOGLE_MAPS_API_KEY":    "google.maps_api_key",
	"UBER_CUSTOMER_ID":       "uber.customer_id",
	"UBER_CLIENT_ID":         "uber.client_id",
	"UBER_CLIENT_SECRET":     "uber.client_secret",
	"UBER_POLL_INTERVAL":     "uber.poll_interval",
	"SEARCH_URL":             "search.url",
	"MAGIC_LINK_BASE_URL":    "magic_link.base_url",
	"TAX_RATE":               "pricing.tax_rate",
	"DELIVERY_FEE":           "pricing.delivery_fee",

	"LOCALMART_API_URL":                "client.api_url",
	"LOCALMART_BACKEND_URL":            "client.backend_url",
	"LOCALMART_SEARCH_URL":             "client.search_url",
	"LOCALMART_STRIPE_PUBLISHABLE_KEY": "client.publishable_key",
	"LOCALMART_SESSION_DIR":            "client.session_dir",
}

// validate reports every problem at once so a misconfigured deploy fails
// with the full list.
func validate(c *Config) error {
	var errs []error
	require := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	require(c.Database.URL != "", "DATABASE_URL is required")
	require(c.Redis.URL != "", "REDIS_URL is required")
	require(c.JWT.PrivateKeyPath != "", "JWT_PRIVATE_KEY_PATH is required")
	require(c.Server.ReadTimeout > 0, "server.read_timeout must be positive")
	require(c.Server.WriteTimeout > 0, "server.write_timeout must be positive")
	require(c.Pricing.TaxRate >= 0 && c.Pricing.DeliveryFee >= 0, "pricing values must be non-negative")
	require(!(c.CORS.AllowCredentials && slices.Contains(c.CORS.AllowedOrigins, "*")),
		"CORS wildcard '*' cannot be used with allow_credentials")

	uber := c.Uber
	partial := uber.CustomerID != "" || uber.ClientID != "" || uber.ClientSecret != ""
	require(!partial || uber.Enabled(), "UBER_CUSTOMER_ID, UBER_CLIENT_ID and UBER_CLIENT_SECRET must be set together")

	if c.IsProduction() {
		require(!(c.Otel.Enabled && c.Otel.Insecure), "OTEL_INSECURE must be false in production")
		require(c.Stripe.SecretKey != "", "STRIPE_SECRET_KEY is required in production")
		require(c.Stripe.WebhookSecret != "", "STRIPE_WEBHOOK_SECRET is required in production")
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
