package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort        string        `mapstructure:"HTTP_PORT"`
	GRPCPort        string        `mapstructure:"GRPC_PORT"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     int    `mapstructure:"POSTGRES_PORT"`
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB       string `mapstructure:"POSTGRES_DB"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`

	SessionTTL        time.Duration `mapstructure:"SESSION_TTL"`
	SessionCookieName string        `mapstructure:"SESSION_COOKIE_NAME"`
	CookieSecure      bool          `mapstructure:"COOKIE_SECURE"`

	MinPasswordLength int           `mapstructure:"MIN_PASSWORD_LENGTH"`
	ResetTokenTTL     time.Duration `mapstructure:"RESET_TOKEN_TTL"`

	ProductCacheTTL time.Duration `mapstructure:"PRODUCT_CACHE_TTL"`
	PageSize        int           `mapstructure:"PAGE_SIZE"`

	UploadDir     string `mapstructure:"UPLOAD_DIR"`
	MaxUploadSize int64  `mapstructure:"MAX_UPLOAD_SIZE"`

	RateLimitRequests int           `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow   time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
}

var defaults = map[string]any{
	"HTTP_PORT":           "8080",
	"GRPC_PORT":           "",
	"REQUEST_TIMEOUT":     "30s",
	"SHUTDOWN_TIMEOUT":    "10s",
	"LOG_LEVEL":           "info",
	"LOG_FORMAT":          "json",
	"MONGO_URI":           "mongodb://localhost:27017",
	"MONGO_DB_NAME":       "shop",
	"POSTGRES_HOST":       "localhost",
	"POSTGRES_PORT":       5432,
	"POSTGRES_USER":       "shop",
	"POSTGRES_PASSWORD":   "shop",
	"POSTGRES_DB":         "shop",
	"REDIS_ADDR":          "localhost:6379",
	"REDIS_PASSWORD":      "",
	"REDIS_DB":            0,
	"KAFKA_BROKERS":       "",
	"KAFKA_TOPIC":         "shop-events",
	"SESSION_TTL":         "24h",
	"SESSION_COOKIE_NAME": "sid",
	"COOKIE_SECURE":       false,
	"MIN_PASSWORD_LENGTH": 5,
	"RESET_TOKEN_TTL":     "1h",
	"PRODUCT_CACHE_TTL":   "15m",
	"PAGE_SIZE":           10,
	"UPLOAD_DIR":          "images",
	"MAX_UPLOAD_SIZE":     5 << 20,
	"RATE_LIMIT_REQUESTS": 10,
	"RATE_LIMIT_WINDOW":   "1m",
}

// Load reads the optional env files, then the environment. Every key has
// a default so an empty environment yields a usable local config.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// missing files are fine
		_ = godotenv.Load(f)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.KafkaBrokers = cleanList(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort == "" {
		errs = append(errs, errors.New("HTTP_PORT is required"))
	}
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.MinPasswordLength < 1 {
		errs = append(errs, errors.New("MIN_PASSWORD_LENGTH must be positive"))
	}
	if c.PageSize < 1 {
		errs = append(errs, errors.New("PAGE_SIZE must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
