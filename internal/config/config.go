// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REVIEWSMS_CARRIER_AUTH_TOKEN.
const EnvPrefix = "REVIEWSMS"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Carrier    CarrierConfig    `mapstructure:"carrier"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Webhooks   WebhooksConfig   `mapstructure:"webhooks"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxOpenConns   int    `mapstructure:"max_open_conns"`
	MaxIdleConns   int    `mapstructure:"max_idle_conns"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// MessageIndexTTL is how long carrier ids stay cached for callbacks, in hours.
	MessageIndexTTL int `mapstructure:"message_index_ttl"`
}

type CarrierConfig struct {
	AccountSID        string               `mapstructure:"account_sid"`
	AuthToken         string               `mapstructure:"auth_token"`
	FromNumber        string               `mapstructure:"from_number"`
	AlphanumericID    string               `mapstructure:"alphanumeric_id"`
	StatusCallbackURL string               `mapstructure:"status_callback_url"`
	Timeout           int                  `mapstructure:"timeout"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

type QuotaConfig struct {
	// PlanLimits maps plan name to monthly SMS allowance.
	PlanLimits map[string]int `mapstructure:"plan_limits"`
}

type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	BatchSize       int  `mapstructure:"batch_size"`
	MaxAttempts     int  `mapstructure:"max_attempts"`
	// ClaimTTL bounds how long one sweep may hold a customer, in seconds.
	ClaimTTL int    `mapstructure:"claim_ttl"`
	Secret   string `mapstructure:"secret"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

type BillingConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type WebhooksConfig struct {
	// PublicBaseURL is the externally visible origin used to verify carrier signatures.
	PublicBaseURL   string `mapstructure:"public_base_url"`
	VerifySignature bool   `mapstructure:"verify_signature"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	RequestTimeout int      `mapstructure:"request_timeout"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.migrations_path", "./migrations")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.message_index_ttl", 72)
	v.SetDefault("carrier.timeout", 10)
	v.SetDefault("carrier.circuit_breaker.max_requests", 3)
	v.SetDefault("carrier.circuit_breaker.interval", 60)
	v.SetDefault("carrier.circuit_breaker.timeout", 30)
	v.SetDefault("carrier.circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("carrier.circuit_breaker.consecutive_fails", 5)
	v.SetDefault("quota.plan_limits", map[string]int{
		"free":     20,
		"starter":  100,
		"pro":      500,
		"business": 2000,
	})
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_seconds", 60)
	v.SetDefault("scheduler.batch_size", 50)
	v.SetDefault("scheduler.max_attempts", 3)
	v.SetDefault("scheduler.claim_ttl", 120)
	v.SetDefault("webhooks.verify_signature", true)

	// Keys without a sensible default are still registered so that
	// AutomaticEnv can populate them during Unmarshal.
	for _, key := range []string{
		"database.user", "database.password", "database.dbname",
		"redis.password",
		"carrier.account_sid", "carrier.auth_token", "carrier.from_number",
		"carrier.alphanumeric_id", "carrier.status_callback_url",
		"scheduler.secret",
		"auth.jwt_secret", "auth.issuer", "auth.audience",
		"billing.webhook_secret",
		"webhooks.public_base_url",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("middleware.rate_limit", 100)
	v.SetDefault("middleware.rate_limit_burst", 1000)
	v.SetDefault("middleware.request_timeout", 30)
	v.SetDefault("middleware.enable_cors", true)
	v.SetDefault("middleware.allowed_origins", []string{"*"})
}

// LoadConfig reads defaults, the optional YAML file at configPath and
// REVIEWSMS_* environment overrides, in that order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Scheduler.IntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.interval_seconds must be positive")
	}
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler.batch_size must be positive")
	}
	if c.Scheduler.MaxAttempts <= 0 {
		return fmt.Errorf("scheduler.max_attempts must be positive")
	}
	if c.Carrier.Timeout <= 0 {
		return fmt.Errorf("carrier.timeout must be positive")
	}
	for plan, limit := range c.Quota.PlanLimits {
		if limit < 0 {
			return fmt.Errorf("quota.plan_limits.%s must not be negative", plan)
		}
	}
	return nil
}

// GetDSN returns PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// GetURL returns the PostgreSQL URL form used by the migration tooling.
func (d *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// Addr returns the Redis address.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s *SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}
