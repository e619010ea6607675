// Package config loads and validates the service configuration.
package config

import "time"

// Config holds all service configuration. Values come from an optional YAML
// file plus COURIER_* environment variables, with the environment taking
// precedence.
type Config struct {
	Server    ServerConfig     `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig   `mapstructure:"database" validate:"required"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Outbox    OutboxConfig     `mapstructure:"outbox"`
	Providers []ProviderConfig `mapstructure:"providers" validate:"required,min=1,dive"`
}

// ServerConfig contains the admin API server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains the PostgreSQL settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig contains the Redis settings for admin API rate limiting.
// When Addr is empty, rate limiting is disabled.
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	RateLimitMax  int           `mapstructure:"rate_limit_max" validate:"omitempty,gt=0"`
	RateLimitSpan time.Duration `mapstructure:"rate_limit_window"`
}

// OutboxConfig contains the durable queue worker settings. Zero values fall
// back to the outbox package defaults.
type OutboxConfig struct {
	WorkerCount        int           `mapstructure:"worker_count"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	BatchSize          int           `mapstructure:"batch_size"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	InitialBackoff     time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff"`
	BackoffMultiplier  float64       `mapstructure:"backoff_multiplier"`
	StuckAge           time.Duration `mapstructure:"stuck_age"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval"`
}

// ProviderConfig describes one delivery provider in routing order.
type ProviderConfig struct {
	Type         string            `mapstructure:"type"     validate:"required,oneof=aws_ses sendgrid mailgun resend smtp"`
	Name         string            `mapstructure:"name"`
	Priority     int               `mapstructure:"priority" validate:"gte=0"`
	DailyLimit   int64             `mapstructure:"daily_limit"   validate:"gte=0"`
	MonthlyLimit int64             `mapstructure:"monthly_limit" validate:"gte=0"`
	Settings     map[string]string `mapstructure:"settings" validate:"required"`
}
