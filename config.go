package courier

import (
	"time"
)

// Config holds the complete courier configuration.
type Config struct {
	// Providers lists the configured providers in routing priority order.
	// At least one provider is required.
	Providers []ProviderConfig

	// Timeout is the maximum time to wait for provider operations.
	Timeout time.Duration

	// Templates contains template engine configuration.
	Templates TemplateConfig

	// Retry contains retry policy configuration.
	Retry RetryConfig

	// RateLimit contains rate limiting configuration.
	RateLimit RateLimitConfig

	// CircuitBreaker contains circuit breaker configuration, applied to
	// every provider.
	CircuitBreaker CircuitBreakerConfig

	// Monitoring contains observability configuration.
	Monitoring MonitoringConfig

	// Injected collaborators, set through options rather than decoded
	// from files.
	quotaTracker QuotaTracker
	outbox       Outbox
	observer     DeliveryObserver
}

// ProviderConfig describes one routable provider.
type ProviderConfig struct {
	// Type specifies the provider implementation.
	Type ProviderType

	// Name identifies this provider for routing, quotas and health.
	// Defaults to the type when empty. Must be unique.
	Name string

	// Priority orders providers for routing; lower values are tried first.
	Priority int

	// Settings contains provider-specific settings (API keys, region, ...).
	Settings ProviderSettings

	// DailyLimit caps recipients per UTC day. 0 means unlimited.
	DailyLimit int64

	// MonthlyLimit caps recipients per UTC month. 0 means unlimited.
	MonthlyLimit int64
}

// EffectiveName returns the routing name for the provider.
func (pc ProviderConfig) EffectiveName() string {
	if pc.Name != "" {
		return pc.Name
	}
	return string(pc.Type)
}

// ProviderType represents the type of email provider.
type ProviderType string

const (
	// ProviderAWSSES represents Amazon Simple Email Service.
	ProviderAWSSES ProviderType = "aws_ses"

	// ProviderSendGrid represents the SendGrid email service.
	ProviderSendGrid ProviderType = "sendgrid"

	// ProviderMailgun represents the Mailgun email service.
	ProviderMailgun ProviderType = "mailgun"

	// ProviderResend represents the Resend email service.
	ProviderResend ProviderType = "resend"

	// ProviderSMTP represents a generic SMTP server.
	ProviderSMTP ProviderType = "smtp"
)

// String returns the string representation of the provider type.
func (pt ProviderType) String() string {
	return string(pt)
}

// Valid checks if the provider type is supported.
func (pt ProviderType) Valid() bool {
	switch pt {
	case ProviderAWSSES, ProviderSendGrid, ProviderMailgun, ProviderResend, ProviderSMTP:
		return true
	default:
		return false
	}
}

// TemplateConfig contains template engine configuration.
type TemplateConfig struct {
	// Enabled indicates whether template functionality is enabled.
	Enabled bool

	// Directory is the path to the directory containing email templates.
	Directory string

	// Extension is the file extension for template files (default: ".html", ".txt").
	Extension []string

	// CacheEnabled indicates whether parsed templates should be cached.
	CacheEnabled bool

	// AutoReload indicates whether templates should be automatically reloaded
	// when files change (useful for development).
	AutoReload bool

	// AllowUnsafeFunctions enables unsafe template functions that bypass auto-escaping.
	// WARNING: Only enable this if you trust all template content completely.
	AllowUnsafeFunctions bool
}

// RetryConfig contains retry policy configuration.
type RetryConfig struct {
	// Enabled indicates whether retries are enabled.
	Enabled bool

	// MaxAttempts is the maximum number of retry attempts (including the initial attempt).
	MaxAttempts int

	// InitialDelay is the initial delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (should be > 1.0 for exponential backoff).
	Multiplier float64

	// Jitter indicates whether random jitter should be added to delays.
	Jitter bool
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	// Enabled indicates whether rate limiting is enabled.
	Enabled bool

	// Rate is the number of requests per period.
	Rate int

	// Period is the time period for the rate limit.
	Period time.Duration

	// Burst is the maximum number of requests that can be made immediately.
	Burst int

	// PerRecipient indicates whether rate limiting should be applied per recipient.
	PerRecipient bool
}

// CircuitBreakerConfig contains circuit breaker configuration.
type CircuitBreakerConfig struct {
	// Enabled indicates whether circuit breakers are enabled.
	Enabled bool

	// FailureThreshold is the number of consecutive failures that opens
	// a provider's circuit.
	FailureThreshold int

	// SuccessThreshold is the number of successes needed to close the
	// circuit from half-open.
	SuccessThreshold int

	// Cooldown is how long an open circuit waits before allowing a
	// half-open probe.
	Cooldown time.Duration

	// ResetTimeout is how long without failures before the failure count
	// resets in the closed state.
	ResetTimeout time.Duration
}

// MonitoringConfig contains observability configuration.
type MonitoringConfig struct {
	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig

	// Logging contains logging configuration.
	Logging LoggingConfig
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled indicates whether tracing is enabled.
	Enabled bool

	// ServiceName is the service name to use in traces.
	ServiceName string

	// SampleRate is the sampling rate (0.0 to 1.0).
	SampleRate float64
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string

	// Format is the log format (json, text).
	Format string
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Templates: TemplateConfig{
			Enabled:              false,
			Extension:            []string{".html", ".txt"},
			CacheEnabled:         true,
			AllowUnsafeFunctions: false,
		},
		Retry: DefaultRetryConfig(),
		RateLimit: RateLimitConfig{
			Enabled:      false,
			Rate:         100,
			Period:       time.Minute,
			Burst:        10,
			PerRecipient: false,
		},
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Monitoring: MonitoringConfig{
			Tracing: TracingConfig{
				Enabled:     true,
				ServiceName: "courier",
				SampleRate:  1.0,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
		},
	}
}

// DefaultRetryConfig returns default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// DefaultCircuitBreakerConfig returns default circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Cooldown:         60 * time.Second,
		ResetTimeout:     300 * time.Second,
	}
}

// Validate checks if the configuration is valid and complete.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return &ValidationError{
			Field:   "providers",
			Message: "at least one provider is required",
		}
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, pc := range c.Providers {
		if !pc.Type.Valid() {
			return &ValidationError{
				Field:   "providers.type",
				Message: "invalid or unsupported provider type: " + string(pc.Type),
			}
		}
		name := pc.EffectiveName()
		if seen[name] {
			return &ValidationError{
				Field:   "providers.name",
				Message: "duplicate provider name: " + name,
			}
		}
		seen[name] = true
		if pc.DailyLimit < 0 || pc.MonthlyLimit < 0 {
			return &ValidationError{
				Field:   "providers.limits",
				Message: "quota limits must not be negative",
			}
		}
	}

	if c.Timeout <= 0 {
		return &ValidationError{
			Field:   "timeout",
			Message: "timeout must be greater than 0",
		}
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts < 1 {
			return &ValidationError{
				Field:   "retry.max_attempts",
				Message: "max attempts must be at least 1",
			}
		}
		if c.Retry.Multiplier <= 1.0 {
			return &ValidationError{
				Field:   "retry.multiplier",
				Message: "multiplier must be greater than 1.0",
			}
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return &ValidationError{
				Field:   "rate_limit.rate",
				Message: "rate must be greater than 0",
			}
		}
		if c.RateLimit.Period <= 0 {
			return &ValidationError{
				Field:   "rate_limit.period",
				Message: "period must be greater than 0",
			}
		}
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold < 1 {
			return &ValidationError{
				Field:   "circuit_breaker.failure_threshold",
				Message: "failure threshold must be at least 1",
			}
		}
		if c.CircuitBreaker.SuccessThreshold < 1 {
			return &ValidationError{
				Field:   "circuit_breaker.success_threshold",
				Message: "success threshold must be at least 1",
			}
		}
	}

	if c.Monitoring.Tracing.Enabled {
		if c.Monitoring.Tracing.SampleRate < 0 || c.Monitoring.Tracing.SampleRate > 1 {
			return &ValidationError{
				Field:   "monitoring.tracing.sample_rate",
				Message: "sample rate must be between 0.0 and 1.0",
			}
		}
	}

	return nil
}
