package courier

import (
	"time"
)

// Option is a functional option for configuring the courier client.
type Option func(*Config)

// WithProvider appends a provider to the routing list. Providers are tried
// in priority order; ties break on declaration order.
func WithProvider(providerType ProviderType, priority int, settings ProviderSettings) Option {
	return func(c *Config) {
		c.Providers = append(c.Providers, ProviderConfig{
			Type:     providerType,
			Priority: priority,
			Settings: settings,
		})
	}
}

// WithProviderQuota appends a provider with daily and monthly recipient caps.
// A zero limit means unlimited.
func WithProviderQuota(providerType ProviderType, priority int, settings ProviderSettings, daily, monthly int64) Option {
	return func(c *Config) {
		c.Providers = append(c.Providers, ProviderConfig{
			Type:         providerType,
			Priority:     priority,
			Settings:     settings,
			DailyLimit:   daily,
			MonthlyLimit: monthly,
		})
	}
}

// WithTimeout sets the provider operation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithTemplates enables template functionality and sets the template directory.
func WithTemplates(directory string) Option {
	return func(c *Config) {
		c.Templates.Enabled = true
		c.Templates.Directory = directory
	}
}

// WithTemplateAutoReload enables automatic template reloading for development.
func WithTemplateAutoReload(enabled bool) Option {
	return func(c *Config) {
		c.Templates.AutoReload = enabled
	}
}

// WithRetry configures retry behavior.
func WithRetry(maxAttempts int, initialDelay, maxDelay time.Duration, multiplier float64) Option {
	return func(c *Config) {
		c.Retry.Enabled = true
		c.Retry.MaxAttempts = maxAttempts
		c.Retry.InitialDelay = initialDelay
		c.Retry.MaxDelay = maxDelay
		c.Retry.Multiplier = multiplier
	}
}

// WithJitter enables or disables jitter in retry delays.
func WithJitter(enabled bool) Option {
	return func(c *Config) {
		c.Retry.Jitter = enabled
	}
}

// WithoutRetry disables retry functionality.
func WithoutRetry() Option {
	return func(c *Config) {
		c.Retry.Enabled = false
	}
}

// WithRateLimit configures rate limiting.
func WithRateLimit(rate int, period time.Duration, burst int) Option {
	return func(c *Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.Rate = rate
		c.RateLimit.Period = period
		c.RateLimit.Burst = burst
	}
}

// WithPerRecipientRateLimit enables per-recipient rate limiting.
func WithPerRecipientRateLimit(enabled bool) Option {
	return func(c *Config) {
		c.RateLimit.PerRecipient = enabled
	}
}

// WithCircuitBreaker configures circuit breaker behavior.
func WithCircuitBreaker(failureThreshold, successThreshold int, cooldown time.Duration) Option {
	return func(c *Config) {
		c.CircuitBreaker.Enabled = true
		c.CircuitBreaker.FailureThreshold = failureThreshold
		c.CircuitBreaker.SuccessThreshold = successThreshold
		c.CircuitBreaker.Cooldown = cooldown
	}
}

// WithoutCircuitBreaker disables circuit breaker functionality.
func WithoutCircuitBreaker() Option {
	return func(c *Config) {
		c.CircuitBreaker.Enabled = false
	}
}

// WithTracing configures distributed tracing.
func WithTracing(serviceName string, sampleRate float64) Option {
	return func(c *Config) {
		c.Monitoring.Tracing.Enabled = true
		c.Monitoring.Tracing.ServiceName = serviceName
		c.Monitoring.Tracing.SampleRate = sampleRate
	}
}

// WithoutTracing disables distributed tracing.
func WithoutTracing() Option {
	return func(c *Config) {
		c.Monitoring.Tracing.Enabled = false
	}
}

// WithLogging configures logging.
func WithLogging(level, format string) Option {
	return func(c *Config) {
		c.Monitoring.Logging.Level = level
		c.Monitoring.Logging.Format = format
	}
}

// WithAWSSES appends an AWS SES provider.
func WithAWSSES(priority int, region string) Option {
	return WithProvider(ProviderAWSSES, priority, ProviderSettings{
		"region": region,
	})
}

// WithAWSSESCredentials appends an AWS SES provider with explicit credentials.
func WithAWSSESCredentials(priority int, region, accessKey, secretKey string) Option {
	return WithProvider(ProviderAWSSES, priority, ProviderSettings{
		"region":     region,
		"access_key": accessKey,
		"secret_key": secretKey,
	})
}

// WithSendGrid appends a SendGrid provider.
func WithSendGrid(priority int, apiKey string) Option {
	return WithProvider(ProviderSendGrid, priority, ProviderSettings{
		"api_key": apiKey,
	})
}

// WithMailgun appends a Mailgun provider.
func WithMailgun(priority int, apiKey, domain string) Option {
	return WithProvider(ProviderMailgun, priority, ProviderSettings{
		"api_key": apiKey,
		"domain":  domain,
	})
}

// WithMailgunEU appends a Mailgun provider pointed at the EU region.
func WithMailgunEU(priority int, apiKey, domain string) Option {
	return WithProvider(ProviderMailgun, priority, ProviderSettings{
		"api_key":  apiKey,
		"domain":   domain,
		"base_url": "https://api.eu.mailgun.net",
	})
}

// WithResend appends a Resend provider.
func WithResend(priority int, apiKey string) Option {
	return WithProvider(ProviderResend, priority, ProviderSettings{
		"api_key": apiKey,
	})
}

// WithSMTP appends an SMTP provider.
func WithSMTP(priority int, host, port string) Option {
	return WithProvider(ProviderSMTP, priority, ProviderSettings{
		"host": host,
		"port": port,
	})
}

// WithSMTPAuth appends an SMTP provider with authentication.
func WithSMTPAuth(priority int, host, port, username, password string) Option {
	return WithProvider(ProviderSMTP, priority, ProviderSettings{
		"host":     host,
		"port":     port,
		"username": username,
		"password": password,
	})
}

// WithQuotaTracker replaces the in-memory quota tracker, typically with a
// database-backed implementation.
func WithQuotaTracker(tracker QuotaTracker) Option {
	return func(c *Config) {
		c.quotaTracker = tracker
	}
}

// WithOutbox wires a durable retry queue into the client so Enqueue works
// and routing exhaustion can fall back to queued delivery.
func WithOutbox(outbox Outbox) Option {
	return func(c *Config) {
		c.outbox = outbox
	}
}

// WithDeliveryObserver registers a hook invoked after every provider
// attempt, successful or not. Used by the service layer for send logs and
// metrics.
func WithDeliveryObserver(obs DeliveryObserver) Option {
	return func(c *Config) {
		c.observer = obs
	}
}
