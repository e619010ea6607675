package courier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Providers = []ProviderConfig{
		{Type: ProviderResend, Priority: 1, Settings: ProviderSettings{"api_key": "re_123"}},
		{Type: ProviderSMTP, Priority: 2, Settings: ProviderSettings{"host": "localhost", "port": "25"}},
	}
	return cfg
}

func TestConfigValidate_OK(t *testing.T) {
	cfg := validTestConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate_RequiresProvider(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "providers", ve.Field)
}

func TestConfigValidate_RejectsUnknownProviderType(t *testing.T) {
	cfg := validTestConfig()
	cfg.Providers = append(cfg.Providers, ProviderConfig{Type: "pigeon"})
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_RejectsDuplicateNames(t *testing.T) {
	cfg := validTestConfig()
	cfg.Providers = []ProviderConfig{
		{Type: ProviderResend, Name: "primary", Settings: ProviderSettings{"api_key": "a"}},
		{Type: ProviderSendGrid, Name: "primary", Settings: ProviderSettings{"api_key": "b"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate provider name")
}

func TestConfigValidate_TypeIsDefaultName(t *testing.T) {
	// Two unnamed providers of the same type collide on the default name.
	cfg := validTestConfig()
	cfg.Providers = []ProviderConfig{
		{Type: ProviderResend, Settings: ProviderSettings{"api_key": "a"}},
		{Type: ProviderResend, Settings: ProviderSettings{"api_key": "b"}},
	}
	assert.Error(t, cfg.Validate())

	// Naming one of them resolves the collision.
	cfg.Providers[1].Name = "resend-eu"
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate_RejectsNegativeLimits(t *testing.T) {
	cfg := validTestConfig()
	cfg.Providers[0].DailyLimit = -1
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_RejectsZeroTimeout(t *testing.T) {
	cfg := validTestConfig()
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_RetrySettings(t *testing.T) {
	cfg := validTestConfig()
	cfg.Retry.Multiplier = 1.0
	assert.Error(t, cfg.Validate())

	cfg = validTestConfig()
	cfg.Retry.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = validTestConfig()
	cfg.Retry.Enabled = false
	cfg.Retry.MaxAttempts = 0
	assert.NoError(t, cfg.Validate(), "disabled retry is not validated")
}

func TestConfigValidate_CircuitBreakerSettings(t *testing.T) {
	cfg := validTestConfig()
	cfg.CircuitBreaker.FailureThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = validTestConfig()
	cfg.CircuitBreaker.SuccessThreshold = 0
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_TracingSampleRate(t *testing.T) {
	cfg := validTestConfig()
	cfg.Monitoring.Tracing.SampleRate = 1.5
	assert.Error(t, cfg.Validate())
}

func TestOptions_ComposeProviders(t *testing.T) {
	cfg := DefaultConfig()
	opts := []Option{
		WithProviderQuota(ProviderResend, 1, ProviderSettings{"api_key": "re_123"}, 100, 3000),
		WithSendGrid(2, "sg_key"),
		WithTimeout(10 * time.Second),
		WithRetry(4, time.Second, time.Minute, 3.0),
		WithCircuitBreaker(10, 2, 30*time.Second),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, ProviderResend, cfg.Providers[0].Type)
	assert.Equal(t, int64(100), cfg.Providers[0].DailyLimit)
	assert.Equal(t, int64(3000), cfg.Providers[0].MonthlyLimit)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 3.0, cfg.Retry.Multiplier)
	assert.Equal(t, 10, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.CircuitBreaker.Cooldown)
	assert.NoError(t, cfg.Validate())
}
