package courier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lattiq/courier/internal/core"
	"github.com/lattiq/courier/internal/providers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Type aliases to re-export core types for the public API.
// This allows users to access types like courier.Email instead of core.Email,
// maintaining a clean public interface while keeping implementation details internal.
type (
	Provider         = core.Provider
	ProviderSettings = core.ProviderSettings
	Email            = core.Email
	Address          = core.Address
	Priority         = core.Priority
	SendResult       = core.SendResult
	BatchResult      = core.BatchResult
	BatchFailure     = core.BatchFailure
	ValidationError  = core.ValidationError
	ProviderError    = core.ProviderError
	QuotaError       = core.QuotaError
	Attachment       = core.Attachment
	TemplateRequest  = core.TemplateRequest
	QuotaSnapshot    = core.QuotaSnapshot
	QuotaWindowKind  = core.QuotaWindowKind
	ProviderHealth   = core.ProviderHealth
)

// Priority constants
const (
	PriorityLow    = core.PriorityLow
	PriorityNormal = core.PriorityNormal
	PriorityHigh   = core.PriorityHigh
	PriorityUrgent = core.PriorityUrgent
)

// Quota window constants
const (
	QuotaDaily   = core.QuotaDaily
	QuotaMonthly = core.QuotaMonthly
)

// Error constructor functions
var (
	NewValidationError          = core.NewValidationError
	NewValidationErrorWithValue = core.NewValidationErrorWithValue
	NewProviderError            = core.NewProviderError
	NewRetryableProviderError   = core.NewRetryableProviderError
	NewTemporaryProviderError   = core.NewTemporaryProviderError
	IsRetryable                 = core.IsRetryable
	IsTemporary                 = core.IsTemporary
	GetRetryAfter               = core.GetRetryAfter
)

// Client implements the Courier interface and routes email across the
// configured providers. All methods are safe for concurrent use.
type Client struct {
	config       Config
	router       *Router
	breakers     *BreakerRegistry
	quotas       QuotaTracker
	outbox       Outbox
	templateEng  TemplateEngine
	retryManager *RetryManager
	rateLimiter  *RateLimiter
	tracer       trace.Tracer
	mu           sync.RWMutex
	closed       bool
}

// New creates a new courier client with the given configuration.
// The client must be closed when no longer needed to release resources.
func New(config Config, opts ...Option) (*Client, error) {
	// Apply functional options
	for _, opt := range opts {
		opt(&config)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := &Client{
		config: config,
		outbox: config.outbox,
		tracer: otel.Tracer("github.com/lattiq/courier"),
	}

	// Quota tracking defaults to in-memory when no store-backed tracker
	// was injected.
	client.quotas = config.quotaTracker
	if client.quotas == nil {
		limits := make(map[string]QuotaLimits, len(config.Providers))
		for _, pc := range config.Providers {
			limits[pc.EffectiveName()] = QuotaLimits{Daily: pc.DailyLimit, Monthly: pc.MonthlyLimit}
		}
		client.quotas = NewMemoryQuotaTracker(limits)
	}

	// One breaker per provider, shared configuration
	client.breakers = NewBreakerRegistry(config.CircuitBreaker, nil)

	// Build the routing table
	routed := make([]routedProvider, 0, len(config.Providers))
	for _, pc := range config.Providers {
		provider, err := createProvider(pc.Type, pc.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", pc.EffectiveName(), err)
		}
		routed = append(routed, routedProvider{
			name:     pc.EffectiveName(),
			priority: pc.Priority,
			provider: provider,
			breaker:  client.breakers.Get(pc.EffectiveName()),
		})
	}
	client.router = NewRouter(routed, client.quotas, config.observer)

	// Initialize template engine if enabled
	if config.Templates.Enabled {
		templateEng, err := NewTemplateEngine(config.Templates)
		if err != nil {
			return nil, fmt.Errorf("failed to create template engine: %w", err)
		}
		client.templateEng = templateEng
	}

	// Initialize retry manager
	if config.Retry.Enabled {
		client.retryManager = NewRetryManager(config.Retry)
	}

	// Initialize rate limiter
	if config.RateLimit.Enabled {
		client.rateLimiter = NewRateLimiter(config.RateLimit)
	}

	return client, nil
}

// SetBreakerListener registers a listener for circuit state transitions.
// Must be called before the first send.
func (c *Client) SetBreakerListener(listener BreakerListener) {
	c.breakers.SetListener(listener)
}

// Send sends a single email through the first eligible provider.
func (c *Client) Send(ctx context.Context, email *Email) error {
	ctx, span := c.tracer.Start(ctx, "courier.Client.Send")
	defer span.End()

	if err := c.checkClosed(span); err != nil {
		return err
	}

	// Validate email before touching any provider
	if err := email.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return err
	}

	span.SetAttributes(
		attribute.String("courier.to", email.To[0].Email),
		attribute.String("courier.from", email.From.Email),
		attribute.Int("courier.recipients", email.TotalRecipients()),
		attribute.String("courier.priority", email.Priority.String()),
	)

	// Apply rate limiting
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, email); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limited")
			return err
		}
	}

	var result *SendResult
	sendFn := func() error {
		var sendErr error
		result, sendErr = c.router.Deliver(ctx, email)
		return sendErr
	}

	err := sendFn()

	// Retry covers transient failures the router could not route around;
	// circuits may cool down and quota windows roll over between attempts.
	if err != nil && c.retryManager != nil && IsRetryable(err) {
		err = c.retryManager.Retry(ctx, sendFn)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return err
	}

	if result != nil {
		span.SetAttributes(
			attribute.String("courier.message_id", result.MessageID),
			attribute.String("courier.provider", result.Provider),
		)
	}
	span.SetStatus(codes.Ok, "email sent")

	return nil
}

// SendBatch sends multiple emails. Failures do not stop the batch; a
// BatchError with per-item detail is returned when any email fails.
func (c *Client) SendBatch(ctx context.Context, emails []*Email) error {
	ctx, span := c.tracer.Start(ctx, "courier.Client.SendBatch")
	defer span.End()

	if err := c.checkClosed(span); err != nil {
		return err
	}

	if len(emails) == 0 {
		span.SetStatus(codes.Ok, "no emails to send")
		return nil
	}

	span.SetAttributes(attribute.Int("courier.batch.size", len(emails)))

	// Validate all emails first
	for i, email := range emails {
		if err := email.Validate(); err != nil {
			validationErr := fmt.Errorf("email at index %d: %w", i, err)
			span.RecordError(validationErr)
			span.SetStatus(codes.Error, "validation failed")
			return validationErr
		}
	}

	var successCount, failureCount int
	var batchErrors []BatchItemError

	for i, email := range emails {
		emailCtx, emailSpan := c.tracer.Start(ctx, "courier.Client.SendBatch.email",
			trace.WithAttributes(
				attribute.Int("courier.batch.index", i),
				attribute.String("courier.to", email.To[0].Email),
			),
		)

		if err := c.Send(emailCtx, email); err != nil {
			emailSpan.RecordError(err)
			emailSpan.SetStatus(codes.Error, err.Error())
			failureCount++
			batchErrors = append(batchErrors, BatchItemError{
				Index: i,
				Error: err,
			})
		} else {
			emailSpan.SetStatus(codes.Ok, "email sent")
			successCount++
		}
		emailSpan.End()
	}

	span.SetAttributes(
		attribute.Int("courier.batch.success_count", successCount),
		attribute.Int("courier.batch.failure_count", failureCount),
	)

	if failureCount > 0 {
		batchErr := &BatchError{
			Message: fmt.Sprintf("%d/%d emails failed", failureCount, len(emails)),
			Errors:  batchErrors,
			Total:   len(emails),
			Failed:  failureCount,
		}
		span.RecordError(batchErr)
		span.SetStatus(codes.Error, batchErr.Message)
		return batchErr
	}

	span.SetStatus(codes.Ok, "batch send completed")
	return nil
}

// SendTemplate sends an email using a template.
func (c *Client) SendTemplate(ctx context.Context, req *TemplateRequest) error {
	ctx, span := c.tracer.Start(ctx, "courier.Client.SendTemplate")
	defer span.End()

	if err := c.checkClosed(span); err != nil {
		return err
	}

	if c.templateEng == nil {
		err := fmt.Errorf("template engine not enabled")
		span.RecordError(err)
		span.SetStatus(codes.Error, "template engine not enabled")
		return err
	}

	span.SetAttributes(
		attribute.String("courier.template.name", req.Template),
		attribute.Int("courier.recipients", len(req.To)),
	)

	email, err := c.renderTemplate(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "template render failed")
		return err
	}

	return c.Send(ctx, email)
}

// Enqueue hands an email to the durable retry queue instead of sending
// inline.
func (c *Client) Enqueue(ctx context.Context, email *Email) error {
	ctx, span := c.tracer.Start(ctx, "courier.Client.Enqueue")
	defer span.End()

	if err := c.checkClosed(span); err != nil {
		return err
	}

	if c.outbox == nil {
		span.RecordError(ErrOutboxDisabled)
		span.SetStatus(codes.Error, ErrOutboxDisabled.Error())
		return ErrOutboxDisabled
	}

	if err := email.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return err
	}

	if err := c.outbox.Enqueue(ctx, email); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		return fmt.Errorf("failed to enqueue email: %w", err)
	}

	span.SetStatus(codes.Ok, "email queued")
	return nil
}

// Health returns a per-provider snapshot of circuit state and quota usage.
func (c *Client) Health(ctx context.Context) ([]ProviderHealth, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrClientClosed
	}
	c.mu.RUnlock()

	return c.router.Health(ctx)
}

// ResetProvider closes the named provider's circuit and clears its failure
// counters. Returns false when the provider is unknown.
func (c *Client) ResetProvider(name string) bool {
	return c.router.Reset(name)
}

// Close closes the client and releases any resources.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	if closer, ok := c.templateEng.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close template engine: %w", err)
		}
	}

	return nil
}

// renderTemplate renders subject, HTML and text parts for a template
// request and assembles the outgoing email.
func (c *Client) renderTemplate(req *TemplateRequest) (*Email, error) {
	renderedSubject := req.Subject
	var err error

	if renderedSubject == "" {
		renderedSubject, err = c.templateEng.Render(req.Template+".subject", req.Data)
		if err != nil && !errors.Is(err, ErrTemplateNotFound) {
			return nil, NewTemplateError(req.Template, "render", "failed to render subject", err)
		}
	}

	renderedHTMLBody, err := c.templateEng.Render(req.Template+".html", req.Data)
	if err != nil && !errors.Is(err, ErrTemplateNotFound) {
		return nil, NewTemplateError(req.Template, "render", "failed to render HTML body", err)
	}

	renderedTextBody, err := c.templateEng.Render(req.Template+".text", req.Data)
	if err != nil && !errors.Is(err, ErrTemplateNotFound) {
		return nil, NewTemplateError(req.Template, "render", "failed to render text body", err)
	}

	metadata := make(map[string]string)
	for k, v := range req.Metadata {
		metadata[k] = fmt.Sprintf("%v", v)
	}

	return &Email{
		From:     req.From,
		To:       req.To,
		CC:       req.CC,
		BCC:      req.BCC,
		Subject:  renderedSubject,
		HTMLBody: renderedHTMLBody,
		TextBody: renderedTextBody,
		Headers:  req.Headers,
		Priority: req.Priority,
		Metadata: metadata,
	}, nil
}

// checkClosed records and returns ErrClientClosed if Close was called.
func (c *Client) checkClosed(span trace.Span) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		span.RecordError(ErrClientClosed)
		span.SetStatus(codes.Error, ErrClientClosed.Error())
		return ErrClientClosed
	}
	return nil
}

// createProvider creates a provider instance based on type and settings.
func createProvider(providerType ProviderType, settings ProviderSettings) (Provider, error) {
	return providers.New(string(providerType), settings)
}
