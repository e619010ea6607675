package resend

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/lattiq/courier/internal/core"
)

// Provider implements the core.Provider interface for Resend.
type Provider struct {
	client *resend.Client
	config core.ProviderSettings
}

// NewProvider creates a new Resend provider.
func NewProvider(settings core.ProviderSettings) (core.Provider, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, core.NewValidationError("api_key", "Resend API key is required")
	}

	return &Provider{
		client: resend.NewClient(apiKey),
		config: settings,
	}, nil
}

// Send sends a single email using Resend.
func (p *Provider) Send(ctx context.Context, email *core.Email) (*core.SendResult, error) {
	params := &resend.SendEmailRequest{
		From:    email.From.String(),
		To:      convertAddresses(email.To),
		Subject: email.Subject,
		Html:    email.HTMLBody,
		Text:    email.TextBody,
	}

	if len(email.CC) > 0 {
		params.Cc = convertAddresses(email.CC)
	}

	if len(email.BCC) > 0 {
		params.Bcc = convertAddresses(email.BCC)
	}

	if len(email.Headers) > 0 {
		params.Headers = email.Headers
	}

	for _, attachment := range email.Attachments {
		if attachment.Data == nil {
			continue
		}
		data, err := io.ReadAll(attachment.Data)
		if err != nil {
			return nil, core.NewProviderError("resend", "attachment_read_failed", err.Error())
		}
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Filename: attachment.Filename,
			Content:  data,
		})
	}

	sent, err := p.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return nil, classifySendError(err)
	}

	return &core.SendResult{
		MessageID: sent.Id,
		Provider:  p.Name(),
		Timestamp: time.Now(),
	}, nil
}

// SendBatch sends multiple emails individually; the Resend batch endpoint
// does not support attachments or custom headers.
func (p *Provider) SendBatch(ctx context.Context, emails []*core.Email) (*core.BatchResult, error) {
	result := &core.BatchResult{
		Total:    len(emails),
		Provider: p.Name(),
	}

	for i, email := range emails {
		sendResult, err := p.Send(ctx, email)
		if err != nil {
			result.Failed = append(result.Failed, core.BatchFailure{
				Index: i,
				Email: email,
				Error: err,
			})
		} else {
			result.Successful = append(result.Successful, sendResult)
		}
	}

	return result, nil
}

// ValidateConfig validates the provider configuration.
func (p *Provider) ValidateConfig() error {
	if p.config.Get("api_key") == "" {
		return core.NewValidationError("api_key", "Resend API key is required")
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "resend"
}

// classifySendError maps a Resend SDK error onto the retryable/permanent
// split. The SDK flattens API failures into plain errors, so classification
// works off the message text: rate limiting is temporary, client-side
// rejections are permanent, anything else stays retryable.
func classifySendError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "429"),
		strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"):
		return core.NewTemporaryProviderError("resend", "rate_limited", msg)
	case strings.Contains(lower, "400"),
		strings.Contains(lower, "401"),
		strings.Contains(lower, "403"),
		strings.Contains(lower, "404"),
		strings.Contains(lower, "422"),
		strings.Contains(lower, "invalid"),
		strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "validation"):
		return core.NewProviderError("resend", "send_rejected", msg)
	default:
		return core.NewRetryableProviderError("resend", "send_failed", msg)
	}
}

// convertAddresses converts core.Address slice to string slice.
func convertAddresses(addresses []core.Address) []string {
	result := make([]string, len(addresses))
	for i, addr := range addresses {
		result[i] = addr.String()
	}
	return result
}
