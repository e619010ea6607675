package sendgrid

import (
	"context"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/lattiq/courier/internal/core"
)

// Provider implements the core.Provider interface for SendGrid.
type Provider struct {
	client *sendgrid.Client
	config core.ProviderSettings
}

// NewProvider creates a new SendGrid provider.
func NewProvider(settings core.ProviderSettings) (core.Provider, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, core.NewValidationError("api_key", "SendGrid API key is required")
	}

	return &Provider{
		client: sendgrid.NewSendClient(apiKey),
		config: settings,
	}, nil
}

// Send sends a single email using SendGrid.
func (p *Provider) Send(ctx context.Context, email *core.Email) (*core.SendResult, error) {
	if len(email.To) == 0 {
		return nil, core.NewValidationError("to", "at least one recipient is required")
	}

	from := mail.NewEmail(email.From.Name, email.From.Email)
	to := mail.NewEmail(email.To[0].Name, email.To[0].Email)

	message := mail.NewSingleEmail(from, email.Subject, to, email.TextBody, email.HTMLBody)

	// Collapse all recipients into one personalization when the message
	// goes beyond a single To address
	if len(email.To) > 1 || len(email.CC) > 0 || len(email.BCC) > 0 {
		personalization := mail.NewPersonalization()

		for _, recipient := range email.To {
			personalization.AddTos(mail.NewEmail(recipient.Name, recipient.Email))
		}
		for _, recipient := range email.CC {
			personalization.AddCCs(mail.NewEmail(recipient.Name, recipient.Email))
		}
		for _, recipient := range email.BCC {
			personalization.AddBCCs(mail.NewEmail(recipient.Name, recipient.Email))
		}

		message.Personalizations = []*mail.Personalization{personalization}
	}

	if len(email.Headers) > 0 {
		if message.Headers == nil {
			message.Headers = make(map[string]string)
		}
		for key, value := range email.Headers {
			message.Headers[key] = value
		}
	}

	response, err := p.client.SendWithContext(ctx, message)
	if err != nil {
		return nil, core.NewRetryableProviderError("sendgrid", "send_error", "failed to send email: "+err.Error())
	}

	if response.StatusCode >= 400 {
		return nil, core.NewStatusProviderError("sendgrid", "api_error", "SendGrid API error: "+response.Body, response.StatusCode)
	}

	// SendGrid returns the message ID in the X-Message-Id header
	messageID := response.Headers["X-Message-Id"]
	if len(messageID) == 0 {
		messageID = []string{"unknown"}
	}

	return &core.SendResult{
		MessageID: messageID[0],
		Provider:  p.Name(),
		Timestamp: time.Now(),
	}, nil
}

// SendBatch sends multiple emails individually.
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
		return core.NewValidationError("api_key", "SendGrid API key is required")
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "sendgrid"
}
