// Package providers assembles the concrete email provider implementations
// behind a single factory.
package providers

import (
	"fmt"

	"github.com/lattiq/courier/internal/core"
	"github.com/lattiq/courier/internal/providers/mailgun"
	"github.com/lattiq/courier/internal/providers/resend"
	"github.com/lattiq/courier/internal/providers/sendgrid"
	"github.com/lattiq/courier/internal/providers/ses"
	"github.com/lattiq/courier/internal/providers/smtp"
)

// New creates a provider of the given type from its settings.
func New(providerType string, settings core.ProviderSettings) (core.Provider, error) {
	switch providerType {
	case "aws_ses":
		return ses.NewProvider(settings)
	case "sendgrid":
		return sendgrid.NewProvider(settings)
	case "mailgun":
		return mailgun.NewProvider(settings)
	case "resend":
		return resend.NewProvider(settings)
	case "smtp":
		return smtp.NewProvider(settings)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
