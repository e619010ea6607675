package courier

import (
	"context"

	"github.com/lattiq/courier/internal/core"
)

// Public interfaces for the courier library
type (
	// Courier defines the core email delivery interface.
	// All methods are safe for concurrent use.
	Courier interface {
		// Send delivers a single email through the first eligible provider.
		// Returns an error if validation fails or every provider is
		// unavailable or exhausted.
		Send(ctx context.Context, email *Email) error

		// SendBatch delivers multiple emails. If any email fails, the
		// operation continues and returns a BatchError with per-item detail.
		SendBatch(ctx context.Context, emails []*Email) error

		// SendTemplate renders a template and delivers the result.
		SendTemplate(ctx context.Context, req *TemplateRequest) error

		// Enqueue hands the email to the durable retry queue instead of
		// sending inline. Requires an outbox to be configured.
		Enqueue(ctx context.Context, email *Email) error

		// Health returns a per-provider snapshot of circuit state and
		// quota usage, in routing priority order.
		Health(ctx context.Context) ([]ProviderHealth, error)

		// Close closes the courier and releases any resources.
		Close() error
	}

	// TemplateEngine defines the interface for template rendering.
	TemplateEngine interface {
		// Render renders a template with the provided data.
		Render(templateName string, data interface{}) (string, error)

		// RegisterTemplate registers a template with the given name and content.
		RegisterTemplate(name string, content string) error

		// LoadTemplatesFromDir loads all templates from the specified directory.
		// Templates should follow the naming convention: <name>.<type>.<ext>
		// where type is 'subject', 'html', or 'text'.
		LoadTemplatesFromDir(dir string) error
	}

	// QuotaTracker accounts per-provider send volume against daily and
	// monthly caps. Implementations must be safe for concurrent use.
	QuotaTracker interface {
		// Allow reports whether the provider has headroom for n more
		// recipients in both windows. Returns a *QuotaError when a window
		// is exhausted.
		Allow(ctx context.Context, provider string, n int) error

		// Record commits n recipients of usage after a successful send.
		Record(ctx context.Context, provider string, n int) error

		// Snapshot returns current usage for a provider's windows.
		Snapshot(ctx context.Context, provider string) (daily, monthly QuotaSnapshot, err error)
	}

	// Outbox is the durable retry queue the client hands messages to when
	// inline delivery is not possible or not wanted.
	Outbox interface {
		// Enqueue persists the email for later delivery.
		Enqueue(ctx context.Context, email *core.Email) error
	}
)
