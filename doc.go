// Package courier routes transactional and marketing email across multiple
// delivery providers (AWS SES, SendGrid, Mailgun, Resend, SMTP) with
// per-provider daily and monthly quota accounting, circuit-breaker failure
// isolation and a durable retry queue.
//
// Providers are configured in priority order. Each send walks the list and
// delivers through the first provider whose circuit is not open and whose
// quota windows have headroom for the message's recipients. Retryable
// provider failures fall through to the next provider; permanent failures
// abort immediately. When every provider is skipped or failed the send
// returns a RouteError matching ErrNoProviderAvailable, and callers may
// queue the message for later delivery instead.
//
// Basic usage:
//
//	client, err := courier.New(courier.DefaultConfig(),
//		courier.WithResend(0, os.Getenv("RESEND_API_KEY")),
//		courier.WithSendGrid(1, os.Getenv("SENDGRID_API_KEY")),
//		courier.WithAWSSES(2, "us-east-1"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Send(ctx, &courier.Email{
//		From:     courier.Address{Name: "Example", Email: "no-reply@example.com"},
//		To:       []courier.Address{{Email: "user@example.com"}},
//		Subject:  "Welcome",
//		TextBody: "Hello!",
//	})
//
// Quota counters default to process-local memory. Services that need
// counters shared across instances inject a database-backed tracker with
// WithQuotaTracker, and a durable queue with WithOutbox.
//
// All public operations are traced with OpenTelemetry.
package courier
