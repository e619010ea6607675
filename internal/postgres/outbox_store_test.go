package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/courier/internal/core"
)

func TestDecodeEmailPayload(t *testing.T) {
	email := &core.Email{
		From:     core.Address{Email: "noreply@example.com"},
		To:       []core.Address{{Email: "user@example.com"}},
		Subject:  "Welcome",
		TextBody: "Hello",
	}
	payload, err := json.Marshal(email)
	require.NoError(t, err)

	decoded, err := decodeEmailPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, email.Subject, decoded.Subject)
	assert.Equal(t, email.To, decoded.To)
}

func TestDecodeEmailPayload_Attachment(t *testing.T) {
	// Attachment.Data is an io.Reader and marshals to an empty object, so
	// a stored attachment payload can never be decoded back.
	email := &core.Email{
		From:     core.Address{Email: "noreply@example.com"},
		To:       []core.Address{{Email: "user@example.com"}},
		Subject:  "Invoice",
		TextBody: "Attached",
		Attachments: []core.Attachment{{
			Filename: "invoice.pdf",
			Data:     strings.NewReader("%PDF-1.4"),
		}},
	}
	payload, err := json.Marshal(email)
	require.NoError(t, err)

	_, err = decodeEmailPayload(payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode email payload")
}

func TestDecodeEmailPayload_Malformed(t *testing.T) {
	_, err := decodeEmailPayload([]byte(`{"subject":`))
	assert.Error(t, err)
}
