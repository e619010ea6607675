package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lattiq/courier/internal/core"
	"github.com/lattiq/courier/internal/logger"
	"github.com/lattiq/courier/internal/store"
)

// maxMessageBody caps the POST /v1/messages request body.
const maxMessageBody = 1 << 20 // 1 MiB

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	health, err := s.courier.Health(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to collect provider health", "error", err)
		RespondWithError(w, r, http.StatusInternalServerError, "failed to collect provider health")
		return
	}
	RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"providers": health,
	})
}

func (s *Server) handleResetProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		RespondWithError(w, r, http.StatusBadRequest, "provider name is required")
		return
	}

	if !s.courier.ResetProvider(name) {
		RespondWithError(w, r, http.StatusNotFound, "unknown provider: "+name)
		return
	}

	logger.FromContext(r.Context()).Info("provider circuit reset", "provider", name)
	RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"provider": name,
		"status":   "reset",
	})
}

func (s *Server) handleOutboxStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.outboxStore.Stats(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to collect outbox stats", "error", err)
		RespondWithError(w, r, http.StatusInternalServerError, "failed to collect outbox stats")
		return
	}
	RespondWithJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleListSends(w http.ResponseWriter, r *http.Request) {
	params := store.ListSendsParams{
		Provider: r.URL.Query().Get("provider"),
		Status:   store.SendAttemptStatus(r.URL.Query().Get("status")),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}
	if params.Limit > 500 {
		params.Limit = 500
	}

	entries, err := s.sendLog.List(r.Context(), params)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list sends", "error", err)
		RespondWithError(w, r, http.StatusInternalServerError, "failed to list sends")
		return
	}
	if entries == nil {
		entries = []*store.SendLogEntry{}
	}
	RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"sends":  entries,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

func (s *Server) handleBreakerEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.breakerEvents.Recent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list breaker events", "error", err)
		RespondWithError(w, r, http.StatusInternalServerError, "failed to list breaker events")
		return
	}
	if events == nil {
		events = []*store.BreakerEvent{}
	}
	RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

// addressModel is the wire form of an email address.
type addressModel struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (a addressModel) toAddress() core.Address {
	return core.Address{Email: a.Email, Name: a.Name}
}

// createMessageRequest is the body of POST /v1/messages.
type createMessageRequest struct {
	From     addressModel      `json:"from"`
	To       []addressModel    `json:"to"`
	CC       []addressModel    `json:"cc,omitempty"`
	BCC      []addressModel    `json:"bcc,omitempty"`
	Subject  string            `json:"subject"`
	HTMLBody string            `json:"html_body,omitempty"`
	TextBody string            `json:"text_body,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	email := &core.Email{
		From:     req.From.toAddress(),
		Subject:  req.Subject,
		HTMLBody: req.HTMLBody,
		TextBody: req.TextBody,
		Headers:  req.Headers,
		Metadata: req.Metadata,
	}
	for _, to := range req.To {
		email.To = append(email.To, to.toAddress())
	}
	for _, cc := range req.CC {
		email.CC = append(email.CC, cc.toAddress())
	}
	for _, bcc := range req.BCC {
		email.BCC = append(email.BCC, bcc.toAddress())
	}

	id, err := s.queue.EnqueueMessage(r.Context(), email)
	if err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			RespondWithError(w, r, http.StatusBadRequest, ve.Error())
			return
		}
		logger.FromContext(r.Context()).Error("failed to enqueue message", "error", err)
		RespondWithError(w, r, http.StatusInternalServerError, "failed to enqueue message")
		return
	}

	RespondWithJSON(w, r, http.StatusAccepted, map[string]string{
		"id":     id.String(),
		"status": "queued",
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
