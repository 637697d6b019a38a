package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/types"
)

// webhook payload cap
const maxWebhookBytes = 65536

func (s *Server) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID string `json:"bookingId"`
	}
	if err := json.NewDecoder(limitedBody(w, r)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, types.Errorf(types.ErrValidation, "Invalid JSON body: %v", err))
		return
	}
	clientSecret, err := s.payments.CreateCheckoutSession(r.Context(), req.BookingID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ClientSecret string `json:"clientSecret"`
	}{ClientSecret: clientSecret})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, r, types.Errorf(types.ErrValidation, "session_id is required"))
		return
	}
	status, err := s.payments.GetSessionStatus(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: status})
}

// handleStripeWebhook verifies the event signature against the raw body.
// Events that don't complete a checkout are acknowledged and ignored.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to read webhook body", slog.Any("error", err))
		http.Error(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	event, err := s.payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid webhook", slog.Any("error", err))
		http.Error(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
		return
	}
	ctx = log.WithAttrs(ctx, slog.String("eventId", event.ID), slog.String("eventType", event.Type))

	if !event.Fulfils() {
		log.Ctx(ctx).DebugContext(ctx, "ignoring webhook event")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := s.payments.Fulfill(ctx, event.SessionID); err != nil {
		// a non-2xx makes stripe redeliver the event
		log.Ctx(ctx).ErrorContext(ctx, "failed to fulfill checkout", slog.Any("error", err))
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
