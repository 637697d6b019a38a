// Package payment creates checkout sessions and handles their webhooks.
package payment

import (
	"context"
	"errors"
)

// Event types that complete a checkout.
const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// ErrNotConfigured is returned by every call when no payment provider
// credentials were given.
var ErrNotConfigured = errors.New("payments are not configured")

// Event is a verified webhook event.
type Event struct {
	ID        string
	Type      string
	SessionID string
}

// Fulfils reports whether the event completes a checkout.
func (e Event) Fulfils() bool {
	return e.Type == EventCheckoutCompleted || e.Type == EventCheckoutAsyncPaymentSucceeded
}

// Processor is a hosted checkout provider.
type Processor interface {
	// CreateCheckoutSession starts an embedded checkout for the booking and
	// returns the client secret the frontend mounts it with.
	CreateCheckoutSession(ctx context.Context, bookingID string) (string, error)
	// GetSessionStatus returns the session status (open, complete, expired).
	GetSessionStatus(ctx context.Context, sessionID string) (string, error)
	// ParseWebhook verifies the signature header and decodes the event.
	ParseWebhook(payload []byte, signature string) (Event, error)
	// Fulfill loads the session and records the outcome of a completed
	// checkout.
	Fulfill(ctx context.Context, sessionID string) error
}
