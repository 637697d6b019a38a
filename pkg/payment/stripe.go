package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/types"
)

// Stripe implements Processor with Stripe Checkout in embedded mode.
type Stripe struct {
	api           *client.API
	webhookSecret string
	priceID       string
	frontendURL   string
}

// Configured sets up the Stripe processor from flags. Without a secret key
// every call returns ErrNotConfigured.
func Configured() *Stripe {
	s := &Stripe{}
	secretKey := lflag.String("stripe-secret-key", "", "Stripe secret API key")
	webhookSecret := lflag.String("stripe-webhook-secret", "", "Stripe webhook endpoint signing secret")
	priceID := lflag.String("stripe-price-id", "", "Stripe price charged by a checkout session")
	frontendURL := lflag.String("frontend-url", "http://localhost:5173", "Frontend URL checkout returns to")

	lflag.Do(func() {
		s.webhookSecret = *webhookSecret
		s.priceID = *priceID
		s.frontendURL = strings.TrimSuffix(*frontendURL, "/")
		if *secretKey == "" {
			ctx := context.Background()
			log.Ctx(ctx).WarnContext(ctx, "stripe-secret-key not set, payments are disabled")
			return
		}
		s.api = client.New(*secretKey, nil)
	})

	return s
}

func (s *Stripe) returnURL() string {
	return s.frontendURL + "/booking/complete?session_id={CHECKOUT_SESSION_ID}"
}

// CreateCheckoutSession implements Processor.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, bookingID string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		UIMode: stripe.String(string(stripe.CheckoutSessionUIModeEmbedded)),
		Mode:   stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		ReturnURL: stripe.String(s.returnURL()),
	}
	params.Context = ctx
	params.AddMetadata("bookingId", bookingID)

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"created checkout session",
		slog.String("sessionId", session.ID),
		slog.String("bookingId", bookingID),
	)
	return session.ClientSecret, nil
}

func (s *Stripe) getSession(ctx context.Context, sessionID string, expand ...string) (*stripe.CheckoutSession, error) {
	if s.api == nil {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	for _, e := range expand {
		params.AddExpand(e)
	}
	session, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
			return nil, types.Errorf(types.ErrNotFound, "Checkout session not found")
		}
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	return session, nil
}

// GetSessionStatus implements Processor.
func (s *Stripe) GetSessionStatus(ctx context.Context, sessionID string) (string, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return string(session.Status), nil
}

// ParseWebhook implements Processor. Events from a newer API version than
// the library are accepted.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	if s.webhookSecret == "" {
		return Event{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, err
	}
	ev := Event{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Data != nil {
		if id, ok := event.Data.Object["id"].(string); ok {
			ev.SessionID = id
		}
	}
	return ev, nil
}

// Fulfill implements Processor. Fulfilment is only logged for now.
func (s *Stripe) Fulfill(ctx context.Context, sessionID string) error {
	session, err := s.getSession(ctx, sessionID, "line_items")
	if err != nil {
		return err
	}
	ctx = log.WithAttrs(ctx, slog.String("sessionId", session.ID))
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		log.Ctx(ctx).InfoContext(ctx, "checkout session is unpaid, skipping fulfilment")
		return nil
	}
	// TODO: mark the booking in metadata as paid once bookings are stored
	log.Ctx(ctx).InfoContext(
		ctx,
		"fulfilling checkout session",
		slog.String("paymentStatus", string(session.PaymentStatus)),
		slog.String("bookingId", session.Metadata["bookingId"]),
	)
	return nil
}
