package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// EventType is the gateway notification type.
type EventType string

const (
	EventSessionCompleted EventType = "checkout.session.completed"
	EventSessionExpired   EventType = "checkout.session.expired"
)

// SignatureHeader is the request header carrying the webhook signature.
const SignatureHeader = "Stripe-Signature"

// ErrInvalidSignature is returned when a notification cannot be authenticated.
var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

// LineItem is one priced line of a hosted checkout. UnitAmount is in minor units (cents).
type LineItem struct {
	Name       string
	Image      string
	UnitAmount int64
	Quantity   int64
}

// SessionRequest describes the hosted payment session to open for an order.
type SessionRequest struct {
	Reference  string
	Currency   string
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
	ExpiresAt  time.Time
}

// Session is the gateway's handle for a payment session.
type Session struct {
	ID  string
	URL string
}

// Event is an authenticated gateway notification.
type Event struct {
	ID        string
	Type      EventType
	SessionID string
}

// Gateway creates hosted payment sessions and authenticates their notifications.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// parseSignedEvent verifies a Stripe-style signature and extracts the checkout session id.
func parseSignedEvent(payload []byte, signature, secret string) (*Event, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: EventType(ev.Type)}
	if ev.Data != nil && len(ev.Data.Raw) > 0 {
		var session stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session from event %s: %w", ev.ID, err)
		}
		out.SessionID = session.ID
	}
	return out, nil
}

// NewEventPayload renders a notification body for a checkout session in the gateway's
// JSON shape.
func NewEventPayload(eventID string, t EventType, sessionID string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":     eventID,
		"object": "event",
		"type":   string(t),
		"data": map[string]any{
			"object": map[string]any{"id": sessionID, "object": "checkout.session"},
		},
	})
	return body
}

// Sign produces a signature header for payload in the format the gateway sends.
// The mock gateway and tests use it to emit notifications.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
