// Package payments talks to the payment processor: it opens hosted checkout
// sessions and authenticates the webhook notifications that settle them.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Event types the settlement flow reacts to.
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutAsyncSucceeded     = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	EventCheckoutExpired            = "checkout.session.expired"
)

// ErrInvalidSignature is returned when a notification fails authentication.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// SessionRequest describes a hosted checkout for a single price.
type SessionRequest struct {
	PriceID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	CouponID      string
	Metadata      map[string]string
}

// Session is a created checkout session.
type Session struct {
	ID  string
	URL string
}

// CheckoutSession carries the fields of a settled session that we persist.
type CheckoutSession struct {
	ID          string
	Email       string
	AmountTotal int64
	Currency    string
	Metadata    map[string]string
}

// Event is an authenticated processor notification.
type Event struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

// IsCheckoutEvent reports whether the event carries a checkout session payload.
func (e Event) IsCheckoutEvent() bool {
	switch e.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded, EventCheckoutAsyncPaymentFailed, EventCheckoutExpired:
		return true
	}
	return false
}

// ProcessorError surfaces the processor's own message for a failed call.
type ProcessorError struct {
	Message string
	Err     error
}

func (e *ProcessorError) Error() string { return "payment processor: " + e.Message }

func (e *ProcessorError) Unwrap() error { return e.Err }

// StripeGateway implements checkout and webhook verification on Stripe.
type StripeGateway struct {
	sessions      session.Client
	webhookSecret string
}

// Option customises the gateway.
type Option func(*StripeGateway)

// WithBackend overrides the API backend, mostly for tests.
func WithBackend(b stripe.Backend) Option {
	return func(g *StripeGateway) { g.sessions.B = b }
}

// NewStripeGateway builds a gateway using the secret API key and the webhook signing secret.
func NewStripeGateway(secretKey, webhookSecret string, opts ...Option) *StripeGateway {
	g := &StripeGateway{
		sessions:      session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookSecret: webhookSecret,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateCheckoutSession opens a one-off payment session. Promotion codes are
// allowed unless a coupon is applied, since the processor rejects both at once.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(req.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(req.CouponID)}}
	} else {
		params.AllowPromotionCodes = stripe.Bool(true)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	cs, err := g.sessions.New(params)
	if err != nil {
		return nil, &ProcessorError{Message: processorMessage(err), Err: err}
	}
	if cs.URL == "" {
		return nil, &ProcessorError{Message: "checkout session has no redirect url"}
	}
	return &Session{ID: cs.ID, URL: cs.URL}, nil
}

// ParseEvent authenticates a webhook body against its Stripe-Signature header
// and decodes checkout session payloads.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" || signature == "" {
		return nil, ErrInvalidSignature
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if !out.IsCheckoutEvent() || evt.Data == nil {
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out.Session = &CheckoutSession{
		ID:          cs.ID,
		Email:       sessionEmail(&cs),
		AmountTotal: cs.AmountTotal,
		Currency:    string(cs.Currency),
		Metadata:    cs.Metadata,
	}
	return out, nil
}

func sessionEmail(cs *stripe.CheckoutSession) string {
	if cs.CustomerEmail != "" {
		return cs.CustomerEmail
	}
	if cs.CustomerDetails != nil {
		return cs.CustomerDetails.Email
	}
	return ""
}

func processorMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}
