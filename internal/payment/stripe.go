package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
)

var ErrIgnoredEvent = errors.New("webhook event ignored")

type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeGateway uses Stripe Checkout in payment mode.
type StripeGateway struct {
	sessions      checkoutSessions
	webhookSecret string
	currency      string
}

func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return newStripeGateway(sc.CheckoutSessions, webhookSecret, currency)
}

func newStripeGateway(sessions checkoutSessions, webhookSecret, currency string) *StripeGateway {
	return &StripeGateway{
		sessions:      sessions,
		webhookSecret: webhookSecret,
		currency:      strings.ToLower(currency),
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	p := req.Payment
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(withQuery(req.Callbacks.SuccessURL, "session_id={CHECKOUT_SESSION_ID}")),
		CancelURL:          stripe.String(req.Callbacks.CancelURL),
		ClientReferenceID:  stripe.String(strconv.Itoa(p.ID)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(p.MinorUnits()),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.PlanName),
				},
			},
		}},
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	params.Context = ctx
	params.AddMetadata("payment_id", strconv.Itoa(p.ID))
	params.AddMetadata("invoice_number", p.InvoiceNumber)
	params.SetIdempotencyKey(p.InvoiceNumber)

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	if s.URL == "" {
		return nil, ErrNoRedirect
	}
	return &Session{RedirectURL: s.URL, Reference: s.ID}, nil
}

func (g *StripeGateway) Verify(ctx context.Context, p *Payment, cb Callback) (*Verification, error) {
	id := cb.Param("session_id")
	if id == "" && p.GatewayRef != nil {
		id = *p.GatewayRef
	}
	if id == "" {
		return &Verification{Reason: "no checkout session to verify"}, nil
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	s, err := g.sessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session %s: %w", id, err)
	}

	if s.ClientReferenceID != strconv.Itoa(p.ID) {
		return &Verification{Reason: "checkout session does not belong to this payment"}, nil
	}
	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
	default:
		if s.Status == stripe.CheckoutSessionStatusExpired {
			return &Verification{Reason: "checkout session expired"}, nil
		}
		return &Verification{Pending: true, Reason: "payment not completed yet"}, nil
	}
	if s.AmountTotal != p.MinorUnits() {
		return &Verification{Reason: fmt.Sprintf("paid amount %d does not match %d", s.AmountTotal, p.MinorUnits())}, nil
	}

	txID := s.ID
	if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
		txID = s.PaymentIntent.ID
	}
	return &Verification{Settled: true, TransactionID: txID}, nil
}

// WebhookEvent is a verified Stripe notification about one of our payments.
type WebhookEvent struct {
	Type      string
	PaymentID int
	Callback  Callback
}

// ParseWebhook checks the Stripe-Signature header and extracts the payment
// the event refers to. Events we do not act on return ErrIgnoredEvent.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	ev, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, err
	}

	var outcome string
	switch ev.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		outcome = OutcomeSuccess
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		outcome = OutcomeCancel
	default:
		return nil, ErrIgnoredEvent
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	ref := s.ClientReferenceID
	if ref == "" {
		ref = s.Metadata["payment_id"]
	}
	id, err := strconv.Atoi(ref)
	if err != nil {
		return nil, ErrIgnoredEvent
	}

	return &WebhookEvent{
		Type:      ev.Type,
		PaymentID: id,
		Callback:  Callback{Outcome: outcome, Params: map[string]string{"session_id": s.ID}},
	}, nil
}

func withQuery(rawURL, query string) string {
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + query
	}
	return rawURL + "?" + query
}
