package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
)

type fakeSessions struct {
	created *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.created = params
	return f.session, f.err
}

func (f *fakeSessions) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func TestStripe_CreateSession(t *testing.T) {
	sessions := &fakeSessions{session: &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}}
	gw := newStripeGateway(sessions, "whsec", "BDT")

	s, err := gw.CreateSession(context.Background(), SessionRequest{
		Payment:   pendingPayment(MethodStripe),
		PlanName:  "Gold",
		Customer:  Customer{Email: "alice@example.com"},
		Callbacks: CallbacksFor("https://gym.example.com").For(11),
	})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", s.RedirectURL)
	assert.Equal(t, "cs_test_1", s.Reference)

	p := sessions.created
	require.NotNil(t, p)
	assert.Equal(t, "11", *p.ClientReferenceID)
	assert.Equal(t, "https://gym.example.com/payments/callback/11/success?session_id={CHECKOUT_SESSION_ID}", *p.SuccessURL)
	assert.Equal(t, int64(80000), *p.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "bdt", *p.LineItems[0].PriceData.Currency)
	assert.Equal(t, "INV-20240116-ABCDEF0123", *p.IdempotencyKey)
}

func TestStripe_CreateSession_NoURL(t *testing.T) {
	gw := newStripeGateway(&fakeSessions{session: &stripe.CheckoutSession{ID: "cs_test_1"}}, "whsec", "BDT")

	_, err := gw.CreateSession(context.Background(), SessionRequest{Payment: pendingPayment(MethodStripe)})
	assert.ErrorIs(t, err, ErrNoRedirect)
}

func TestStripe_CreateSession_Error(t *testing.T) {
	gw := newStripeGateway(&fakeSessions{err: errors.New("card_declined")}, "whsec", "BDT")

	_, err := gw.CreateSession(context.Background(), SessionRequest{Payment: pendingPayment(MethodStripe)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card_declined")
}

func TestStripe_Verify(t *testing.T) {
	tests := []struct {
		name        string
		session     *stripe.CheckoutSession
		wantSettled bool
		wantPending bool
		wantTxID    string
	}{
		{
			name: "paid",
			session: &stripe.CheckoutSession{
				ID: "cs_1", ClientReferenceID: "11", AmountTotal: 80000,
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
				PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
			},
			wantSettled: true,
			wantTxID:    "pi_1",
		},
		{
			name: "unpaid and open",
			session: &stripe.CheckoutSession{
				ID: "cs_1", ClientReferenceID: "11", AmountTotal: 80000,
				PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
				Status:        stripe.CheckoutSessionStatusOpen,
			},
			wantPending: true,
		},
		{
			name: "expired",
			session: &stripe.CheckoutSession{
				ID: "cs_1", ClientReferenceID: "11",
				PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
				Status:        stripe.CheckoutSessionStatusExpired,
			},
		},
		{
			name: "other payment",
			session: &stripe.CheckoutSession{
				ID: "cs_1", ClientReferenceID: "12", AmountTotal: 80000,
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			},
		},
		{
			name: "wrong amount",
			session: &stripe.CheckoutSession{
				ID: "cs_1", ClientReferenceID: "11", AmountTotal: 100,
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newStripeGateway(&fakeSessions{session: tt.session}, "whsec", "BDT")

			v, err := gw.Verify(context.Background(), pendingPayment(MethodStripe),
				Callback{Params: map[string]string{"session_id": "cs_1"}})
			require.NoError(t, err)

			assert.Equal(t, tt.wantSettled, v.Settled)
			assert.Equal(t, tt.wantPending, v.Pending)
			assert.Equal(t, tt.wantTxID, v.TransactionID)
			if !tt.wantSettled {
				assert.NotEmpty(t, v.Reason)
			}
		})
	}
}

func signedHeader(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(eventType, body string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, eventType, body))
}

func TestStripe_ParseWebhook(t *testing.T) {
	gw := newStripeGateway(&fakeSessions{}, "whsec_test", "BDT")
	payload := stripeEvent("checkout.session.completed",
		`{"id":"cs_1","object":"checkout.session","client_reference_id":"11"}`)

	ev, err := gw.ParseWebhook(payload, signedHeader(payload, "whsec_test"))
	require.NoError(t, err)

	assert.Equal(t, 11, ev.PaymentID)
	assert.Equal(t, "success", ev.Callback.Outcome)
	assert.Equal(t, "cs_1", ev.Callback.Param("session_id"))
}

func TestStripe_ParseWebhook_Expired(t *testing.T) {
	gw := newStripeGateway(&fakeSessions{}, "whsec_test", "BDT")
	payload := stripeEvent("checkout.session.expired",
		`{"id":"cs_1","object":"checkout.session","metadata":{"payment_id":"11"}}`)

	ev, err := gw.ParseWebhook(payload, signedHeader(payload, "whsec_test"))
	require.NoError(t, err)

	assert.Equal(t, 11, ev.PaymentID)
	assert.Equal(t, "cancel", ev.Callback.Outcome)
}

func TestStripe_ParseWebhook_BadSignature(t *testing.T) {
	gw := newStripeGateway(&fakeSessions{}, "whsec_test", "BDT")
	payload := stripeEvent("checkout.session.completed", `{"id":"cs_1","client_reference_id":"11"}`)

	_, err := gw.ParseWebhook(payload, signedHeader(payload, "other_secret"))
	assert.Error(t, err)
}

func TestStripe_ParseWebhook_IgnoredType(t *testing.T) {
	gw := newStripeGateway(&fakeSessions{}, "whsec_test", "BDT")
	payload := stripeEvent("customer.created", `{"id":"cus_1"}`)

	_, err := gw.ParseWebhook(payload, signedHeader(payload, "whsec_test"))
	assert.ErrorIs(t, err, ErrIgnoredEvent)
}
