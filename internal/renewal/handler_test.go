package renewal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gymflow/internal/payment"
	"gymflow/internal/plan"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) Renew(ctx context.Context, req Request) (*Attempt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Attempt), args.Error(1)
}

func (m *MockOrchestrator) Complete(ctx context.Context, paymentID int, cb payment.Callback) (*Attempt, error) {
	args := m.Called(ctx, paymentID, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Attempt), args.Error(1)
}

func (m *MockOrchestrator) Abort(ctx context.Context, paymentID int, reason string) (*Attempt, error) {
	args := m.Called(ctx, paymentID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Attempt), args.Error(1)
}

type fakeParser struct {
	event *payment.WebhookEvent
	err   error
	got   string
}

func (p *fakeParser) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	p.got = signature
	return p.event, p.err
}

func newRenewalRouter(o Orchestrator, webhooks WebhookParser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(o, webhooks)

	me := r.Group("/me", func(c *gin.Context) {
		c.Set("user_id", 7)
		c.Next()
	})
	me.POST("/renewals", h.Renew)
	r.GET("/payments/callback/:paymentID/:outcome", h.Callback)
	r.POST("/payments/callback/:paymentID/:outcome", h.Callback)
	r.POST("/webhooks/stripe", h.StripeWebhook)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_RenewDirect(t *testing.T) {
	o := new(MockOrchestrator)
	end := time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC)
	o.On("Renew", mock.Anything, Request{MemberID: 7, PlanID: intPtr(4), Method: "CASH"}).
		Return(&Attempt{MemberID: 7, PlanID: 4, Method: payment.MethodCash, State: StateCompleted, PaymentID: 21, PlanEndDate: &end}, nil)

	w := postJSON(newRenewalRouter(o, nil), "/me/renewals", `{"plan_id":4,"payment_method":"CASH"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var got Attempt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, StateCompleted, got.State)
	assert.True(t, end.Equal(*got.PlanEndDate))
}

func TestHandler_RenewGatewayAccepted(t *testing.T) {
	o := new(MockOrchestrator)
	o.On("Renew", mock.Anything, mock.Anything).
		Return(&Attempt{MemberID: 7, State: StateGatewayRedirected, PaymentID: 11, GatewayURL: "https://pay.example/1"}, nil)

	w := postJSON(newRenewalRouter(o, nil), "/me/renewals", `{"plan_id":4,"payment_method":"STRIPE"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "https://pay.example/1")
}

func TestHandler_RenewMissingSelection(t *testing.T) {
	o := new(MockOrchestrator)

	w := postJSON(newRenewalRouter(o, nil), "/me/renewals", `{"payment_method":"CASH"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ErrMissingSelection.Error())
	o.AssertNotCalled(t, "Renew", mock.Anything, mock.Anything)
}

func TestHandler_RenewErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"payment failure", &PaymentFailure{Reason: "insufficient wallet balance"}, http.StatusPaymentRequired},
		{"unknown method", payment.ErrUnknownMethod, http.StatusBadRequest},
		{"unknown member", ErrUnknownMember, http.StatusNotFound},
		{"plan unavailable", ErrPlanUnavailable, http.StatusUnprocessableEntity},
		{"invalid plan", &plan.InvalidPlanError{Field: "base_price", Reason: "must be positive"}, http.StatusUnprocessableEntity},
		{"concurrent", ErrConcurrentRenewal, http.StatusConflict},
		{"gateway", gatewayInitiationError(errors.New("down")), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := new(MockOrchestrator)
			o.On("Renew", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := postJSON(newRenewalRouter(o, nil), "/me/renewals", `{"plan_id":4,"payment_method":"WALLET"}`)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHandler_CallbackSuccessPassesParams(t *testing.T) {
	o := new(MockOrchestrator)
	o.On("Complete", mock.Anything, 11, payment.Callback{
		Outcome: payment.OutcomeSuccess,
		Params:  map[string]string{"session_id": "cs_test_1"},
	}).Return(&Attempt{State: StateCompleted, PaymentID: 11}, nil)

	req := httptest.NewRequest(http.MethodGet, "/payments/callback/11/success?session_id=cs_test_1", nil)
	w := httptest.NewRecorder()
	newRenewalRouter(o, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	o.AssertExpectations(t)
}

func TestHandler_CallbackFormPost(t *testing.T) {
	o := new(MockOrchestrator)
	o.On("Complete", mock.Anything, 11, payment.Callback{
		Outcome: payment.OutcomeSuccess,
		Params:  map[string]string{"val_id": "V123", "tran_id": "INV-1"},
	}).Return(&Attempt{State: StateCompleted, PaymentID: 11}, nil)

	req := httptest.NewRequest(http.MethodPost, "/payments/callback/11/success", strings.NewReader("val_id=V123&tran_id=INV-1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	newRenewalRouter(o, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	o.AssertExpectations(t)
}

func TestHandler_CallbackAbortOutcomes(t *testing.T) {
	tests := []struct {
		outcome string
		reason  string
	}{
		{"fail", "payment failed at gateway"},
		{"cancel", "payment cancelled by member"},
	}

	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			o := new(MockOrchestrator)
			o.On("Abort", mock.Anything, 11, tt.reason).
				Return(&Attempt{State: StateFailed, PaymentID: 11, FailureReason: tt.reason}, nil)

			req := httptest.NewRequest(http.MethodGet, "/payments/callback/11/"+tt.outcome, nil)
			w := httptest.NewRecorder()
			newRenewalRouter(o, nil).ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.reason)
		})
	}
}

func TestHandler_CallbackRejectsBadPaths(t *testing.T) {
	o := new(MockOrchestrator)
	r := newRenewalRouter(o, nil)

	for path, want := range map[string]int{
		"/payments/callback/abc/success": http.StatusBadRequest,
		"/payments/callback/0/success":   http.StatusBadRequest,
		"/payments/callback/11/refund":   http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
	o.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_CallbackDeclined(t *testing.T) {
	o := new(MockOrchestrator)
	o.On("Complete", mock.Anything, 11, mock.Anything).Return(nil, &PaymentFailure{Reason: "card declined"})

	w := httptest.NewRecorder()
	newRenewalRouter(o, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/callback/11/success", nil))

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "card declined")
	assert.Contains(t, w.Body.String(), string(StateFailed))
}

func TestHandler_StripeWebhook(t *testing.T) {
	succeeded := &payment.WebhookEvent{
		Type: "checkout.session.completed", PaymentID: 11,
		Callback: payment.Callback{Outcome: payment.OutcomeSuccess, Params: map[string]string{"session_id": "cs_1"}},
	}
	expired := &payment.WebhookEvent{
		Type: "checkout.session.expired", PaymentID: 11,
		Callback: payment.Callback{Outcome: payment.OutcomeCancel},
	}

	tests := []struct {
		name   string
		parser *fakeParser
		setup  func(*MockOrchestrator)
		want   int
	}{
		{
			name:   "ignored event",
			parser: &fakeParser{err: payment.ErrIgnoredEvent},
			want:   http.StatusOK,
		},
		{
			name:   "bad signature",
			parser: &fakeParser{err: errors.New("signature mismatch")},
			want:   http.StatusBadRequest,
		},
		{
			name:   "completed",
			parser: &fakeParser{event: succeeded},
			setup: func(o *MockOrchestrator) {
				o.On("Complete", mock.Anything, 11, succeeded.Callback).Return(&Attempt{State: StateCompleted}, nil)
			},
			want: http.StatusOK,
		},
		{
			name:   "expired",
			parser: &fakeParser{event: expired},
			setup: func(o *MockOrchestrator) {
				o.On("Abort", mock.Anything, 11, "stripe checkout.session.expired").Return(&Attempt{State: StateFailed}, nil)
			},
			want: http.StatusOK,
		},
		{
			name:   "declined is not redelivered",
			parser: &fakeParser{event: succeeded},
			setup: func(o *MockOrchestrator) {
				o.On("Complete", mock.Anything, 11, mock.Anything).Return(nil, &PaymentFailure{Reason: "declined"})
			},
			want: http.StatusOK,
		},
		{
			name:   "unknown payment",
			parser: &fakeParser{event: succeeded},
			setup: func(o *MockOrchestrator) {
				o.On("Complete", mock.Anything, 11, mock.Anything).Return(nil, payment.ErrPaymentNotFound)
			},
			want: http.StatusOK,
		},
		{
			name:   "transient failure is retried",
			parser: &fakeParser{event: succeeded},
			setup: func(o *MockOrchestrator) {
				o.On("Complete", mock.Anything, 11, mock.Anything).Return(nil, errors.New("db down"))
			},
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := new(MockOrchestrator)
			if tt.setup != nil {
				tt.setup(o)
			}

			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			w := httptest.NewRecorder()
			newRenewalRouter(o, tt.parser).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "t=1,v1=abc", tt.parser.got)
			o.AssertExpectations(t)
		})
	}
}

func TestHandler_StripeWebhookNotConfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	newRenewalRouter(new(MockOrchestrator), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
