package renewal

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"gymflow/internal/api"
	"gymflow/internal/auth"
	"gymflow/internal/logger"
	"gymflow/internal/payment"
	"gymflow/internal/plan"

	"github.com/gin-gonic/gin"
)

const maxWebhookBytes = 64 << 10

// WebhookParser verifies and decodes Stripe webhook deliveries.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error)
}

type Handler struct {
	orchestrator Orchestrator
	webhooks     WebhookParser
}

func NewHandler(o Orchestrator, webhooks WebhookParser) *Handler {
	return &Handler{orchestrator: o, webhooks: webhooks}
}

type RenewRequest struct {
	PlanID        *int   `json:"plan_id" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// Renew godoc
// @Summary      Renew membership
// @Description  Direct methods settle immediately (200). Gateway methods return a redirect URL (202); the payment is settled when the gateway returns.
// @Tags         renewals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      RenewRequest  true  "Plan and payment method"
// @Success      200      {object}  Attempt
// @Success      202      {object}  Attempt
// @Failure      400      {object}  api.ValidationErrorResponse
// @Failure      402      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Failure      422      {object}  api.ErrorResponse
// @Failure      502      {object}  api.ErrorResponse
// @Router       /me/renewals [post]
func (h *Handler) Renew(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	var req RenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}
	if errs := api.ValidateStruct(req); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, api.ValidationErrorResponse{Error: ErrMissingSelection.Error(), Details: errs})
		return
	}

	a, err := h.orchestrator.Renew(c.Request.Context(), Request{
		MemberID: userID,
		PlanID:   req.PlanID,
		Method:   req.PaymentMethod,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondAttempt(c, a)
}

// Callback godoc
// @Summary      Gateway return
// @Description  Where payment gateways send the member back. Success returns are verified with the gateway before the payment is settled.
// @Tags         renewals
// @Produce      json
// @Param        paymentID  path      int     true  "Payment ID"
// @Param        outcome    path      string  true  "success, fail or cancel"
// @Success      200        {object}  Attempt
// @Success      202        {object}  Attempt
// @Failure      402        {object}  api.ErrorResponse
// @Router       /payments/callback/{paymentID}/{outcome} [get]
// @Router       /payments/callback/{paymentID}/{outcome} [post]
func (h *Handler) Callback(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("paymentID"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid payment id"})
		return
	}

	ctx := c.Request.Context()
	var a *Attempt
	switch outcome := c.Param("outcome"); outcome {
	case payment.OutcomeSuccess:
		a, err = h.orchestrator.Complete(ctx, id, payment.Callback{Outcome: outcome, Params: callbackParams(c)})
	case payment.OutcomeFail:
		a, err = h.orchestrator.Abort(ctx, id, "payment failed at gateway")
	case payment.OutcomeCancel:
		a, err = h.orchestrator.Abort(ctx, id, "payment cancelled by member")
	default:
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "unknown callback outcome"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondAttempt(c, a)
}

// StripeWebhook godoc
// @Summary      Stripe webhook
// @Tags         renewals
// @Accept       json
// @Produce      json
// @Success      200  {object}  api.MessageResponse
// @Failure      400  {object}  api.ErrorResponse
// @Router       /webhooks/stripe [post]
func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.webhooks == nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "stripe is not configured"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "failed to read body"})
		return
	}

	ev, err := h.webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, payment.ErrIgnoredEvent) {
		c.JSON(http.StatusOK, api.MessageResponse{Message: "ignored"})
		return
	}
	if err != nil {
		logger.Error("rejected stripe webhook", "error", err)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid webhook"})
		return
	}

	ctx := c.Request.Context()
	if ev.Callback.Outcome == payment.OutcomeSuccess {
		_, err = h.orchestrator.Complete(ctx, ev.PaymentID, ev.Callback)
	} else {
		_, err = h.orchestrator.Abort(ctx, ev.PaymentID, "stripe "+ev.Type)
	}

	var pf *PaymentFailure
	switch {
	case err == nil, errors.As(err, &pf), errors.Is(err, payment.ErrPaymentNotFound):
		// Nothing Stripe can fix by redelivering.
		c.JSON(http.StatusOK, api.MessageResponse{Message: "received"})
	default:
		logger.Error("stripe webhook processing failed", "payment_id", ev.PaymentID, "type", ev.Type, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "webhook processing failed"})
	}
}

func callbackParams(c *gin.Context) map[string]string {
	params := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err == nil {
			for k, v := range c.Request.PostForm {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}
		}
	}
	return params
}

func respondAttempt(c *gin.Context, a *Attempt) {
	switch a.State {
	case StateGatewayRedirected:
		c.JSON(http.StatusAccepted, a)
	default:
		c.JSON(http.StatusOK, a)
	}
}

type failureResponse struct {
	Error string `json:"error"`
	State State  `json:"state"`
}

func respondError(c *gin.Context, err error) {
	var (
		pf      *PaymentFailure
		invalid *plan.InvalidPlanError
	)
	switch {
	case errors.As(err, &pf):
		c.JSON(http.StatusPaymentRequired, failureResponse{Error: pf.Error(), State: StateFailed})
	case errors.Is(err, ErrMissingSelection), errors.Is(err, payment.ErrUnknownMethod):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrUnknownMember), errors.Is(err, payment.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrPlanUnavailable), errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrConcurrentRenewal):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrGatewayInitiation):
		c.JSON(http.StatusBadGateway, failureResponse{Error: err.Error(), State: StateFailed})
	default:
		logger.Error("renewal request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to process renewal"})
	}
}
