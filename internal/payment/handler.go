package payment

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"gymflow/internal/api"
	"gymflow/internal/auth"
	"gymflow/internal/logger"
	"gymflow/internal/plan"

	"github.com/gin-gonic/gin"
)

// PlanLookup resolves the plan a payment was for. Deleted plans resolve to nil.
type PlanLookup interface {
	Resolve(ctx context.Context, id *int) (*plan.MembershipPlan, error)
}

type Handler struct {
	service Service
	plans   PlanLookup
}

func NewHandler(service Service, plans PlanLookup) *Handler {
	return &Handler{service: service, plans: plans}
}

// Get godoc
// @Summary      Get payment
// @Description  Members can only read their own payments.
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        paymentID  path      int  true  "Payment ID"
// @Success      200        {object}  Payment
// @Failure      404        {object}  api.ErrorResponse
// @Router       /payments/{paymentID} [get]
func (h *Handler) Get(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListMine godoc
// @Summary      List my payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Payment
// @Router       /me/payments [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	payments, err := h.service.ListForMember(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// Invoice godoc
// @Summary      Invoice download descriptor
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        paymentID  path      int  true  "Payment ID"
// @Success      200        {object}  Invoice
// @Failure      409        {object}  api.ErrorResponse
// @Router       /payments/{paymentID}/invoice [get]
func (h *Handler) Invoice(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}

	inv, err := h.service.Invoice(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// DownloadInvoice godoc
// @Summary      Download invoice
// @Tags         payments
// @Security     BearerAuth
// @Produce      plain
// @Param        paymentID  path  int  true  "Payment ID"
// @Success      200
// @Router       /payments/{paymentID}/invoice/download [get]
func (h *Handler) DownloadInvoice(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}

	var planName string
	if h.plans != nil {
		planID := p.PlanID
		if pl, err := h.plans.Resolve(c.Request.Context(), &planID); err == nil && pl != nil {
			planName = pl.Name
		}
	}

	inv, body, err := h.service.RenderInvoice(c.Request.Context(), p.ID, planName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+inv.FileName+`"`)
	c.Data(http.StatusOK, inv.ContentType, body)
}

// load fetches the payment named in the path and enforces ownership.
func (h *Handler) load(c *gin.Context) (*Payment, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return nil, false
	}

	id, err := strconv.Atoi(c.Param("paymentID"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid payment id"})
		return nil, false
	}

	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	role, _ := auth.GetUserRole(c)
	if p.MemberID != userID && !auth.IsAdmin(role) {
		// Other members' payments are reported as missing.
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: ErrPaymentNotFound.Error()})
		return nil, false
	}
	return p, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvoiceUnavailable), errors.Is(err, ErrNotPending):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	default:
		logger.Error("payment request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to process payment request"})
	}
}
