package wallet

import (
	"net/http"
	"strconv"

	"gymflow/internal/api"
	"gymflow/internal/auth"
	"gymflow/internal/logger"
	"gymflow/internal/metrics"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// GetBalance godoc
// @Summary      Wallet balance
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  BalanceResponse
// @Router       /wallet [get]
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	w, err := h.repo.GetOrCreateWallet(c.Request.Context(), userID)
	if err != nil {
		logger.Error("failed to load wallet", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load wallet"})
		return
	}
	c.JSON(http.StatusOK, balanceResponse(w))
}

// TopUp godoc
// @Summary      Credit a member's wallet
// @Description  Staff record money taken at the front desk as wallet credit.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        userID   path      int           true  "Member ID"
// @Param        request  body      TopUpRequest  true  "Amount in minor units"
// @Success      200      {object}  BalanceResponse
// @Failure      400      {object}  api.ValidationErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Router       /admin/members/{userID}/wallet/topup [post]
func (h *Handler) TopUp(c *gin.Context) {
	staffID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}
	memberID, err := strconv.Atoi(c.Param("userID"))
	if err != nil || memberID <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid user id"})
		return
	}

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "amount_cents must be positive"})
		return
	}
	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	ctx := c.Request.Context()
	if err := h.repo.TopUp(ctx, memberID, req.AmountCents); err != nil {
		logger.Error("wallet top up failed", "user_id", memberID, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to top up wallet"})
		return
	}
	metrics.RecordWalletTopUp()
	logger.Info("wallet topped up", "user_id", memberID, "staff_id", staffID, "amount_cents", req.AmountCents)

	w, err := h.repo.GetOrCreateWallet(ctx, memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load wallet after top up"})
		return
	}
	c.JSON(http.StatusOK, balanceResponse(w))
}

// ListTransactions godoc
// @Summary      Wallet ledger
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query     int  false  "Page size"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   Transaction
// @Router       /wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.repo.GetTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load transactions"})
		return
	}
	c.JSON(http.StatusOK, txs)
}
