package plan

import (
	"errors"
	"net/http"
	"strconv"

	"gymflow/internal/api"
	"gymflow/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListActive godoc
// @Summary      List plans open for sign-up
// @Description  Active membership plans with their price breakdown.
// @Tags         plans
// @Produce      json
// @Success      200  {array}   PlanView
// @Failure      500  {object}  api.ErrorResponse
// @Router       /plans [get]
func (h *Handler) ListActive(c *gin.Context) {
	plans, err := h.service.List(c.Request.Context(), true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// ListAll godoc
// @Summary      List all plans
// @Tags         admin-plans
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   PlanView
// @Router       /admin/plans [get]
func (h *Handler) ListAll(c *gin.Context) {
	plans, err := h.service.List(c.Request.Context(), false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create godoc
// @Summary      Create plan
// @Tags         admin-plans
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      PlanInput  true  "Plan"
// @Success      201      {object}  MembershipPlan
// @Failure      400      {object}  api.ValidationErrorResponse
// @Router       /admin/plans [post]
func (h *Handler) Create(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}

	p, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	in, ok := bindInput(c)
	if !ok {
		return
	}

	p, err := h.service.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Activate(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}

	p, err := h.service.Activate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Deactivate(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}

	p, err := h.service.Deactivate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete godoc
// @Summary      Delete plan
// @Description  Fails with 409 while active members hold the plan unless confirm=true.
// @Tags         admin-plans
// @Security     BearerAuth
// @Produce      json
// @Param        planID   path      int   true   "Plan ID"
// @Param        confirm  query     bool  false  "Acknowledge member impact"
// @Success      200      {object}  api.MessageResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.PlanInUseResponse
// @Router       /admin/plans/{planID} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}

	confirm, _ := strconv.ParseBool(c.DefaultQuery("confirm", "false"))
	if err := h.service.Delete(c.Request.Context(), id, confirm); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "plan deleted"})
}

// Statistics godoc
// @Summary      Plan statistics
// @Description  Active member count and projected monthly revenue, recomputed from the roster.
// @Tags         admin-plans
// @Security     BearerAuth
// @Produce      json
// @Param        planID  path      int  true  "Plan ID"
// @Success      200     {object}  Statistics
// @Router       /admin/plans/{planID}/statistics [get]
func (h *Handler) Statistics(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}

	stats, err := h.service.RecomputeStatistics(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func planID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("planID"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid plan id"})
		return 0, false
	}
	return id, true
}

func bindInput(c *gin.Context) (PlanInput, bool) {
	var in PlanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return in, false
	}
	if errs := api.ValidateStruct(in); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return in, false
	}
	return in, true
}

func respondError(c *gin.Context, err error) {
	var invalid *InvalidPlanError
	var inUse *PlanInUseWarning

	switch {
	case errors.Is(err, ErrPlanNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: invalid.Error()})
	case errors.As(err, &inUse):
		c.JSON(http.StatusConflict, api.PlanInUseResponse{
			Error:                inUse.Error(),
			MemberCount:          inUse.MemberCount,
			RequiresConfirmation: true,
		})
	default:
		logger.Error("plan request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to process plan request"})
	}
}
