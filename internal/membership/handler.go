package membership

import (
	"net/http"
	"time"

	"gymflow/internal/api"
	"gymflow/internal/auth"
	"gymflow/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
	now     func() time.Time
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

// GetMine godoc
// @Summary      My membership
// @Description  Current subscription window, plan and price breakdown. A deleted plan is reported as no plan.
// @Tags         membership
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Overview
// @Router       /me/membership [get]
func (h *Handler) GetMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	o, err := h.service.Overview(c.Request.Context(), userID, h.now())
	if err != nil {
		logger.Error("failed to load membership overview", "member_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load membership"})
		return
	}
	c.JSON(http.StatusOK, o)
}
