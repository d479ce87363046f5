package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartcrm/internal/services"
)

type DashboardHandler struct {
	service *services.DashboardService
}

func NewDashboardHandler(service *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// @Summary   Статистика для дашборда
// @Tags      Dashboard
// @Produce   json
// @Success   200  {object}  models.DashboardStats
// @Router    /api/dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	st, err := h.service.Stats(c.Request.Context(), subject(c))
	if err != nil {
		respondError(c, "dashboard stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
