package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartcrm/internal/models"
	"smartcrm/internal/services"
)

type TargetHandler struct {
	service *services.TargetService
	audit   Auditor
}

func NewTargetHandler(service *services.TargetService, audit Auditor) *TargetHandler {
	return &TargetHandler{service: service, audit: audit}
}

// @Summary   Активные цели
// @Tags      Targets
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Router    /api/targets [get]
func (h *TargetHandler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), subject(c))
	if err != nil {
		respondError(c, "list targets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
}

// @Summary   Создать цель
// @Tags      Targets
// @Accept    json
// @Produce   json
// @Param     body  body  models.TargetCreate  true  "Цель"
// @Success   201   {object}  models.Target
// @Router    /api/targets [post]
func (h *TargetHandler) Create(c *gin.Context) {
	var req models.TargetCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.service.Create(c.Request.Context(), subject(c), req)
	if err != nil {
		respondError(c, "create target", err)
		return
	}
	record(c, h.audit, "create", "target", itoa(t.ID), http.StatusCreated, map[string]any{"name": t.Name, "type": t.Type})
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": t})
}

// @Summary   Обновить цель
// @Tags      Targets
// @Accept    json
// @Param     id    path  int                  true  "ID цели"
// @Param     body  body  models.TargetUpdate  true  "Поля"
// @Success   200   {object}  map[string]interface{}
// @Router    /api/targets/{id} [put]
func (h *TargetHandler) Update(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req models.TargetUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.Update(c.Request.Context(), id, req); err != nil {
		respondError(c, "update target", err)
		return
	}
	record(c, h.audit, "update", "target", itoa(id), http.StatusOK, "Target updated")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary   Деактивировать цель
// @Tags      Targets
// @Param     id  path  int  true  "ID цели"
// @Success   200  {object}  map[string]interface{}
// @Router    /api/targets/{id} [delete]
func (h *TargetHandler) Delete(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, "delete target", err)
		return
	}
	record(c, h.audit, "delete", "target", itoa(id), http.StatusOK, "Target deactivated")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary   Пересчитать прогресс цели
// @Tags      Targets
// @Produce   json
// @Param     id  path  int  true  "ID цели"
// @Success   200  {object}  models.TargetProgress
// @Router    /api/targets/{id}/calculate-progress [post]
func (h *TargetHandler) CalculateProgress(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	p, err := h.service.CalculateProgress(c.Request.Context(), id)
	if err != nil {
		status := respondError(c, "calculate target", err)
		record(c, h.audit, "calculate", "target", itoa(id), status, err.Error())
		return
	}
	record(c, h.audit, "calculate", "target", itoa(id), http.StatusOK, map[string]any{
		"current_value": p.CurrentValue, "target_value": p.TargetValue,
	})
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"target_id":     p.TargetID,
		"current_value": p.CurrentValue,
		"target_value":  p.TargetValue,
		"percentage":    p.Percentage,
		"period":        p.Period,
		"date_range":    p.DateRange,
	})
}

// @Summary   Пересчитать все цели
// @Tags      Targets
// @Produce   json
// @Success   200  {object}  models.TargetRecalcResult
// @Router    /api/targets/calculate-all [post]
func (h *TargetHandler) CalculateAll(c *gin.Context) {
	res, err := h.service.CalculateAll(c.Request.Context())
	if err != nil {
		respondError(c, "calculate all targets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": res.Updated, "errors": res.Errors})
}
