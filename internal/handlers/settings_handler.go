package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartcrm/internal/models"
	"smartcrm/internal/services"
)

type SettingsHandler struct {
	settings *services.SettingsService
	audit    Auditor
}

func NewSettingsHandler(settings *services.SettingsService, audit Auditor) *SettingsHandler {
	return &SettingsHandler{settings: settings, audit: audit}
}

// @Summary   Настройки лидов
// @Tags      Lead settings
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Router    /api/lead-settings [get]
func (h *SettingsHandler) GetAll(c *gin.Context) {
	all, err := h.settings.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, "get settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": all})
}

// @Summary   Сохранить настройку
// @Tags      Lead settings
// @Accept    json
// @Produce   json
// @Param     body  body  models.LeadSettingRequest  true  "Тип и данные"
// @Success   200   {object}  map[string]interface{}
// @Failure   400   {object}  map[string]string
// @Router    /api/lead-settings [post]
func (h *SettingsHandler) Save(c *gin.Context) {
	var req models.LeadSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := getUserAndRole(c)
	if err := h.settings.Save(c.Request.Context(), req.Type, req.Data, userID); err != nil {
		status := respondError(c, "save setting", err)
		record(c, h.audit, "update", "lead_settings", req.Type, status, err.Error())
		return
	}
	record(c, h.audit, "update", "lead_settings", req.Type, http.StatusOK, "Lead setting saved")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Settings saved"})
}
