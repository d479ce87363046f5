package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartcrm/internal/models"
	"smartcrm/internal/services"
)

type AuditHandler struct {
	service *services.AuditService
}

func NewAuditHandler(service *services.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// @Summary   Записать действие клиента
// @Tags      Audit
// @Accept    json
// @Param     body  body  models.ClientActivity  true  "Действие"
// @Success   200   {object}  map[string]interface{}
// @Router    /api/audit-log [post]
func (h *AuditHandler) LogActivity(c *gin.Context) {
	var req models.ClientActivity
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var details any
	if len(req.Details) > 0 {
		details = req.Details
	}
	e := auditEntry(c, req.Action, req.Resource, "", http.StatusOK, details)
	if req.Path != "" {
		e.Path = req.Path
	}
	e.Description = req.Description
	h.service.Record(c.Request.Context(), e)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary   Сохранить сведения о системе клиента
// @Tags      Audit
// @Accept    json
// @Param     body  body  models.SystemInfoRequest  true  "system_info"
// @Success   200   {object}  map[string]interface{}
// @Router    /api/audit-system-info [post]
func (h *AuditHandler) SystemInfo(c *gin.Context) {
	var req models.SystemInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e := auditEntry(c, "system_info", "system", "", http.StatusOK, req.SystemInfo)
	e.Description = "Client system information"
	h.service.Record(c.Request.Context(), e)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary   Журнал аудита
// @Tags      Audit
// @Produce   json
// @Param     user_id        query  int     false  "Пользователь"
// @Param     action         query  string  false  "Действие"
// @Param     resource_type  query  string  false  "Тип ресурса"
// @Param     date_from      query  string  false  "С (YYYY-MM-DD)"
// @Param     date_to        query  string  false  "По (YYYY-MM-DD)"
// @Param     page           query  int     false  "Страница"
// @Param     limit          query  int     false  "Размер страницы"
// @Success   200  {object}  map[string]interface{}
// @Router    /api/audit/logs [get]
func (h *AuditHandler) Logs(c *gin.Context) {
	f := models.AuditFilter{
		Action:       c.Query("action"),
		ResourceType: c.Query("resource_type"),
		DateFrom:     c.Query("date_from"),
		DateTo:       c.Query("date_to"),
		Page:         queryInt(c, "page", 1),
		Limit:        queryInt(c, "limit", 50),
	}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		f.UserID = id
	}
	logs, page, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, "audit logs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": logs, "pagination": page})
}

// @Summary   События безопасности
// @Tags      Audit
// @Produce   json
// @Success   200  {array}  models.SecurityEvent
// @Router    /api/audit/security [get]
func (h *AuditHandler) Security(c *gin.Context) {
	events, err := h.service.SecurityEvents(c.Request.Context())
	if err != nil {
		respondError(c, "security events", err)
		return
	}
	c.JSON(http.StatusOK, events)
}
