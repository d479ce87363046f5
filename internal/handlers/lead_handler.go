package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartcrm/internal/models"
	"smartcrm/internal/services"
)

type LeadHandler struct {
	service services.LeadService
	audit   Auditor
}

func NewLeadHandler(service services.LeadService, audit Auditor) *LeadHandler {
	return &LeadHandler{service: service, audit: audit}
}

// leadID resolves the :id path value, which may be a row id or a business lead id.
func (h *LeadHandler) leadID(c *gin.Context) (int, bool) {
	ref := strings.TrimSpace(c.Param("id"))
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	id, err := h.service.Resolve(c.Request.Context(), ref)
	if err != nil {
		respondError(c, "resolve lead", err)
		return 0, false
	}
	return id, true
}

// @Summary      Список лидов
// @Description  Не-админы видят только созданные ими или назначенные на них лиды
// @Tags         Leads
// @Produce      json
// @Param        page    query  int     false  "Страница"
// @Param        limit   query  int     false  "Размер страницы (макс. 500)"
// @Param        status  query  string  false  "Статус"
// @Param        owner   query  string  false  "Владелец"
// @Param        search  query  string  false  "Поиск"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/leads [get]
func (h *LeadHandler) List(c *gin.Context) {
	f := models.LeadFilter{
		Status: strings.TrimSpace(c.Query("status")),
		Owner:  strings.TrimSpace(c.Query("owner")),
		Search: strings.TrimSpace(c.Query("search")),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 0),
	}
	leads, p, err := h.service.List(c.Request.Context(), subject(c), f)
	if err != nil {
		respondError(c, "list leads", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": leads, "pagination": p})
}

// @Summary   Лид с историей
// @Tags      Leads
// @Produce   json
// @Param     id  path  string  true  "ID лида (число или lead_id)"
// @Success   200  {object}  map[string]interface{}
// @Failure   403  {object}  map[string]string
// @Failure   404  {object}  map[string]string
// @Router    /api/leads/{id} [get]
func (h *LeadHandler) Get(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}
	d, err := h.service.Get(c.Request.Context(), subject(c), id)
	if err != nil {
		respondError(c, "get lead", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": d})
}

// @Summary   Создать лид
// @Tags      Leads
// @Accept    json
// @Produce   json
// @Param     lead  body  object  true  "Поля лида"
// @Success   201   {object}  map[string]interface{}
// @Failure   400   {object}  map[string]string
// @Router    /api/leads [post]
func (h *LeadHandler) Create(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lead, err := h.service.Create(c.Request.Context(), subject(c), body)
	if err != nil {
		status := respondError(c, "create lead", err)
		record(c, h.audit, "create", "lead", "-", status, map[string]any{"error": err.Error()})
		return
	}
	record(c, h.audit, "create", "lead", lead.LeadID, http.StatusCreated,
		fmt.Sprintf("Created lead %s for %s", lead.LeadID, lead.CompanyName))
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": lead, "lead_id": lead.LeadID})
}

// @Summary   Обновить лид
// @Tags      Leads
// @Accept    json
// @Produce   json
// @Param     id    path  string  true  "ID лида"
// @Param     lead  body  object  true  "Изменяемые поля"
// @Success   200   {object}  map[string]interface{}
// @Failure   400   {object}  map[string]string
// @Router    /api/leads/{id} [put]
func (h *LeadHandler) Update(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lead, err := h.service.Update(c.Request.Context(), subject(c), id, body)
	if err != nil {
		status := respondError(c, "update lead", err)
		record(c, h.audit, "update", "lead", itoa(id), status, map[string]any{"error": err.Error()})
		return
	}
	fields := make([]string, 0, len(body))
	for k := range body {
		fields = append(fields, k)
	}
	record(c, h.audit, "update", "lead", lead.LeadID, http.StatusOK, map[string]any{"fields": fields})
	c.JSON(http.StatusOK, gin.H{"success": true, "data": lead})
}

// @Summary   Удалить лид
// @Tags      Leads
// @Param     id  path  string  true  "ID лида"
// @Success   200  {object}  map[string]interface{}
// @Router    /api/leads/{id} [delete]
func (h *LeadHandler) Delete(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}
	leadID, err := h.service.Delete(c.Request.Context(), subject(c), id)
	if err != nil {
		status := respondError(c, "delete lead", err)
		record(c, h.audit, "delete", "lead", itoa(id), status, err.Error())
		return
	}
	record(c, h.audit, "delete", "lead", leadID, http.StatusOK, "Lead deleted")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Lead deleted"})
}

// @Summary   Пересчитать проценты по статусам
// @Tags      Leads
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Router    /api/leads/recalculate-percentages [post]
func (h *LeadHandler) RecalculatePercentages(c *gin.Context) {
	n, err := h.service.RecalculatePercentages(c.Request.Context())
	if err != nil {
		respondError(c, "recalculate percentages", err)
		return
	}
	record(c, h.audit, "recalculate", "lead", "-", http.StatusOK, map[string]any{"updated": n})
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

// @Summary   Экспорт лида в PDF
// @Tags      Leads
// @Produce   application/pdf
// @Param     id  path  string  true  "ID лида"
// @Success   200
// @Router    /api/leads/{id}/export [get]
func (h *LeadHandler) Export(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}
	data, name, err := h.service.Export(c.Request.Context(), subject(c), id)
	if err != nil {
		respondError(c, "export lead", err)
		return
	}
	record(c, h.audit, "export", "lead", strings.TrimSuffix(name, ".pdf"), http.StatusOK, nil)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/pdf", data)
}
