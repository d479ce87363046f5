package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/services"
)

type ReportService interface {
	Upload(ctx context.Context, sub *authz.Subject, leadID int, up services.ReportUpload) (*models.LeadReport, error)
	List(ctx context.Context, sub *authz.Subject, leadID int) ([]models.LeadReport, error)
	Download(ctx context.Context, sub *authz.Subject, leadID int, id string) ([]byte, string, error)
	Delete(ctx context.Context, sub *authz.Subject, leadID int, id string) error
}

type ReportHandler struct {
	leads   *LeadHandler
	reports ReportService
	audit   Auditor
}

func NewReportHandler(leads *LeadHandler, reports ReportService, audit Auditor) *ReportHandler {
	return &ReportHandler{leads: leads, reports: reports, audit: audit}
}

// @Summary   Загрузить PDF-отчёт к лиду
// @Tags      Lead reports
// @Accept    multipart/form-data
// @Produce   json
// @Param     id           path      string  true   "ID лида"
// @Param     file         formData  file    true   "PDF"
// @Param     name         formData  string  false  "Название"
// @Param     description  formData  string  false  "Описание"
// @Success   201  {object}  models.LeadReport
// @Failure   400  {object}  map[string]string
// @Router    /api/leads/{id}/reports [post]
func (h *ReportHandler) Upload(c *gin.Context) {
	leadID, ok := h.leads.leadID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fh.Size > services.MaxReportSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, "open report", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, services.MaxReportSize+1))
	if err != nil {
		respondError(c, "read report", err)
		return
	}

	rep, err := h.reports.Upload(c.Request.Context(), subject(c), leadID, services.ReportUpload{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		status := respondError(c, "upload report", err)
		record(c, h.audit, "upload_report", "lead", itoa(leadID), status, err.Error())
		return
	}
	record(c, h.audit, "upload_report", "lead", itoa(leadID), http.StatusCreated, map[string]any{"report_id": rep.ID, "name": rep.Name})
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": rep})
}

// @Summary   Отчёты лида
// @Tags      Lead reports
// @Produce   json
// @Param     id  path  string  true  "ID лида"
// @Success   200  {object}  map[string]interface{}
// @Router    /api/leads/{id}/reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	leadID, ok := h.leads.leadID(c)
	if !ok {
		return
	}
	list, err := h.reports.List(c.Request.Context(), subject(c), leadID)
	if err != nil {
		respondError(c, "list reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
}

// @Summary   Скачать отчёт
// @Tags      Lead reports
// @Produce   application/pdf
// @Param     id   path  string  true  "ID лида"
// @Param     rid  path  string  true  "ID отчёта"
// @Success   200
// @Router    /api/leads/{id}/reports/{rid}/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	leadID, ok := h.leads.leadID(c)
	if !ok {
		return
	}
	data, name, err := h.reports.Download(c.Request.Context(), subject(c), leadID, c.Param("rid"))
	if err != nil {
		respondError(c, "download report", err)
		return
	}
	name = strings.ReplaceAll(name, `"`, "")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/pdf", data)
}

// @Summary   Удалить отчёт
// @Tags      Lead reports
// @Param     id   path  string  true  "ID лида"
// @Param     rid  path  string  true  "ID отчёта"
// @Success   200  {object}  map[string]interface{}
// @Router    /api/leads/{id}/reports/{rid} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	leadID, ok := h.leads.leadID(c)
	if !ok {
		return
	}
	rid := c.Param("rid")
	if err := h.reports.Delete(c.Request.Context(), subject(c), leadID, rid); err != nil {
		status := respondError(c, "delete report", err)
		record(c, h.audit, "delete_report", "lead", itoa(leadID), status, err.Error())
		return
	}
	record(c, h.audit, "delete_report", "lead", itoa(leadID), http.StatusOK, map[string]any{"report_id": rid})
	c.JSON(http.StatusOK, gin.H{"success": true})
}
