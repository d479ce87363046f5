package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"smartcrm/internal/authz"
	"smartcrm/internal/middleware"
	"smartcrm/internal/models"
	"smartcrm/internal/services"
	"smartcrm/internal/utils"
)

// Auditor stores audit records; it must not fail the request.
type Auditor interface {
	Record(ctx context.Context, e models.AuditLog)
}

// более устойчиво к типам (int / int64 / float64 / string)
func getIntFromCtx(c *gin.Context, key string) (int, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getUserAndRole(c *gin.Context) (userID int, role string) {
	if id, ok := getIntFromCtx(c, middleware.CtxUserID); ok {
		userID = id
	}
	role = c.GetString(middleware.CtxRole)
	return
}

func subject(c *gin.Context) *authz.Subject {
	if s := middleware.SubjectFrom(c); s != nil {
		return s
	}
	uid, role := getUserAndRole(c)
	return &authz.Subject{UserID: uid, Role: role}
}

func paramInt(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return def
}

// statusFor maps service errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNoChanges):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes err and returns the status it used. Internal errors are
// logged and hidden from the client.
func respondError(c *gin.Context, op string, err error) int {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("op", op).Str("path", c.Request.URL.Path).Msg("[http] internal error")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return status
	}
	c.JSON(status, gin.H{"error": err.Error()})
	return status
}

// auditEntry fills the request side of an audit record.
func auditEntry(c *gin.Context, action, resourceType, resourceID string, status int, details any) models.AuditLog {
	e := models.AuditLog{
		Username:     c.GetString(middleware.CtxUsername),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Method:       c.Request.Method,
		Path:         c.Request.URL.Path,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		StatusCode:   status,
		Success:      status < http.StatusBadRequest,
		SessionToken: utils.SessionFingerprint(c.GetString(middleware.CtxSessionID)),
	}
	if uid, ok := getIntFromCtx(c, middleware.CtxUserID); ok {
		e.UserID = &uid
	}
	switch d := details.(type) {
	case nil:
	case string:
		e.Description = d
	default:
		if b, err := json.Marshal(d); err == nil {
			e.Details = b
		}
	}
	return e
}

func record(c *gin.Context, a Auditor, action, resourceType, resourceID string, status int, details any) {
	if a == nil {
		return
	}
	a.Record(c.Request.Context(), auditEntry(c, action, resourceType, resourceID, status, details))
}

func itoa(n int) string { return strconv.Itoa(n) }
