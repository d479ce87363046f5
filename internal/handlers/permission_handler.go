package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/services"
)

type PermissionHandler struct {
	service *services.PermissionService
	audit   Auditor
}

func NewPermissionHandler(service *services.PermissionService, audit Auditor) *PermissionHandler {
	return &PermissionHandler{service: service, audit: audit}
}

// @Summary   Каталог прав (плоский список)
// @Tags      Permissions
// @Produce   json
// @Success   200  {array}  models.Permission
// @Router    /api/permissions [get]
func (h *PermissionHandler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, "list permissions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
}

// @Summary   Каталог прав (дерево)
// @Tags      Permissions
// @Produce   json
// @Success   200  {array}  models.PermissionNode
// @Router    /api/permissions/tree [get]
func (h *PermissionHandler) Tree(c *gin.Context) {
	tree, err := h.service.Tree(c.Request.Context())
	if err != nil {
		respondError(c, "permission tree", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": tree})
}

// @Summary   Права пользователя
// @Tags      Permissions
// @Produce   json
// @Param     id  path  int  true  "ID пользователя"
// @Success   200  {object}  models.UserPermissionsView
// @Router    /api/users/{id}/permissions [get]
func (h *PermissionHandler) ForUser(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	view, err := h.service.ForUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, "user permissions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

// @Summary   Заменить права пользователя
// @Tags      Permissions
// @Accept    json
// @Param     id    path  int                              true  "ID пользователя"
// @Param     body  body  models.AssignPermissionsRequest  true  "permission_ids"
// @Success   200   {object}  map[string]interface{}
// @Router    /api/users/{id}/permissions [post]
func (h *PermissionHandler) Replace(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req models.AssignPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	by, _ := getUserAndRole(c)
	if err := h.service.Replace(c.Request.Context(), id, req.PermissionIDs, by); err != nil {
		status := respondError(c, "replace permissions", err)
		record(c, h.audit, "update", "user_permissions", itoa(id), status, err.Error())
		return
	}
	record(c, h.audit, "update", "user_permissions", itoa(id), http.StatusOK, map[string]any{"permission_ids": req.PermissionIDs})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Permissions updated"})
}

// @Summary   Отозвать право
// @Tags      Permissions
// @Param     id   path  int  true  "ID пользователя"
// @Param     pid  path  int  true  "ID права"
// @Success   200  {object}  map[string]interface{}
// @Failure   404  {object}  map[string]string
// @Router    /api/users/{id}/permissions/{pid} [delete]
func (h *PermissionHandler) Revoke(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	pid, ok := paramInt(c, "pid")
	if !ok {
		return
	}
	if err := h.service.Revoke(c.Request.Context(), id, pid); err != nil {
		respondError(c, "revoke permission", err)
		return
	}
	record(c, h.audit, "delete", "user_permissions", itoa(id), http.StatusOK, map[string]any{"permission_id": pid})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary   Проверить право текущего пользователя
// @Tags      Permissions
// @Accept    json
// @Param     body  body  models.CheckPermissionRequest  true  "permission_key"
// @Success   200   {object}  map[string]bool
// @Router    /api/check-permission [post]
func (h *PermissionHandler) Check(c *gin.Context) {
	var req models.CheckPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_permission": authz.Check(subject(c), req.PermissionKey)})
}
