package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/services"
)

const maxPhotoSize = 5 << 20

type UserHandler struct {
	service services.UserService
	audit   Auditor
}

func NewUserHandler(service services.UserService, audit Auditor) *UserHandler {
	return &UserHandler{service: service, audit: audit}
}

// @Summary   Список пользователей
// @Tags      Users
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Router    /api/users [get]
func (h *UserHandler) List(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	users, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "list users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": users})
}

// @Summary   Активные пользователи (для выбора ответственного)
// @Tags      Users
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Router    /api/users/active [get]
func (h *UserHandler) ListActive(c *gin.Context) {
	users, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, "list active users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": users})
}

// @Summary   Создать пользователя
// @Tags      Users
// @Accept    json
// @Produce   json
// @Param     user  body      models.UserCreate  true  "Новый пользователь"
// @Success   201   {object}  models.User
// @Failure   400   {object}  map[string]string
// @Failure   409   {object}  map[string]string
// @Router    /api/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req models.UserCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := getUserAndRole(c)
	u, err := h.service.Create(c.Request.Context(), req, userID)
	if err != nil {
		status := respondError(c, "create user", err)
		record(c, h.audit, "create", "user", "-", status, map[string]any{"username": req.Username, "error": err.Error()})
		return
	}
	record(c, h.audit, "create", "user", itoa(u.ID), http.StatusCreated, map[string]any{"username": u.Username, "role": u.Role})
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": u})
}

// @Summary   Обновить пользователя
// @Tags      Users
// @Accept    json
// @Produce   json
// @Param     id    path      int                true  "ID пользователя"
// @Param     user  body      models.UserUpdate  true  "Изменяемые поля"
// @Success   200   {object}  models.User
// @Router    /api/users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req models.UserUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		status := respondError(c, "update user", err)
		record(c, h.audit, "update", "user", itoa(id), status, err.Error())
		return
	}
	record(c, h.audit, "update", "user", itoa(id), http.StatusOK, "User updated")
	c.JSON(http.StatusOK, gin.H{"success": true, "data": u})
}

type legacyPermissionsRequest struct {
	Permissions map[string]bool `json:"permissions" binding:"required"`
}

// @Summary   Заменить legacy-права пользователя
// @Tags      Users
// @Accept    json
// @Param     id    path  int                       true  "ID пользователя"
// @Param     body  body  legacyPermissionsRequest  true  "Карта прав"
// @Success   200   {object}  map[string]interface{}
// @Router    /api/users/{id}/permissions [put]
func (h *UserHandler) SetLegacyPermissions(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req legacyPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SetLegacyPermissions(c.Request.Context(), id, req.Permissions); err != nil {
		respondError(c, "set legacy permissions", err)
		return
	}
	record(c, h.audit, "update_permissions", "user", itoa(id), http.StatusOK, req.Permissions)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type userStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// @Summary   Активировать / деактивировать пользователя
// @Tags      Users
// @Accept    json
// @Param     id    path  int                true  "ID пользователя"
// @Param     body  body  userStatusRequest  true  "Статус"
// @Success   200   {object}  map[string]interface{}
// @Router    /api/users/{id}/status [put]
func (h *UserHandler) SetStatus(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req userStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SetActive(c.Request.Context(), id, *req.IsActive); err != nil {
		respondError(c, "set user status", err)
		return
	}
	record(c, h.audit, "update_status", "user", itoa(id), http.StatusOK, map[string]any{"is_active": *req.IsActive})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary   Удалить пользователя
// @Tags      Users
// @Param     id  path  int  true  "ID пользователя"
// @Success   200  {object}  map[string]interface{}
// @Failure   400  {object}  map[string]string
// @Router    /api/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	userID, _ := getUserAndRole(c)
	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		status := respondError(c, "delete user", err)
		record(c, h.audit, "delete", "user", itoa(id), status, err.Error())
		return
	}
	record(c, h.audit, "delete", "user", itoa(id), http.StatusOK, "User deleted")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary   Загрузить фото пользователя
// @Tags      Users
// @Accept    multipart/form-data
// @Param     id     path      int   true  "ID пользователя"
// @Param     photo  formData  file  true  "Изображение"
// @Success   200    {object}  map[string]interface{}
// @Failure   403    {object}  map[string]string
// @Router    /api/users/{id}/photo [post]
func (h *UserHandler) UploadPhoto(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	// своё фото может менять каждый, чужое только с can_manage_users
	if sub := subject(c); id != sub.UserID && !authz.Check(sub, authz.CanManageUsers) {
		record(c, h.audit, "upload_photo", "user", itoa(id), http.StatusForbidden, "Permission denied")
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	if fh.Size > maxPhotoSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo is too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, "open photo", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxPhotoSize+1))
	if err != nil {
		respondError(c, "read photo", err)
		return
	}

	key, err := h.service.UploadPhoto(c.Request.Context(), id, fh.Filename, data)
	if err != nil {
		respondError(c, "upload photo", err)
		return
	}
	record(c, h.audit, "upload_photo", "user", itoa(id), http.StatusOK, nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "photo": key})
}

// @Summary   Фото пользователя
// @Tags      Users
// @Produce   octet-stream
// @Param     id  path  int  true  "ID пользователя"
// @Success   200
// @Router    /api/users/{id}/photo [get]
func (h *UserHandler) Photo(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	data, ct, err := h.service.Photo(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get photo", err)
		return
	}
	c.Data(http.StatusOK, ct, data)
}

// @Summary   Должности
// @Tags      Designations
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Router    /api/designations [get]
func (h *UserHandler) ListDesignations(c *gin.Context) {
	list, err := h.service.ListDesignations(c.Request.Context())
	if err != nil {
		respondError(c, "list designations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
}

type designationRequest struct {
	Name string `json:"name" binding:"required"`
}

// @Summary   Добавить должность
// @Tags      Designations
// @Accept    json
// @Param     body  body  designationRequest  true  "Название"
// @Success   201   {object}  models.Designation
// @Failure   409   {object}  map[string]string
// @Router    /api/designations [post]
func (h *UserHandler) CreateDesignation(c *gin.Context) {
	var req designationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.service.CreateDesignation(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, "create designation", err)
		return
	}
	record(c, h.audit, "create", "designation", itoa(d.ID), http.StatusCreated, d.Name)
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": d})
}
