package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"smartcrm/internal/middleware"
	"smartcrm/internal/models"
	"smartcrm/internal/services"
	"smartcrm/internal/utils"
)

type AuthService interface {
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	ChangePassword(ctx context.Context, userID int, current, next string) error
}

type AuthHandler struct {
	auth         AuthService
	users        services.UserService
	audit        Auditor
	secureCookie bool
}

func NewAuthHandler(auth AuthService, users services.UserService, audit Auditor, secureCookie bool) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, audit: audit, secureCookie: secureCookie}
}

func (h *AuthHandler) setCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", h.secureCookie, true)
}

// @Summary      Вход в систему
// @Description  Проверяет логин/пароль, открывает сессию и ставит cookie session_token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Данные для входа"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      429    {object}  map[string]string
// @Router       /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	username := strings.TrimSpace(req.Username)

	res, err := h.auth.Login(c.Request.Context(), username, req.Password)
	if err != nil {
		status := respondError(c, "login", err)
		e := auditEntry(c, "failed login", "auth", "-", status, map[string]any{"username": username})
		e.Username = username
		if h.audit != nil {
			h.audit.Record(c.Request.Context(), e)
		}
		return
	}

	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	h.setCookie(c, res.Token, maxAge)

	e := auditEntry(c, "login", "auth", "-", http.StatusOK, nil)
	e.UserID = &res.User.ID
	e.Username = res.User.Username
	e.SessionToken = utils.SessionFingerprint(res.SessionID)
	e.Description = "User logged in"
	if h.audit != nil {
		h.audit.Record(c.Request.Context(), e)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"token":           res.Token,
		"user":            res.User,
		"permission_keys": res.PermissionKeys,
		"redirect_to":     res.RedirectTo,
	})
}

// @Summary   Выход
// @Tags      Auth
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Router    /api/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	sid := c.GetString(middleware.CtxSessionID)
	if err := h.auth.Logout(c.Request.Context(), sid); err != nil {
		log.Warn().Err(err).Msg("[auth][logout] session delete failed")
	}
	h.setCookie(c, "", -1)
	record(c, h.audit, "logout", "auth", "-", http.StatusOK, "User logged out")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// @Summary   Проверка сессии
// @Tags      Auth
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Failure   401  {object}  map[string]string
// @Router    /api/validate-session [get]
func (h *AuthHandler) ValidateSession(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	u, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": "Invalid or expired session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "user": u})
}

// @Summary   Текущий пользователь
// @Tags      Auth
// @Produce   json
// @Success   200  {object}  map[string]interface{}
// @Router    /api/user [get]
func (h *AuthHandler) Me(c *gin.Context) {
	s := subject(c)
	u, err := h.users.GetByID(c.Request.Context(), s.UserID)
	if err != nil {
		respondError(c, "me", err)
		return
	}
	keys := s.Keys
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"user":            u,
		"permissions":     s.Legacy,
		"permission_keys": keys,
	})
}

// @Summary   Смена пароля
// @Tags      Auth
// @Accept    json
// @Produce   json
// @Param     body  body      models.ChangePasswordRequest  true  "Текущий и новый пароль"
// @Success   200   {object}  map[string]interface{}
// @Failure   400   {object}  map[string]string
// @Router    /api/user/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := getUserAndRole(c)
	if err := h.auth.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		status := respondError(c, "change password", err)
		record(c, h.audit, "password change", "user", itoa(userID), status, "Password change failed")
		return
	}
	record(c, h.audit, "password change", "user", itoa(userID), http.StatusOK, "Password changed")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated"})
}
