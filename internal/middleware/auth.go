package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"smartcrm/internal/authz"
	"smartcrm/internal/session"
)

const (
	SessionCookie = "session_token"

	CtxUserID    = "user_id"
	CtxUsername  = "username"
	CtxRole      = "role"
	CtxSubject   = "subject"
	CtxSessionID = "session_id"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Session, error)
}

type SubjectLoader interface {
	LoadSubject(ctx context.Context, userID int) (*authz.Subject, error)
}

// список публичных эндпоинтов, которые не требуют токена
func isPublicPath(path string) bool {
	switch path {
	case "/api/login", "/healthz":
		return true
	}
	return strings.HasPrefix(path, "/swagger")
}

// TokenFromRequest reads the session cookie first, then a Bearer header.
func TokenFromRequest(c *gin.Context) string {
	if v, err := c.Cookie(SessionCookie); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Auth resolves the session and the caller's current grants. Grants are
// reloaded on every request so permission edits apply without a new login.
func Auth(authn Authenticator, subjects SubjectLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		// пропускаем preflight
		if c.Request.Method == http.MethodOptions || isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		tokenStr := TokenFromRequest(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		sess, err := authn.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}
		subject, err := subjects.LoadSubject(c.Request.Context(), sess.UserID)
		if err != nil {
			log.Info().Err(err).Int("user_id", sess.UserID).Msg("[auth][middleware] subject not loaded")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		c.Set(CtxUserID, sess.UserID)
		c.Set(CtxUsername, sess.Username)
		c.Set(CtxRole, subject.Role)
		c.Set(CtxSubject, subject)
		c.Set(CtxSessionID, sess.ID)

		c.Next()
	}
}

// SubjectFrom returns the subject stored by Auth, or nil.
func SubjectFrom(c *gin.Context) *authz.Subject {
	v, ok := c.Get(CtxSubject)
	if !ok {
		return nil
	}
	s, _ := v.(*authz.Subject)
	return s
}
