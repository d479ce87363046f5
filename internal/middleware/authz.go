package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartcrm/internal/authz"
)

func forbid(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msg})
}

// RequirePermission allows the request when Check passes for any of perms.
func RequirePermission(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := SubjectFrom(c)
		if s == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		if !authz.CheckAny(s, perms...) {
			forbid(c, "Insufficient permissions")
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := SubjectFrom(c)
		if s == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		if !s.IsAdmin() {
			forbid(c, "Admin access required")
			return
		}
		c.Next()
	}
}
