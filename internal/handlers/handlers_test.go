package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"smartcrm/internal/authz"
	"smartcrm/internal/middleware"
	"smartcrm/internal/models"
)

type recordingAuditor struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *recordingAuditor) Record(_ context.Context, e models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAuditor) last(t *testing.T) models.AuditLog {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	require.NotEmpty(t, a.entries, "no audit entry recorded")
	return a.entries[len(a.entries)-1]
}

// asUser puts an authenticated caller on the context the way Auth does.
func asUser(s *authz.Subject) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CtxUserID, s.UserID)
		c.Set(middleware.CtxUsername, s.Username)
		c.Set(middleware.CtxRole, s.Role)
		c.Set(middleware.CtxSubject, s)
		c.Set(middleware.CtxSessionID, "session-id")
		c.Next()
	}
}

func newRouter(s *authz.Subject) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if s != nil {
		r.Use(asUser(s))
	}
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// anyCtx matches any context argument.
var anyCtx = mock.Anything
