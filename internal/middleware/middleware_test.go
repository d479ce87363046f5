package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcrm/internal/authz"
	"smartcrm/internal/session"
)

type stubAuthn struct {
	token string
	sess  *session.Session
}

func (s stubAuthn) Authenticate(_ context.Context, token string) (*session.Session, error) {
	if token != s.token {
		return nil, session.ErrNotFound
	}
	return s.sess, nil
}

type stubSubjects map[int]*authz.Subject

func (s stubSubjects) LoadSubject(_ context.Context, userID int) (*authz.Subject, error) {
	if sub, ok := s[userID]; ok {
		return sub, nil
	}
	return nil, errors.New("user not found")
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	ok := func(c *gin.Context) {
		uid, _ := c.Get(CtxUserID)
		c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": c.GetString(CtxRole)})
	}
	r.GET("/api/leads", ok)
	r.POST("/api/login", ok)
	r.GET("/healthz", ok)
	return r
}

func do(r http.Handler, method, path string, mod func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if mod != nil {
		mod(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func authEngine() *gin.Engine {
	authn := stubAuthn{token: "good", sess: &session.Session{ID: "sid", UserID: 5, Username: "anna"}}
	subs := stubSubjects{5: {UserID: 5, Role: authz.RoleSales}}
	return newEngine(Auth(authn, subs))
}

func TestAuth_MissingToken(t *testing.T) {
	w := do(authEngine(), http.MethodGet, "/api/leads", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Not authenticated"}`, w.Body.String())
}

func TestAuth_Bearer(t *testing.T) {
	w := do(authEngine(), http.MethodGet, "/api/leads", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer good")
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":5,"role":"sales"}`, w.Body.String())
}

func TestAuth_CookieWins(t *testing.T) {
	w := do(authEngine(), http.MethodGet, "/api/leads", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "good"})
		r.Header.Set("Authorization", "Bearer stale")
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_UnknownSession(t *testing.T) {
	w := do(authEngine(), http.MethodGet, "/api/leads", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer expired")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_DeletedUser(t *testing.T) {
	authn := stubAuthn{token: "good", sess: &session.Session{ID: "sid", UserID: 9}}
	r := newEngine(Auth(authn, stubSubjects{}))
	w := do(r, http.MethodGet, "/api/leads", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer good")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_PublicPaths(t *testing.T) {
	r := authEngine()
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/login", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", nil).Code)
}

func withSubject(s *authz.Subject) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s != nil {
			c.Set(CtxSubject, s)
		}
		c.Next()
	}
}

func TestRequirePermission(t *testing.T) {
	cases := []struct {
		name string
		sub  *authz.Subject
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"admin bypass", &authz.Subject{Role: authz.RoleAdmin}, http.StatusOK},
		{"legacy flag", &authz.Subject{Role: authz.RoleSales, Legacy: map[string]bool{"can_view_leads": true}}, http.StatusOK},
		{"catalog key", &authz.Subject{Role: authz.RoleSales, Keys: []string{"leads.action.export"}}, http.StatusOK},
		{"nothing granted", &authz.Subject{Role: authz.RoleViewer}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newEngine(withSubject(tc.sub), RequirePermission("can_view_leads", "leads.action.export"))
			assert.Equal(t, tc.want, do(r, http.MethodGet, "/api/leads", nil).Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newEngine(withSubject(&authz.Subject{Role: authz.RoleManager}), RequireAdmin())
	w := do(r, http.MethodGet, "/api/leads", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Admin access required"}`, w.Body.String())

	r = newEngine(withSubject(&authz.Subject{Role: authz.RoleAdmin}), RequireAdmin())
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/leads", nil).Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := newEngine(rl.Middleware())

	from := func(ip string) func(*http.Request) {
		return func(r *http.Request) { r.RemoteAddr = ip + ":1234" }
	}
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/login", from("10.0.0.1")).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/login", from("10.0.0.1")).Code)

	w := do(r, http.MethodPost, "/api/login", from("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// другой IP со своим бакетом
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/login", from("10.0.0.2")).Code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.limiter("10.0.0.1")
	require.Len(t, rl.visitors, 1)

	now = now.Add(visitorTTL + time.Second)
	rl.Cleanup()
	assert.Empty(t, rl.visitors)
}
