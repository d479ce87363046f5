package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"smartcrm/internal/authz"
)

func TestPermissionHandler_Check(t *testing.T) {
	cases := []struct {
		name string
		sub  *authz.Subject
		key  string
		want bool
	}{
		{"admin", &authz.Subject{UserID: 1, Role: authz.RoleAdmin}, "control_panel.backup", true},
		{"parent grant opens child", &authz.Subject{UserID: 2, Role: authz.RoleSales, Keys: []string{"leads"}}, "leads.action.edit", true},
		{"child grant opens parent", &authz.Subject{UserID: 2, Role: authz.RoleSales, Keys: []string{"leads.action.edit"}}, "leads", true},
		{"unrelated", &authz.Subject{UserID: 2, Role: authz.RoleSales, Keys: []string{"dashboard"}}, "users.manage_permissions", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewPermissionHandler(nil, nil)
			r := newRouter(tc.sub)
			r.POST("/api/check-permission", h.Check)

			w := doJSON(r, http.MethodPost, "/api/check-permission", map[string]string{"permission_key": tc.key})

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.want, decode(t, w)["has_permission"])
		})
	}
}

func TestPermissionHandler_CheckRequiresKey(t *testing.T) {
	r := newRouter(sales)
	r.POST("/api/check-permission", NewPermissionHandler(nil, nil).Check)

	w := doJSON(r, http.MethodPost, "/api/check-permission", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
