package authz

import "strings"

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleSales   = "sales"
	RoleViewer  = "viewer"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleSales, RoleViewer:
		return true
	}
	return false
}

func IsAdmin(role string) bool {
	return role == RoleAdmin
}

// Legacy boolean permissions stored as JSON on the user row.
const (
	CanViewLeads   = "can_view_leads"
	CanCreateLeads = "can_create_leads"
	CanEditLeads   = "can_edit_leads"
	CanDeleteLeads = "can_delete_leads"
	CanViewUsers   = "can_view_users"
	CanManageUsers = "can_manage_users"
	CanViewReports = "can_view_reports"
	CanExportData  = "can_export_data"
)

var legacyKeys = []string{
	CanViewLeads, CanCreateLeads, CanEditLeads, CanDeleteLeads,
	CanViewUsers, CanManageUsers, CanViewReports, CanExportData,
}

// DefaultLegacyPermissions returns the flag set a new user gets when none is supplied.
// Viewers start without create and edit; admins bypass checks anyway.
func DefaultLegacyPermissions(role string) map[string]bool {
	out := make(map[string]bool, len(legacyKeys))
	for _, k := range legacyKeys {
		out[k] = false
	}
	out[CanViewLeads] = true
	out[CanCreateLeads] = true
	out[CanEditLeads] = true
	out[CanViewReports] = true
	out[CanExportData] = true
	if role == RoleViewer {
		out[CanCreateLeads] = false
		out[CanEditLeads] = false
	}
	return out
}

// legacyAliases maps an old flag onto the hierarchical keys that imply it.
var legacyAliases = map[string][]string{
	CanViewLeads:   {"leads", "leads.view_table"},
	CanCreateLeads: {"add_lead", "leads.action.add"},
	CanEditLeads:   {"leads.action.edit"},
	CanDeleteLeads: {"leads.action.delete"},
	CanViewUsers:   {"users", "control_panel"},
	CanManageUsers: {"control_panel", "users"},
}

// Subject is the authenticated caller as seen by permission checks.
type Subject struct {
	UserID   int
	Username string
	FullName string
	Role     string
	Legacy   map[string]bool
	Keys     []string
}

func (s *Subject) IsAdmin() bool {
	return s != nil && IsAdmin(s.Role)
}

// HasPermission matches key against granted keys along the dotted hierarchy:
// exact match, a granted ancestor, or a granted descendant.
func HasPermission(key string, granted []string) bool {
	if key == "" {
		return false
	}
	for _, g := range granted {
		if g == "" {
			continue
		}
		if g == key {
			return true
		}
		// "leads" grants "leads.action.edit"
		if strings.HasPrefix(key, g+".") {
			return true
		}
		// "leads.action.edit" opens "leads"
		if strings.HasPrefix(g, key+".") {
			return true
		}
	}
	return false
}

// Check resolves perm for the subject: admin bypass, hierarchical keys,
// legacy aliases, then the legacy flag itself.
func Check(s *Subject, perm string) bool {
	if s == nil {
		return false
	}
	if s.IsAdmin() {
		return true
	}
	if HasPermission(perm, s.Keys) {
		return true
	}
	for _, alias := range legacyAliases[perm] {
		if HasPermission(alias, s.Keys) {
			return true
		}
	}
	return s.Legacy[perm]
}

// CheckAny reports whether any of perms is granted.
func CheckAny(s *Subject, perms ...string) bool {
	for _, p := range perms {
		if Check(s, p) {
			return true
		}
	}
	return false
}

var pageRoutes = []struct {
	key   string
	route string
}{
	{"dashboard", "/dashboard"},
	{"leads", "/leads"},
	{"add_lead", "/add-lead"},
	{"target_management", "/target-management"},
	{"lead_settings", "/lead-settings"},
	{"users", "/users"},
	{"control_panel", "/control-panel"},
}

// DefaultRoute picks the first page the subject may open after login.
func DefaultRoute(s *Subject) string {
	if s == nil {
		return "/dashboard"
	}
	if s.IsAdmin() {
		return "/dashboard"
	}
	for _, p := range pageRoutes {
		if HasPermission(p.key, s.Keys) {
			return p.route
		}
	}
	if s.Legacy[CanViewLeads] {
		return "/leads"
	}
	return "/dashboard"
}
