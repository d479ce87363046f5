package routes

import (
	"github.com/gin-gonic/gin"

	"smartcrm/internal/authz"
	"smartcrm/internal/handlers"
	"smartcrm/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	auth gin.HandlerFunc,
	loginLimiter *middleware.RateLimiter,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	permissionHandler *handlers.PermissionHandler,
	settingsHandler *handlers.SettingsHandler,
	leadHandler *handlers.LeadHandler,
	reportHandler *handlers.ReportHandler,
	dashboardHandler *handlers.DashboardHandler,
	targetHandler *handlers.TargetHandler,
	auditHandler *handlers.AuditHandler,
) *gin.Engine {
	api := r.Group("/api")

	// ---- public
	if loginLimiter != nil {
		api.POST("/login", loginLimiter.Middleware(), authHandler.Login)
	} else {
		api.POST("/login", authHandler.Login)
	}

	// ---- protected
	api.Use(auth)

	api.POST("/logout", authHandler.Logout)
	api.GET("/validate-session", authHandler.ValidateSession)
	api.GET("/user", authHandler.Me)
	api.PUT("/user/password", authHandler.ChangePassword)

	// USERS
	users := api.Group("/users")
	{
		users.GET("", middleware.RequirePermission(authz.CanViewUsers), userHandler.List)
		users.GET("/active", userHandler.ListActive)
		users.POST("", middleware.RequirePermission(authz.CanManageUsers), userHandler.Create)
		users.PUT("/:id", middleware.RequirePermission(authz.CanManageUsers), userHandler.Update)
		users.PUT("/:id/permissions", middleware.RequirePermission(authz.CanManageUsers), userHandler.SetLegacyPermissions)
		users.PUT("/:id/status", middleware.RequirePermission(authz.CanManageUsers), userHandler.SetStatus)
		users.DELETE("/:id", middleware.RequirePermission(authz.CanManageUsers), userHandler.Delete)
		users.POST("/:id/photo", userHandler.UploadPhoto)
		users.GET("/:id/photo", userHandler.Photo)

		// иерархические права
		managePerms := middleware.RequirePermission("users.manage_permissions")
		users.GET("/:id/permissions", managePerms, permissionHandler.ForUser)
		users.POST("/:id/permissions", managePerms, permissionHandler.Replace)
		users.DELETE("/:id/permissions/:pid", managePerms, permissionHandler.Revoke)
	}

	api.GET("/designations", userHandler.ListDesignations)
	api.POST("/designations", middleware.RequirePermission(authz.CanManageUsers), userHandler.CreateDesignation)

	// PERMISSIONS
	perms := api.Group("/permissions", middleware.RequirePermission("users.manage_permissions"))
	{
		perms.GET("", permissionHandler.List)
		perms.GET("/tree", permissionHandler.Tree)
	}
	api.POST("/check-permission", permissionHandler.Check)

	// LEAD SETTINGS
	api.GET("/lead-settings", settingsHandler.GetAll)
	api.POST("/lead-settings",
		middleware.RequirePermission(authz.CanManageUsers, "lead_settings.action.edit"),
		settingsHandler.Save,
	)

	// LEADS
	leads := api.Group("/leads")
	{
		view := middleware.RequirePermission(authz.CanViewLeads)
		edit := middleware.RequirePermission(authz.CanEditLeads)

		leads.GET("", view, leadHandler.List)
		leads.POST("", middleware.RequirePermission(authz.CanCreateLeads), leadHandler.Create)
		leads.POST("/recalculate-percentages", middleware.RequireAdmin(), leadHandler.RecalculatePercentages)
		leads.GET("/:id", view, leadHandler.Get)
		leads.PUT("/:id", edit, leadHandler.Update)
		leads.DELETE("/:id", middleware.RequirePermission(authz.CanDeleteLeads), leadHandler.Delete)
		leads.GET("/:id/export", middleware.RequirePermission("leads.action.export", authz.CanExportData), leadHandler.Export)

		leads.POST("/:id/reports", edit, reportHandler.Upload)
		leads.GET("/:id/reports", view, reportHandler.List)
		leads.GET("/:id/reports/:rid/download", view, reportHandler.Download)
		leads.DELETE("/:id/reports/:rid", edit, reportHandler.Delete)
	}

	// DASHBOARD
	api.GET("/dashboard/stats", dashboardHandler.Stats)

	// TARGETS
	targets := api.Group("/targets")
	{
		targets.GET("", targetHandler.List)
		targets.POST("", middleware.RequirePermission("target_management.action.add"), targetHandler.Create)
		targets.POST("/calculate-all", middleware.RequireAdmin(), targetHandler.CalculateAll)
		targets.PUT("/:id", middleware.RequirePermission("target_management.action.edit"), targetHandler.Update)
		targets.DELETE("/:id", middleware.RequirePermission("target_management.action.delete"), targetHandler.Delete)
		targets.POST("/:id/calculate-progress", targetHandler.CalculateProgress)
	}

	// AUDIT
	api.POST("/audit-log", auditHandler.LogActivity)
	api.POST("/audit-system-info", auditHandler.SystemInfo)
	audit := api.Group("/audit", middleware.RequirePermission("control_panel.audit_logs"))
	{
		audit.GET("/logs", auditHandler.Logs)
		audit.GET("/security", auditHandler.Security)
	}

	return r
}
