package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sms-storage/internal/middleware"
	"github.com/noah-isme/sms-storage/internal/models"
)

// Handlers groups every HTTP handler.
type Handlers struct {
	Auth       *AuthHandler
	Students   *StudentHandler
	Attendance *AttendanceHandler
	Storage    *StorageHandler
	Settings   *SettingsHandler
	Metrics    *MetricsHandler
}

// Register mounts the API under prefix. Every mutation needs an administrator access token;
// students may read their own record and attendance.
func Register(r *gin.Engine, prefix string, h Handlers, tokens middleware.TokenValidator, metricsEnabled bool) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if metricsEnabled {
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	authed := middleware.JWT(tokens)
	admin := middleware.RequireAdmin()
	adminOrSelf := middleware.RBAC(string(models.RoleAdmin), middleware.RoleSelf)

	api := r.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/logout", authed, h.Auth.Logout)
	auth.GET("/me", middleware.OptionalJWT(tokens), h.Auth.Me)
	auth.POST("/admin/login", h.Auth.AdminLogin)
	auth.POST("/admin/logout", authed, admin, h.Auth.Logout)
	auth.PUT("/admin/password", authed, admin, h.Auth.ChangeAdminPassword)

	students := api.Group("/students", authed)
	students.GET("", admin, h.Students.List)
	students.GET("/:id", adminOrSelf, h.Students.Get)
	students.GET("/:id/attendance", adminOrSelf, h.Attendance.StudentHistory)
	students.POST("", admin, h.Students.Create)
	students.POST("/bulk", admin, h.Students.CreateBulk)
	students.POST("/import", admin, h.Students.Import)
	students.PATCH("/:id", admin, h.Students.Update)
	students.DELETE("/:id", admin, h.Students.Delete)

	attendance := api.Group("/attendance", authed, admin)
	attendance.GET("/:year/:month", h.Attendance.GetMonth)
	attendance.PUT("/:year/:month", h.Attendance.SaveMonth)
	attendance.GET("/:year/:month/export", h.Attendance.Export)

	storage := api.Group("/storage")
	storage.GET("/status", h.Storage.Status)
	storage.POST("/check", authed, admin, h.Storage.Check)
	storage.PUT("/mode", authed, admin, h.Storage.SetMode)

	settings := api.Group("/settings")
	settings.GET("", h.Settings.Get)
	settings.PUT("", authed, admin, h.Settings.Update)
}
