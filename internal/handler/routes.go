package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/behavior-tracker-api/internal/middleware"
	"github.com/noah-isme/behavior-tracker-api/internal/models"
	"github.com/noah-isme/behavior-tracker-api/internal/service"
)

// Handlers bundles every HTTP handler mounted by RegisterRoutes. Nil handlers
// leave their routes unmounted.
type Handlers struct {
	Metrics  *MetricsHandler
	Risk     *RiskHandler
	Exports  *ExportHandler
	Rooms    *RoomHandler
	Behavior *BehaviorHandler
	Schools  *SchoolHandler
	Students *StudentHandler
	Classes  *ClassHandler
	Reports  *ReportHandler
}

// RouterConfig carries the cross-cutting dependencies of the route table.
type RouterConfig struct {
	APIPrefix string
	Auth      middleware.TokenValidator
	Metrics   *service.MetricsService
	Audit     middleware.AuditWriter
	Logger    *zap.Logger
}

// RegisterRoutes mounts the API on r. Health, readiness and metrics stay at the
// root; everything else lives under APIPrefix and requires a bearer token,
// except signed report downloads whose token is the credential.
func RegisterRoutes(r *gin.Engine, cfg RouterConfig, h Handlers) {
	r.Use(middleware.Metrics(cfg.Metrics))

	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	if h.Reports != nil {
		api.GET("/export/:token", h.Reports.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(cfg.Auth))

	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff, models.RoleTeacher)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	admin := middleware.RequireRoles(models.RoleAdmin)

	if h.Risk != nil {
		secured.GET("/risk", anyRole, h.Risk.View)
		secured.GET("/risk-export", anyRole, h.Risk.Export)
	}

	if h.Exports != nil {
		secured.GET("/logs-export", anyRole, h.Exports.Logs)
		secured.GET("/students/:id/logs-export", anyRole, h.Exports.Student)
		secured.GET("/classes/:id/logs-export", anyRole, h.Exports.Class)
	}

	if h.Rooms != nil {
		rooms := secured.Group("/rooms", anyRole)
		rooms.GET("", h.Rooms.List)
		rooms.POST("", h.Rooms.Ensure)
		rooms.GET("/:id/messages", h.Rooms.Messages)
		rooms.POST("/:id/messages", h.Rooms.PostMessage)
	}

	if h.Behavior != nil {
		logs := secured.Group("/logs")
		logs.GET("", anyRole, h.Behavior.List)
		logs.POST("", anyRole, h.Behavior.Create)
		logs.DELETE("/:id", staff, middleware.Audit(cfg.Audit, cfg.Logger, models.AuditActionLogDelete, "behavior_log"), h.Behavior.Delete)

		secured.DELETE("/admin/logs", admin, middleware.Audit(cfg.Audit, cfg.Logger, models.AuditActionLogPurge, "behavior_log"), h.Behavior.Purge)
	}

	if h.Schools != nil {
		secured.GET("/schools", anyRole, h.Schools.List)
		secured.POST("/schools", admin, h.Schools.Create)
	}

	if h.Students != nil {
		secured.GET("/students", anyRole, h.Students.List)
		secured.GET("/students/:id", anyRole, h.Students.Get)
		secured.POST("/students", staff, h.Students.Create)
	}

	if h.Classes != nil {
		secured.GET("/classes", anyRole, h.Classes.List)
		secured.GET("/classes/:id", anyRole, h.Classes.Get)
		secured.POST("/classes", staff, h.Classes.Create)
	}

	if h.Reports != nil {
		secured.POST("/reports/risk", anyRole, h.Reports.EnqueueRisk)
		secured.GET("/reports/url", anyRole, h.Reports.SignedURL)
	}
}
