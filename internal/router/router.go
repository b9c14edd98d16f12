package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/handler"
	"github.com/noah-isme/uni-enrollment-api/internal/middleware"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/service"
	"github.com/noah-isme/uni-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-enrollment-api/pkg/middleware/requestid"
)

// Dependencies groups everything the HTTP surface needs.
type Dependencies struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	APIPrefix      string
	EnableDocs     bool

	Tokens  middleware.TokenValidator
	Auditor middleware.AuditRecorder
	Metrics *service.MetricsService

	Auth          *handler.AuthHandler
	Courses       *handler.CourseHandler
	Rosters       *handler.RosterHandler
	Enrollments   *handler.EnrollmentHandler
	Notifications *handler.NotificationHandler
	Reports       *handler.ReportHandler
	Observability *handler.MetricsHandler
}

// New builds the gin engine with global middleware and every route registered.
func New(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	Register(r, deps)
	return r
}

// Register mounts the API routes on r.
func Register(r *gin.Engine, deps Dependencies) {
	r.GET("/health", deps.Observability.Health)
	r.GET("/ready", deps.Observability.Ready)
	r.GET("/metrics", deps.Observability.Prometheus)
	if deps.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.APIPrefix)
	api.POST("/auth/login", deps.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))

	adminOnly := middleware.Allow(models.RoleAdmin).Handler()

	secured.GET("/auth/me", deps.Auth.Me)

	courses := secured.Group("/courses", middleware.WithResponseMeta())
	courses.GET("", deps.Courses.List)
	courses.GET("/:id", deps.Courses.Get)
	courses.GET("/:id/roster", middleware.Allow(models.RoleAdmin, models.RoleFaculty).Handler(), deps.Rosters.Roster)

	enrollments := secured.Group("/enrollments", middleware.Allow(models.RoleAdmin, models.RoleStudent).Handler())
	enrollments.POST("", middleware.Audit(deps.Auditor, deps.Logger, models.AuditActionEnroll, "enrollments"), deps.Enrollments.Enroll)
	enrollments.POST("/validate", deps.Enrollments.Validate)
	enrollments.GET("/:id", deps.Enrollments.Get)
	drop := middleware.Audit(deps.Auditor, deps.Logger, models.AuditActionDrop, "enrollments")
	enrollments.POST("/:id/drop", drop, deps.Enrollments.Drop)
	enrollments.DELETE("/:id", drop, deps.Enrollments.Drop)

	students := secured.Group("/students/:id", middleware.Allow(models.RoleAdmin, models.RoleFaculty).OrSelf("id").Handler())
	students.GET("/enrollments", deps.Enrollments.StudentEnrollments)
	students.GET("/schedule", deps.Enrollments.Schedule)

	notifications := secured.Group("/notifications", adminOnly)
	notifications.GET("/statistics", deps.Notifications.Statistics)
	notifications.POST("/observers/attach-all", middleware.Audit(deps.Auditor, deps.Logger, models.AuditActionObserverAttachAll, "notifications"), deps.Notifications.AttachAll)
	notifications.POST("/observers/:category/attach", middleware.Audit(deps.Auditor, deps.Logger, models.AuditActionObserverAttach, "notifications"), deps.Notifications.Attach)
	notifications.POST("/observers/:category/detach", middleware.Audit(deps.Auditor, deps.Logger, models.AuditActionObserverDetach, "notifications"), deps.Notifications.Detach)

	reports := secured.Group("/reports", adminOnly)
	reports.GET("/enrollment-statistics", deps.Reports.EnrollmentStatistics)
	secured.GET("/metrics/summary", adminOnly, deps.Observability.Summary)
}
