package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/uni-enrollment-api/api/swagger"
	"github.com/noah-isme/uni-enrollment-api/internal/handler"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
	"github.com/noah-isme/uni-enrollment-api/internal/router"
	"github.com/noah-isme/uni-enrollment-api/internal/service"
	"github.com/noah-isme/uni-enrollment-api/pkg/cache"
	"github.com/noah-isme/uni-enrollment-api/pkg/config"
	"github.com/noah-isme/uni-enrollment-api/pkg/database"
	"github.com/noah-isme/uni-enrollment-api/pkg/jobs"
	"github.com/noah-isme/uni-enrollment-api/pkg/logger"
)

// @title University Course Enrollment API
// @version 1.0.0
// @description Course enrollment with rule validation, seat accounting and enrollment notifications.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.ApplyMigrations(ctx, db, cfg.Database.MigrationsDir, logr); err != nil {
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache and redis broadcast", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.Notifications.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.Notifications.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			logr.Warn("nats unavailable, continuing without nats broadcast", zap.Error(err))
			natsConn = nil
		} else {
			defer natsConn.Drain() //nolint:errcheck
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, cfg.AppName, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, redisClient != nil && cfg.Catalog.CacheEnabled)
	courseSvc := service.NewCourseService(courseRepo, cacheSvc, logr)

	mailer := service.NewLogMailer(logr)
	listeners := []service.Listener{
		service.NewStudentListener(studentRepo, mailer),
		service.NewAdvisorListener(studentRepo, mailer),
		service.NewAdminListener(courseRepo, mailer, cfg.Notifications.AdminEmails),
	}
	if redisClient != nil || natsConn != nil {
		listeners = append(listeners, service.NewBroadcastListener(redisClient, cfg.Notifications.RedisChannel, natsConn, cfg.Notifications.NATSSubject))
	}
	notificationSvc := service.NewNotificationService(listeners, metricsSvc, logr)

	if cfg.Notifications.Async {
		queue := notificationSvc.NewDeliveryQueue(jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.Retries,
			Logger:     logr,
		})
		// Workers outlive the signal context so queued mail drains during shutdown.
		queue.Start(context.WithoutCancel(ctx))
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := queue.Stop(drainCtx); err != nil {
				logr.Warn("notification queue not drained", zap.Error(err))
			}
		}()
		notificationSvc.UseQueue(queue)
	}

	enrollmentSvc := service.NewEnrollmentService(
		enrollmentRepo,
		courseRepo,
		studentRepo,
		notificationSvc,
		courseSvc,
		metricsSvc,
		service.EnrollmentServiceConfig{CapacityLowThreshold: cfg.Enrollment.CapacityLowThreshold},
		validate,
		logr,
	)
	reportSvc := service.NewReportService(courseRepo, cfg.Reports.Enabled, logr)
	rosterSvc := service.NewRosterService(courseRepo, enrollmentRepo, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		TokenTTL: cfg.JWT.Expiration,
		Issuer:   cfg.JWT.Issuer,
		Leeway:   30 * time.Second,
	})

	engine := router.New(router.Dependencies{
		Logger:         logr,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		APIPrefix:      cfg.APIPrefix,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Tokens:         authSvc,
		Auditor:        userRepo,
		Metrics:        metricsSvc,
		Auth:           handler.NewAuthHandler(authSvc),
		Courses:        handler.NewCourseHandler(courseSvc),
		Rosters:        handler.NewRosterHandler(rosterSvc),
		Enrollments:    handler.NewEnrollmentHandler(enrollmentSvc),
		Notifications:  handler.NewNotificationHandler(notificationSvc),
		Reports:        handler.NewReportHandler(reportSvc),
		Observability:  handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient, natsConn)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		checks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return checks
}
