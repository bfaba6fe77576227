// Package main runs the sports registration platform HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arena-sports/backend/config"
	"github.com/arena-sports/backend/internal/attendance"
	"github.com/arena-sports/backend/internal/auth"
	"github.com/arena-sports/backend/internal/events"
	"github.com/arena-sports/backend/internal/middleware"
	"github.com/arena-sports/backend/internal/notifications"
	"github.com/arena-sports/backend/internal/payments"
	"github.com/arena-sports/backend/internal/pricing"
	"github.com/arena-sports/backend/internal/registrations"
	"github.com/arena-sports/backend/internal/sports"
	"github.com/arena-sports/backend/internal/students"
	"github.com/arena-sports/backend/pkg/database"
	"github.com/arena-sports/backend/pkg/queue"
	"github.com/arena-sports/backend/pkg/redis"
	"github.com/arena-sports/backend/pkg/response"
	"github.com/arena-sports/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.ExportsBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 exports disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Sports and events
	sportRepo := sports.NewRepository(pool)
	sportHandler := sports.NewHandler(sportRepo, logger)
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)

	// Students
	studentRepo := students.NewRepository(pool)
	studentHandler := students.NewHandler(studentRepo, logger)

	// Registrations: confirmation emails dispatch in the background after
	// commit, delivery happens in cmd/worker.
	notifyRepo := notifications.NewRepository(pool)
	dispatcher := notifications.NewDispatcher(notifyRepo, jobQueue, logger)
	registrationRepo := registrations.NewRepository(pool)
	registrationWriter := registrations.NewWriter(registrationRepo, dispatcher, logger)
	registrationHandler := registrations.NewHandler(registrationRepo, s3Client, logger)

	// Payments
	resolver := pricing.NewResolver(cfg.Pricing, sportRepo)
	gateway := payments.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, logger)
	webhookRepo := payments.NewWebhookRepository(pool)
	paymentHandler := payments.NewHandler(resolver, gateway, registrationWriter, webhookRepo, logger)

	// Attendance
	attendanceRepo := attendance.NewRepository(pool)
	attendanceHandler := attendance.NewHandler(attendanceRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public pricing lookups; no account needed to see what registration costs.
	router.GET("/payment/countries", paymentHandler.Countries)
	router.POST("/payment/calculate", paymentHandler.Calculate)
	router.GET("/payment/sport/:sportId/pricing", paymentHandler.SportPricing)

	// Public catalog
	router.GET("/sports", sportHandler.List)
	router.GET("/sports/:id", sportHandler.Get)
	router.GET("/events", eventHandler.List)
	router.GET("/events/:id", eventHandler.Get)

	// Webhooks (no JWT; signature verified in handler)
	router.POST("/payment/webhook", paymentHandler.Webhook)

	// Venue check-in (staff devices authenticate at the gateway level; the
	// token itself is the credential)
	router.GET("/attendance/validate/:token", attendanceHandler.ValidateToken)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Catalog management
		api.POST("/sports", middleware.RequireRole("admin"), sportHandler.Create)
		api.PUT("/sports/:id", middleware.RequireRole("admin"), sportHandler.Update)
		api.POST("/events", middleware.RequireRole("admin"), eventHandler.Create)

		// Students
		api.GET("/students", studentHandler.List)
		api.POST("/students", studentHandler.Create)
		api.GET("/students/:id", studentHandler.Get)
		api.POST("/students/:id/claim", studentHandler.Claim)

		// Payment flow
		api.POST("/payment/create-payment-intent", paymentHandler.CreateIntent)
		api.GET("/payment/payment-intent/:id", paymentHandler.GetIntent)
		api.POST("/payment/confirm-payment", paymentHandler.ConfirmPayment)

		// Registrations (admin dashboard)
		api.GET("/registrations", middleware.RequireRole("admin"), registrationHandler.List)
		api.GET("/sports/:id/roster/export", middleware.RequireRole("admin"), registrationHandler.ExportRoster)

		// Attendance
		api.POST("/attendance/registrations/:id/token", attendanceHandler.IssueToken)
		api.POST("/attendance/check-in", middleware.RequireRole("admin", "school"), attendanceHandler.CheckIn)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
