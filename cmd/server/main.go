package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/cache"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/events"
	"github.com/tourhub/booking-backend/internal/handlers"
	"github.com/tourhub/booking-backend/internal/metrics"
	"github.com/tourhub/booking-backend/internal/middleware"
	"github.com/tourhub/booking-backend/internal/services"
	"github.com/tourhub/booking-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// publisher is an event sink that can be flushed on shutdown
type publisher interface {
	services.EventPublisher
	Close() error
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Tour Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB, "tour_booking"),
	)
	appMetrics := metrics.New(registry)

	// Repositories
	txManager := database.NewTxManager(db, logger)
	stores := services.Stores{
		Users:        database.NewUserRepository(db),
		Tours:        database.NewTourRepository(db),
		Guides:       database.NewGuideRepository(db),
		Applications: database.NewGuideApplicationRepository(db),
		Bookings:     database.NewBookingRepository(db),
		Payments:     database.NewPaymentRepository(db),
		Reviews:      database.NewReviewRepository(db),
	}
	auditRepository := database.NewPaymentAuditRepository(db, logger)

	// Domain events
	var eventPublisher publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		eventPublisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger).WithCounter(appMetrics)
		logger.WithField("topic", cfg.Kafka.Topic).Info("Kafka event publishing enabled")
	} else {
		logger.Info("Kafka disabled, domain events are dropped")
	}
	defer eventPublisher.Close()

	// IPN de-duplication
	var callbackGuard services.CallbackGuard
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(context.Background(), cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, IPN de-duplication relies on row locks only")
		} else {
			defer redisClient.Close()
			callbackGuard = cache.NewRedisCallbackGuard(redisClient, cfg.Redis.CallbackLockTTL)
			logger.Info("Redis callback guard enabled")
		}
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	gateway := services.NewSSLCommerzService(&cfg.Payment, logger, appMetrics)
	if !gateway.IsConfigured() {
		logger.Warn("SSLCommerz credentials missing, checkout sessions will fail")
	}

	invoiceStorage, err := services.NewLocalInvoiceStorage(cfg.Invoice.Directory, cfg.Invoice.PublicBaseURL)
	if err != nil {
		logger.Fatalf("Failed to prepare invoice storage: %v", err)
	}
	invoiceRenderer := services.NewPDFInvoiceRenderer(cfg.Invoice.CompanyName)

	userService := services.NewUserService(stores.Users, cfg.Security.BcryptCost, logger)
	authService := services.NewAuthService(stores.Users, jwtService, logger)
	rateLimitService := services.NewRateLimitService(db, services.DefaultRateLimitConfig())
	tourService := services.NewTourService(stores, logger)
	bookingService := services.NewBookingService(
		txManager,
		stores,
		gateway,
		auditRepository,
		eventPublisher,
		appMetrics,
		cfg.Payment.Currency,
		logger,
	)
	paymentService := services.NewPaymentService(
		txManager,
		stores,
		gateway,
		invoiceRenderer,
		invoiceStorage,
		auditRepository,
		callbackGuard,
		eventPublisher,
		appMetrics,
		cfg.Payment.Currency,
		logger,
	)
	guideService := services.NewGuideService(txManager, stores, eventPublisher, logger)
	reviewService := services.NewReviewService(txManager, stores, eventPublisher, logger)

	if err := userService.SeedSuperAdmin(context.Background(), cfg.SuperAdmin); err != nil {
		logger.Fatalf("Failed to seed super admin: %v", err)
	}

	// Initialize and start cron service
	cronService := services.NewCronService(stores.Payments, gateway, paymentService, appMetrics, cfg.Sweeper, logger).
		WithLoginAttemptCleanup(rateLimitService)
	if cfg.Sweeper.Enabled {
		if err := cronService.Start(context.Background()); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
		logger.Info("✓ Cron service started - stale payment sweeper enabled")
	}

	logger.Info("Services initialized")

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}
	router.Use(middleware.Metrics(appMetrics))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db, cronService))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	router.Static("/invoices", cfg.Invoice.Directory)

	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:    handlers.NewAuthHandler(authService, userService, rateLimitService, logger),
		Users:   handlers.NewUserHandler(userService, logger),
		Tours:   handlers.NewTourHandler(tourService, logger),
		Booking: handlers.NewBookingHandler(bookingService, logger),
		Payment: handlers.NewPaymentHandler(paymentService, cfg.Payment, logger),
		Guides:  handlers.NewGuideHandler(guideService, logger),
		Reviews: handlers.NewReviewHandler(reviewService, logger),
	}, jwtService, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // gateway round-trips happen inside requests
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	logger.Info("Stopping cron service...")
	cronService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db *sqlx.DB, cronService *services.CronService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"cron":      cronService.GetJobStatus(),
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
