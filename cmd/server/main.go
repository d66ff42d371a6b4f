package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/travelhub/booking-engine/internal/cache"
	"github.com/travelhub/booking-engine/internal/config"
	"github.com/travelhub/booking-engine/internal/database"
	"github.com/travelhub/booking-engine/internal/events"
	"github.com/travelhub/booking-engine/internal/handlers"
	"github.com/travelhub/booking-engine/internal/middleware"
	"github.com/travelhub/booking-engine/internal/services"
	"github.com/travelhub/booking-engine/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting booking engine")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logger); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Repositories
	bookingRepository := database.NewBookingRepository(db.DB)
	paymentRepository := database.NewPaymentRepository(db.DB)
	auditRepository := database.NewPaymentAuditRepository(db.DB, logger)
	txManager := database.NewTxManager(db.DB)

	var catalog services.Catalog = database.NewCatalogRepository(db.DB)
	if cfg.Redis.Enabled {
		redisCache := cache.NewRedisCache(cfg.Redis)
		defer redisCache.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			logger.WithError(err).Warn("Redis unreachable, catalog reads will fall through to the database")
		}
		cancel()

		catalog = cache.NewCachedCatalog(catalog, redisCache, logger)
		logger.WithField("ttl", cfg.Redis.CatalogTTL).Info("Catalog cache enabled")
	}

	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.WithFields(logrus.Fields{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.Topic,
		}).Info("Kafka event producer enabled")
	} else {
		publisher = events.NewLogPublisher(logger)
		logger.Info("Kafka disabled, domain events are logged only")
	}
	defer publisher.Close()

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, "booking-engine")
	aggregator := services.NewPriceAggregator(catalog, cfg.Booking.AllowBundles, logger)
	gateway := services.NewGatewayAdapter(cfg.Payment, logger)
	auditService := services.NewPaymentAuditService(auditRepository, cfg.Security.EnableAuditLog, logger)
	bookingService := services.NewBookingService(bookingRepository, txManager, aggregator, publisher, cfg.Payment.Currency, logger)
	paymentService := services.NewPaymentService(paymentRepository, bookingService, txManager, gateway, auditService, publisher, logger)
	reconciliationService := services.NewReconciliationService(paymentRepository, bookingService, txManager, gateway, auditService, publisher, logger)
	receiptService := services.NewReceiptService(bookingService, paymentRepository, "TravelHub")
	logger.Info("Services initialized")

	if err := handlers.RegisterValidators(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, handlers.Handlers{
		Health:   handlers.NewHealthHandler(db, version),
		Bookings: handlers.NewBookingHandler(bookingService, receiptService, logger),
		Payments: handlers.NewPaymentHandler(paymentService, reconciliationService, cfg.Payment.ResultPageURL, logger),
		Admin:    handlers.NewAdminHandler(bookingService, paymentService, logger),
	}, middleware.AuthMiddleware(jwtService, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}
