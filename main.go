// Package main provides the main entry point for the Kusanagi discount decision engine
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Kusanagi/app/handlers"
	"github.com/amirphl/Kusanagi/app/middleware"
	"github.com/amirphl/Kusanagi/app/router"
	"github.com/amirphl/Kusanagi/app/scheduler"
	"github.com/amirphl/Kusanagi/app/services"
	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/config"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Kusanagi application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the standard logger to a rotated file when configured.
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output != "file" && cfg.Output != "both" {
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	if cfg.Output == "both" {
		log.SetOutput(io.MultiWriter(os.Stdout, rotated))
		return
	}
	log.SetOutput(rotated)
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeRedis initializes the Redis client and verifies connectivity
func initializeRedis(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startMetricsServer exposes the Prometheus registry on its own listener.
func startMetricsServer(cfg config.MetricsConfig) func() {
	if !cfg.Enabled || !cfg.EnablePrometheus {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.PrometheusPath, promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("Metrics server starting on :%d%s", cfg.Port, cfg.PrometheusPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// initializeAdvisoryGateway wires the advisory port behind the cache, breaker,
// and metrics. The returned pruner is non-nil only for the in-memory cache.
func initializeAdvisoryGateway(cfg *config.ProductionConfig, rc *redis.Client) (services.AdvisoryService, services.AdvisoryMetrics, *services.CircuitBreaker, *services.MemoryResponseCache) {
	var inner services.AdvisoryService
	if cfg.Advisory.Enabled {
		inner = services.NewHTTPAdvisoryService(&cfg.Advisory)
	} else {
		inner = services.NewMockAdvisoryService()
		log.Println("Advisory service disabled; using mock responses")
	}

	var metrics services.AdvisoryMetrics
	if cfg.Metrics.CollectAdvisoryMetrics {
		metrics = services.NewPrometheusAdvisoryMetrics(utils.UTCNow)
	} else {
		metrics = services.NewInMemoryAdvisoryMetrics(utils.UTCNow)
	}

	breaker := services.NewCircuitBreaker(cfg.Advisory.BreakerFailureThreshold, cfg.Advisory.BreakerOpenDuration, utils.UTCNow)

	var cache services.ResponseCache
	var pruner *services.MemoryResponseCache
	if rc != nil {
		cache = services.NewRedisResponseCache(rc, cfg.Cache.RedisPrefix)
	} else {
		memory := services.NewMemoryResponseCache(utils.UTCNow)
		cache = memory
		pruner = memory
	}

	gateway := services.NewResilientAdvisoryService(inner, cache, breaker, metrics, utils.UTCNow)
	return gateway, metrics, breaker, pruner
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeRedis(cfg.Cache)
	if err != nil {
		return nil, err
	}

	stopFuncs = append(stopFuncs, startMetricsServer(cfg.Metrics))

	// Initialize repositories
	requestRepo := repository.NewDiscountRequestRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	salespersonRepo := repository.NewSalespersonRepository(db)
	ruleRepo := repository.NewBusinessRuleRepository(db)
	costRepo := repository.NewProductCostRepository(db)
	auditRepo := repository.NewDecisionAuditLogRepository(db)

	// Initialize services
	advisoryGateway, advisoryMetrics, breaker, cachePruner := initializeAdvisoryGateway(cfg, rc)

	emailProvider := services.NewSMTPEmailProvider(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password, cfg.Email.FromEmail)
	notificationService := services.NewNotificationService(emailProvider, cfg.Email.ReviewerEmails)

	// Initialize token service
	tokenService, err := services.NewTokenService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	marginCalc := businessflow.NewMarginCalculator()
	riskCalc := businessflow.NewRiskScoreCalculator(marginCalc)
	guardrails := businessflow.NewGuardrailValidator(marginCalc)
	evaluator := businessflow.NewAutoApprovalEvaluator(guardrails)

	decisionFlow := businessflow.NewDiscountDecisionFlow(
		requestRepo,
		customerRepo,
		salespersonRepo,
		ruleRepo,
		costRepo,
		auditRepo,
		marginCalc,
		riskCalc,
		evaluator,
		advisoryGateway,
		notificationService,
		db,
	)
	ruleFlow := businessflow.NewBusinessRuleFlow(ruleRepo, db)
	reportFlow := businessflow.NewAdminReportFlow(auditRepo)

	// Initialize handlers
	requestHandler := handlers.NewDiscountRequestHandler(decisionFlow)
	ruleHandler := handlers.NewBusinessRuleHandler(ruleFlow)
	reportHandler := handlers.NewAdminReportHandler(reportFlow)
	advisoryHandler := handlers.NewAdvisoryAdminHandler(advisoryGateway, advisoryMetrics, breaker)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authMiddleware,
		requestHandler,
		ruleHandler,
		reportHandler,
		advisoryHandler,
	)

	// Background maintenance: cache pruning and availability probing
	maintenance := scheduler.NewAdvisoryMaintenance(advisoryGateway, pruneAdapter(cachePruner), cfg.Cache.CleanupInterval)
	stopFuncs = append(stopFuncs, maintenance.Start(context.Background()))

	// Background sweep: evaluate requests that never went through the pipeline
	sweeper := scheduler.NewEvaluationSweeper(decisionFlow, requestRepo, pendingTenants(requestRepo), 5*time.Minute)
	stopFuncs = append(stopFuncs, sweeper.Start(context.Background()))

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// pruneAdapter keeps the typed nil out of the scheduler's interface check.
func pruneAdapter(cache *services.MemoryResponseCache) interface {
	Prune(ctx context.Context) int
} {
	if cache == nil {
		return nil
	}
	return cache
}

// pendingTenants lists the tenants that currently have under-analysis requests.
func pendingTenants(requestRepo repository.DiscountRequestRepository) func(ctx context.Context) ([]uint, error) {
	return func(ctx context.Context) ([]uint, error) {
		status := models.DiscountStatusUnderAnalysis
		pending, err := requestRepo.ByFilter(ctx, models.DiscountRequestFilter{Status: &status}, "created_at ASC", 500, 0)
		if err != nil {
			return nil, err
		}

		seen := make(map[uint]bool)
		tenants := make([]uint, 0)
		for _, request := range pending {
			if !seen[request.TenantID] {
				seen[request.TenantID] = true
				tenants = append(tenants, request.TenantID)
			}
		}
		return tenants, nil
	}
}
