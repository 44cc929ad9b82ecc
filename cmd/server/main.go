package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obraguard/obraguard/internal"
	"github.com/obraguard/obraguard/internal/billing"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/handler"
	"github.com/obraguard/obraguard/internal/metrics"
	"github.com/obraguard/obraguard/internal/middleware"
	"github.com/obraguard/obraguard/internal/repository"
	"github.com/obraguard/obraguard/internal/service"
	"github.com/obraguard/obraguard/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// sessionCleanupInterval is how often expired sessions are purged.
const sessionCleanupInterval = time.Hour

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize billing (nil when Stripe is not configured)
	var billingService billing.Service
	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing not configured; checkout and webhooks disabled")
	}

	// Initialize file storage
	var fileStorage storage.Storage
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		fileStorage, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		fileStorage, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize services
	userService := service.NewUserService(repo, logger)
	planService := service.NewPlanService(repo,
		domain.SeedPlans(cfg.StripeProfessionalPriceID, cfg.StripeBusinessPriceID), logger)
	subscriptionService := service.NewSubscriptionService(repo, billingService, cfg.VIPEmails, cfg.BaseURL, logger)
	reconciler := service.NewReconciler(repo, billingService, logger)
	inspectionService := service.NewInspectionService(repo, logger)
	companyService := service.NewCompanyService(repo, subscriptionService, fileStorage, logger)
	checklistService := service.NewChecklistService(repo, logger)

	// Seed the plan catalog and NR checklist templates
	if err := planService.Seed(ctx); err != nil {
		return fmt.Errorf("plan seeding failed: %w", err)
	}
	if err := checklistService.Seed(ctx); err != nil {
		return fmt.Errorf("checklist seeding failed: %w", err)
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	loginLimiter := middleware.NewRateLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow, logger)
	loginLimitMw := middleware.NewRateLimitMiddleware(loginLimiter, logger)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, isSecure, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, planService, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, reconciler, logger)
	inspectionHandler := handler.NewInspectionHandler(inspectionService, subscriptionService, logger)
	companyHandler := handler.NewCompanyHandler(companyService, logger)
	checklistHandler := handler.NewChecklistHandler(checklistService, logger)

	// Create router and register routes
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics (basic auth when configured)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Local storage files (logos)
	if cfg.StorageProvider == storage.ProviderLocal {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)

	authHandler.RegisterRoutes(mux, loginLimitMw.Limit, requireUser)
	subscriptionHandler.RegisterRoutes(mux, requireUser)
	webhookHandler.RegisterRoutes(mux)
	inspectionHandler.RegisterRoutes(mux, requireUser)
	companyHandler.RegisterRoutes(mux, requireUser)
	checklistHandler.RegisterRoutes(mux, requireUser)

	// Outer middleware stack: security headers, metrics, request logging
	root := middleware.Stack(
		securityMw.Handler,
		metrics.Middleware,
		loggingMw.Handler,
	)(mux)

	// Periodic cleanup of expired sessions
	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	defer cancelCleanup()
	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if err := userService.DeleteExpiredSessions(cleanupCtx); err != nil {
					logger.Warn("session cleanup failed", "error", err)
				}
			}
		}
	}()

	// Start server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
