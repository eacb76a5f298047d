package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stockify/contact-api/internal/background"
	"github.com/stockify/contact-api/internal/config"
	"github.com/stockify/contact-api/internal/database"
	"github.com/stockify/contact-api/internal/dispatch"
	"github.com/stockify/contact-api/internal/handlers"
	"github.com/stockify/contact-api/internal/mailer"
	middlewareCustom "github.com/stockify/contact-api/internal/middleware"
	"github.com/stockify/contact-api/internal/repositories"
	"github.com/stockify/contact-api/internal/routes"
	"github.com/stockify/contact-api/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("email_provider", cfg.Email.Provider),
		slog.Bool("debug_endpoints", cfg.Server.DebugEndpoints))

	// Initialize database
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	submissionRepo := repositories.NewSubmissionRepository(db)

	// Select the mail transport
	var transport mailer.Transport
	switch cfg.Email.Provider {
	case "resend":
		transport = mailer.NewResendTransport(cfg.Email.ResendAPIKey, cfg.Email.FromAddress, cfg.Email.FromName, logger)
	default:
		transport, err = mailer.NewSESTransport(cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.FromName, logger)
		if err != nil {
			logger.Error("failed to initialize SES transport", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Dispatch engine
	engine := dispatch.NewEngine(transport, dispatch.Config{
		MaxRetries:     cfg.Dispatch.MaxRetries,
		BackoffBase:    cfg.Dispatch.BackoffBase,
		BackoffCap:     cfg.Dispatch.BackoffCap,
		Workers:        cfg.Dispatch.Workers,
		Timeout:        cfg.Dispatch.Timeout,
		SendsPerSecond: cfg.Dispatch.SendsPerSecond,
	}, logger)

	// Initialize services
	rateLimitService := services.NewRateLimitService(services.RateLimitConfig{
		OTPRequest: services.RateLimitPolicy{Limit: cfg.RateLimit.OTPRequestLimit, Window: cfg.RateLimit.OTPRequestWindow},
		Submit:     services.RateLimitPolicy{Limit: cfg.RateLimit.SubmitLimit, Window: cfg.RateLimit.SubmitWindow},
	}, logger)

	otpService := services.NewOtpService(rateLimitService, services.OtpConfig{
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		CodeLength:  cfg.OTP.CodeLength,
	}, logger)

	contactService := services.NewContactService(
		otpService,
		submissionRepo,
		engine,
		rateLimitService,
		cfg.Email.AdminAddresses,
		cfg.OTP.TTL,
		cfg.Server.DebugEndpoints,
		logger,
	)

	// Initialize handlers
	contactHandler := handlers.NewContactHandler(contactService)
	debugHandler := handlers.NewDebugHandler(contactService)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(
		otpService,
		rateLimitService,
		submissionRepo,
		logger,
		5*time.Minute,
		24*time.Hour,
	)

	// Setup CORS middleware
	corsConfig := middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(
		router,
		contactHandler,
		debugHandler,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.RateLimit.HTTPRequestsPerMinute},
		cfg.Server.DebugEndpoints,
	)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
