package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/plateai/internal/handler"
	"github.com/aryan0dhankhar/plateai/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/plateai/internal/nutrition"
	"github.com/aryan0dhankhar/plateai/internal/observability/metrics"
	"github.com/aryan0dhankhar/plateai/internal/observability/tracing"
	"github.com/aryan0dhankhar/plateai/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/plateai/internal/reliability/retry"
	"github.com/aryan0dhankhar/plateai/internal/repository"
	"github.com/aryan0dhankhar/plateai/internal/security/audit"
	"github.com/aryan0dhankhar/plateai/internal/security/auth"
	"github.com/aryan0dhankhar/plateai/internal/security/middleware"
	"github.com/aryan0dhankhar/plateai/internal/service"
	"github.com/aryan0dhankhar/plateai/pkg/config"
	"github.com/aryan0dhankhar/plateai/pkg/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "plateai: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting PlateAI server", slog.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "plateai", cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// 4. Database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	pool, err := retry.Do(ctx, retry.StartupConfig(cfg.Database.ConnectAttempts), log, "database connect",
		func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, dbConfig, log)
		})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	// 5. Repositories
	userRepo := repository.NewPostgresUserRepository(pool.GetDB(), log)
	mealRepo := repository.NewPostgresMealRepository(pool.GetDB(), log)

	// 6. Security components
	tokenManager, err := auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.Auth.TokenExpiry)
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}
	auditLogger := audit.NewLogger(log)

	// 7. Services
	authService := service.NewAuthService(userRepo, tokenManager, log)
	mealService := service.NewMealService(mealRepo, auditLogger, log)
	estimator, err := newEstimator(ctx, cfg, log)
	if err != nil {
		return err
	}

	// 8. HTTP routes
	mux := http.NewServeMux()
	handler.Routes{
		Auth:        handler.NewAuthHandler(authService, auditLogger, log),
		Meals:       handler.NewMealsHandler(mealService, log),
		Analyze:     handler.NewAnalyzeHandler(estimator, log),
		Health:      handler.NewHealthHandler(pool, log),
		RequireUser: middleware.RequireUser(authService, auditLogger, log),
	}.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Chain middleware: tracing -> recover -> request ID -> CORS -> body checks -> metrics -> mux
	var root http.Handler = metrics.HTTPMetricsMiddleware(mux)
	root = middleware.ValidateContentType(log)(root)
	root = middleware.CORS(cfg.CORSAllowedOrigins)(root)
	root = middleware.RequestID(log)(root)
	root = middleware.Recover(log)(root)
	root = otelhttp.NewHandler(root, "plateai")

	// 9. Start HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.LLM.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("estimator_enabled", estimator.Enabled()),
		slog.String("token_expiry", cfg.Auth.TokenExpiry.String()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
	return nil
}

// newEstimator builds the nutrition estimator. Without an API key it returns
// a disabled estimator so /api/meals/analyze answers 503 instead of failing
// startup.
func newEstimator(ctx context.Context, cfg *config.Config, log *slog.Logger) (*nutrition.Estimator, error) {
	breaker := circuitbreaker.NewCircuitBreaker(cfg.LLM.BreakerFailures, cfg.LLM.BreakerCooldown)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		metrics.SetEstimatorBreakerOpen(to == circuitbreaker.StateOpen)
		log.Warn("estimator circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	if !cfg.EstimatorEnabled() {
		log.Warn("GOOGLE_API_KEY not set, meal analysis disabled")
		return nutrition.NewEstimator(nil, breaker, cfg.LLM.Timeout, log), nil
	}

	gen, err := nutrition.NewGeminiGenerator(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return nutrition.NewEstimator(gen, breaker, cfg.LLM.Timeout, log), nil
}
