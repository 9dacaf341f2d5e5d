package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"pic2catalog-server/modules/catalog"
	"pic2catalog-server/modules/common/config"
	"pic2catalog-server/modules/common/gemini"
	"pic2catalog-server/modules/common/logging"
	"pic2catalog-server/modules/common/ratelimit"
	"pic2catalog-server/modules/common/redis"
	"pic2catalog-server/modules/common/studio"
	"pic2catalog-server/modules/common/vertexai"
	"pic2catalog-server/modules/preview"
)

// enableCORS - any origin may call the API
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recoverPanics - a panicking handler answers 500 instead of dropping the connection
func recoverPanics(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("💥 [Server] Handler panic", "path", r.URL.Path, "panic", rec)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"detail": "internal server error",
						"kind":   "internal",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// healthCheck - liveness endpoint
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "pic2catalog",
	})
}

// newDialer - region dialer for the configured backend, plus its fallback order
func newDialer(cfg *config.Config, logger *slog.Logger) (gemini.Dialer, []string, error) {
	switch cfg.GeminiBackend {
	case config.BackendGeminiAPI:
		d, err := studio.NewDialer(cfg.GeminiAPIKeys, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Endpoints(), nil

	default:
		creds, err := vertexai.LoadCredentials(cfg.VertexCredentialsJSON, cfg.VertexCredentialsPath, logger)
		if err != nil {
			return nil, nil, &config.ConfigurationError{Setting: "VERTEXAI_CREDENTIALS", Err: err}
		}
		d, err := vertexai.NewDialer(cfg.GCPProject, creds, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, cfg.GeminiRegions, nil
	}
}

// newCatalogService - nil service and a *config.ConfigurationError when the backend cannot be built
func newCatalogService(cfg *config.Config, logger *slog.Logger) (*catalog.Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialer, regions, err := newDialer(cfg, logger)
	if err != nil {
		var cfgErr *config.ConfigurationError
		if !errors.As(err, &cfgErr) {
			err = &config.ConfigurationError{Setting: "GEMINI_BACKEND", Err: err}
		}
		return nil, err
	}

	client, err := gemini.NewRegionClient(dialer, gemini.Options{
		Model:   cfg.GeminiModel,
		Regions: regions,
		Logger:  logger,
	})
	if err != nil {
		return nil, &config.ConfigurationError{Setting: "GEMINI_REGIONS", Err: err}
	}

	logger.Info("🤖 [Gemini] Region client ready", "backend", cfg.GeminiBackend, "model", cfg.GeminiModel, "regions", client.Regions())
	return catalog.NewService(client, logger), nil
}

// newRateLimitGuard - Redis-backed limiter for generation routes; nil when disabled or Redis is unreachable
func newRateLimitGuard(ctx context.Context, cfg *config.Config, logger *slog.Logger) func(http.Handler) http.Handler {
	if !cfg.RateLimitEnabled() {
		return nil
	}
	rdb, err := redis.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Warn("⚠️  [RateLimit] Redis unavailable, rate limiting disabled", "error", err)
		return nil
	}
	limiter := ratelimit.New(rdb, cfg.RateLimitPerMinute, time.Minute, logger)
	if err := limiter.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Warn("⚠️  [RateLimit] Ignoring TRUSTED_PROXIES, keying clients by remote address", "error", err)
	}
	logger.Info("🚦 [RateLimit] Enabled", "per_minute", cfg.RateLimitPerMinute, "redis", cfg.GetRedisAddr(), "trusted_proxies", cfg.TrustedProxies)
	return limiter.Middleware
}

func main() {
	// .env and process environment
	cfg := config.LoadConfig(logging.New(os.Stdout, "info"))
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, configErr := newCatalogService(cfg, logger)
	if configErr != nil {
		logger.Error("❌ Configuration error, generation endpoints will report it", "error", configErr)
	}

	guard := newRateLimitGuard(ctx, cfg, logger)

	catalogHandler := catalog.NewHandler(svc, catalog.HandlerOptions{
		ConfigErr:      configErr,
		MaxUploadBytes: cfg.MaxUploadSize,
		Guard:          guard,
		Logger:         logger,
	})
	previewHandler := preview.NewPreviewHandler(catalogHandler, logger)

	// routes
	r := mux.NewRouter()
	r.Use(recoverPanics(logger))
	r.Use(enableCORS)

	r.HandleFunc("/health", healthCheck).Methods("GET")
	catalogHandler.RegisterRoutes(r)
	previewHandler.RegisterRoutes(r, guard)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("🚀 Pic2Catalog server starting", "port", cfg.Port)
		logger.Info("📸 Upload form: http://localhost:" + cfg.Port + "/")
		logger.Info("🛍️  Catalog API: http://localhost:" + cfg.Port + "/generate_catalog")
		logger.Info("📡 WebSocket endpoint: ws://localhost:" + cfg.Port + "/ws/catalog")
		logger.Info("❤️  Health check: http://localhost:" + cfg.Port + "/health")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}
