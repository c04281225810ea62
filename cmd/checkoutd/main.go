package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hostedpay-rs/hostedpay-go/pkg/config"
	"github.com/hostedpay-rs/hostedpay-go/pkg/handlers"
	"github.com/hostedpay-rs/hostedpay-go/pkg/hostedflow"
	"github.com/hostedpay-rs/hostedpay-go/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// Initialize gateway client
	gw, err := cfg.NewGatewayClient()
	if err != nil {
		logger.Error("failed to initialize gateway client", "error", err)
		os.Exit(1)
	}

	// The memory bridge carries hosted-UI outcomes reported through the
	// flow-event ingress to the owning session state machine.
	bridge := hostedflow.NewMemoryBridge(logger)
	defer bridge.Close()

	handler := handlers.NewHandler(gw, bridge, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Mount("/checkout", handler.Routes())

	// Add logging middleware based on LOG_FORMAT
	// Options: "detailed" (default), "compact", "json", "none"
	var loggedHandler http.Handler
	switch cfg.LogFormat {
	case "compact":
		loggedHandler = middleware.CompactLoggingMiddleware(logger, r)
	case "json":
		loggedHandler = middleware.StructuredLoggingMiddleware(logger, r)
	case "none":
		loggedHandler = r
	default:
		loggedHandler = middleware.LoggingMiddleware(logger, r)
	}

	// Session creation is the expensive path; limit it per merchant credential
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, middleware.AuthorizationKey)
	limitedHandler := limiter.Middleware(loggedHandler)

	// Request size limit (1MB)
	sizeLimitedHandler := requestSizeLimitMiddleware(limitedHandler, 1<<20)

	corsHandler := corsMiddleware(sizeLimitedHandler)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting checkoutd", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}

// newLogger builds a slog.Logger honoring LOG_LEVEL and LOG_FORMAT.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// requestSizeLimitMiddleware limits request body sizes to prevent abuse.
func requestSizeLimitMiddleware(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers. The checkout facade is called from the
// merchant's own pages, so the origin is reflected without credentials.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
