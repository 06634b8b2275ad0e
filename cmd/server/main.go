// Package main is the entry point for the stockflow API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"stockflow/internal/app"
	"stockflow/internal/domain/auth"
	v1 "stockflow/internal/infrastructure/http/v1"
	"stockflow/internal/infrastructure/http/v1/handlers"
	"stockflow/internal/infrastructure/http/v1/middleware"
	"stockflow/pkg/logger"
)

func main() {
	cfg := loadConfig()

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Env == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting stockflow server", "driver", cfg.App.Driver, "env", cfg.Env)

	a, err := app.New(ctx, cfg.App)
	if err != nil {
		log.Fatalw("failed to build application", "error", err)
	}
	defer a.Close()

	// --- Auth ---
	var validator middleware.JWTValidator
	if cfg.JWTSecret != "" {
		jwtService, err := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
		if err != nil {
			log.Fatalw("invalid JWT configuration", "error", err)
		}
		validator = jwtService
	} else {
		log.Warn("JWT_SECRET not set: bearer auth disabled, operator taken from X-User-ID")
	}

	// --- Router ---
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	var db handlers.Pinger
	if a.Pool != nil {
		db = a.Pool
	}
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		Service:      a.Service,
		JWTValidator: validator,
		Idempotency:  a.Idempotency,
		DB:           db,
		Driver:       a.Driver,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Infow("server stopped", "guard_violations", a.Guard.Violations())
}
