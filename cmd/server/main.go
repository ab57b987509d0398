package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/sujalbistaa/murmur/internal/config"
	"github.com/sujalbistaa/murmur/internal/db"
	"github.com/sujalbistaa/murmur/internal/feed"
	routes "github.com/sujalbistaa/murmur/internal/http"
	"github.com/sujalbistaa/murmur/internal/natsbridge"
	"github.com/sujalbistaa/murmur/internal/ws"
)

func main() {
	// Production sets env vars directly, so a missing .env is fine.
	envErr := godotenv.Load()

	cfg := config.Load()
	initLogger(cfg.Env)
	if envErr != nil {
		slog.Info("No .env file found, reading from environment")
	}
	if cfg.UsesDefaultSecret() {
		slog.Warn("SESSION_SECRET is not set, sessions are signed with the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Database
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	store, err := db.Open(startCtx, cfg)
	cancel()
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	// 2. Initialize WebSocket Hub
	hub := ws.NewHub()
	go hub.Run()

	notifiers := feed.Notifiers{hub}
	if cfg.NatsURL != "" {
		pub, nc, err := natsbridge.Connect(cfg.NatsURL)
		if err != nil {
			slog.Error("Failed to connect to NATS", "url", cfg.NatsURL, "error", err)
			os.Exit(1)
		}
		defer nc.Drain()
		notifiers = append(notifiers, pub)
		slog.Info("Mirroring feed events to NATS", "url", cfg.NatsURL)
	}

	uploads, err := routes.NewUploads(cfg.UploadDir, cfg.MaxUploadMB)
	if err != nil {
		slog.Error("Failed to prepare upload directory", "error", err)
		os.Exit(1)
	}

	env := &routes.Env{
		Feed:     feed.NewService(store, notifiers),
		Hub:      hub,
		Sessions: routes.NewSessions(cfg.SessionSecret, cfg.SecureCookies),
		Uploads:  uploads,
		DB:       store,
	}

	limiter := routes.NewWriteLimiter()
	go limiter.Cleanup(ctx, 10*time.Minute)

	// 3. Initialize Gin Router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupRoutes(router, env, limiter, cfg.CORSOrigin)

	// 4. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("Server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	hub.Stop()
	if err := store.Close(shutdownCtx); err != nil {
		slog.Error("Failed to close database", "error", err)
	}

	slog.Info("Server exiting")
}

func initLogger(env string) {
	var handler slog.Handler
	if env == "local" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}
