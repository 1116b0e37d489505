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

	"github.com/nikhilbhutani/doctorhouse/internal/api"
	"github.com/nikhilbhutani/doctorhouse/internal/api/handlers"
	"github.com/nikhilbhutani/doctorhouse/internal/api/middleware"
	"github.com/nikhilbhutani/doctorhouse/internal/audit"
	"github.com/nikhilbhutani/doctorhouse/internal/cache"
	"github.com/nikhilbhutani/doctorhouse/internal/clinical"
	"github.com/nikhilbhutani/doctorhouse/internal/config"
	"github.com/nikhilbhutani/doctorhouse/internal/database"
	"github.com/nikhilbhutani/doctorhouse/internal/llm"
	"github.com/nikhilbhutani/doctorhouse/internal/stt"
	"github.com/nikhilbhutani/doctorhouse/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		var cerr *config.ConfigurationError
		if errors.As(err, &cerr) {
			slog.Error("invalid configuration", "missing", cerr.Missing, "invalid", cerr.Invalid)
		} else {
			slog.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	ctx := context.Background()
	checks := map[string]handlers.Pinger{}

	// Audit log (optional, metadata only)
	recorder := audit.NewService(nil)
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without audit log", "error", err)
		} else {
			defer db.Close()
			if err := database.RunMigrations(ctx, db); err != nil {
				slog.Warn("migrations failed", "error", err)
			}
			recorder = audit.NewService(db)
			checks["database"] = db
		}
	}

	// Shared rate limiting (optional)
	var limiter middleware.Limiter = middleware.NewMemoryLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	if cfg.Redis.Addr != "" {
		rdb := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
		c := cache.NewCache(rdb)
		if err := c.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, using in-process rate limiter", "error", err)
		} else {
			limiter = middleware.NewRedisLimiter(c, cfg.RateLimit.Burst)
			checks["redis"] = c
		}
	}

	gateway, err := llm.NewGateway(cfg.LLM)
	if err != nil {
		slog.Error("failed to build LLM gateway", "error", err)
		os.Exit(1)
	}
	transcriber := stt.New(cfg.STT)

	uploads, err := upload.NewStore(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		slog.Error("failed to prepare upload dir", "error", err)
		os.Exit(1)
	}

	svc := clinical.NewService(gateway, transcriber, recorder, clinical.Options{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		Language:    cfg.STT.Language,
		Timestamps:  cfg.STT.Timestamps,
	}, logger)

	router := api.NewRouter(cfg, api.Deps{
		Extractor: svc,
		Models:    gateway,
		Uploads:   uploads,
		Limiter:   limiter,
		Checks:    checks,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server",
			"addr", cfg.Addr(),
			"llm_provider", cfg.LLM.Provider,
			"stt_backend", transcriber.Name(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
