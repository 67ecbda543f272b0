package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docsmith/internal/api"
	"docsmith/internal/auth"
	"docsmith/internal/config"
	"docsmith/internal/llm"
	"docsmith/internal/pipeline"
	"docsmith/internal/render"
	"docsmith/internal/store"
	"docsmith/internal/templates"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database.
	if err := store.ApplyMigrations(cfg.DatabaseURL); err != nil {
		log.Error("apply migrations", "error", err)
		os.Exit(1)
	}
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	st := store.New(pool, cfg.StorageRoot, log)

	// Language model.
	lm, err := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.Model,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		log.Error("init llm client", "error", err)
		os.Exit(1)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		log.Error("init token verifier", "error", err)
		os.Exit(1)
	}

	registry := templates.Default()
	renderer := render.NewRenderer(cfg.TemplatesDir, registry,
		&render.DirImageResolver{Root: cfg.UploadsRoot}, log)
	orch := pipeline.NewOrchestrator(registry, lm, renderer, st, log)

	srv := api.NewServer(orch, st, registry, lm, verifier, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		st.Close()
	}()

	log.Info("starting docsmith", "port", cfg.Port, "model", lm.Model())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
