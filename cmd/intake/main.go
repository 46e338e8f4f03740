package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/intake/internal/anthropic"
	"github.com/MikeSquared-Agency/intake/internal/api"
	"github.com/MikeSquared-Agency/intake/internal/config"
	"github.com/MikeSquared-Agency/intake/internal/dialogue"
	"github.com/MikeSquared-Agency/intake/internal/hermes"
	"github.com/MikeSquared-Agency/intake/internal/intake"
	"github.com/MikeSquared-Agency/intake/internal/processor"
	"github.com/MikeSquared-Agency/intake/internal/session"
	"github.com/MikeSquared-Agency/intake/internal/slack"
	"github.com/MikeSquared-Agency/intake/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("intake starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ticket store
	db, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open ticket store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Conversation state
	sessions, err := session.NewManager(ctx, cfg.SessionTTL)
	if err != nil {
		slog.Error("failed to create session registry", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	deps := processor.Deps{
		Sessions:    sessions,
		Store:       db,
		Validator:   intake.Validator{StrictCatalog: cfg.StrictCatalog},
		Responder:   dialogue.Scripted{},
		SinkTimeout: cfg.SinkTimeout,
	}

	// Anthropic client (optional, replies fall back to the call script)
	if cfg.AnthropicAPIKey != "" {
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		deps.Responder = dialogue.NewLLM(llm, slog.Default())
		slog.Info("anthropic client ready", "model", llm.Model())
	} else {
		slog.Info("anthropic not configured, using scripted replies")
	}

	// NATS/Hermes (optional, HTTP works without it)
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		deps.Publisher = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Slack poster (optional)
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		deps.Notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, new tickets will not be announced")
	}

	proc := processor.New(deps, slog.Default())

	if hermesClient != nil {
		if err := subscribe(hermesClient, proc); err != nil {
			slog.Error("failed to subscribe", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, proc, db, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	if hermesClient != nil {
		if err := hermesClient.Publish("swarm.agent.intake.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("intake ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	proc.Wait()
	cancel()
	slog.Info("intake stopped")
}

func openStore(ctx context.Context, cfg config.Config) (store.TicketStore, error) {
	if cfg.DatabaseURL != "" {
		db, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, slog.Default())
		if err != nil {
			return nil, err
		}
		slog.Info("database connected", "driver", "postgres")
		return db, nil
	}
	db, err := store.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "driver", "sqlite", "path", cfg.SQLitePath)
	return db, nil
}

func subscribe(h *hermes.Client, proc *processor.Processor) error {
	subs := []struct {
		subject string
		handler func(string, []byte)
	}{
		{hermes.SubjectSessionStarted, proc.HandleSessionStarted},
		{hermes.SubjectSessionEnded, proc.HandleSessionEnded},
		{hermes.SubjectTranscriptTurn, proc.HandleTranscriptTurn},
	}
	for _, s := range subs {
		if err := h.Subscribe(s.subject, s.handler); err != nil {
			return err
		}
	}

	tools := []struct {
		subject string
		handler func(string, []byte) any
	}{
		{hermes.SubjectToolMissingFields, proc.HandleToolMissingFields},
		{hermes.SubjectToolCreateTicket, proc.HandleToolCreateTicket},
		{hermes.SubjectToolUpdateName, proc.HandleToolUpdateName},
		{hermes.SubjectToolUpdateEmail, proc.HandleToolUpdateEmail},
	}
	for _, t := range tools {
		if err := h.Reply(t.subject, t.handler); err != nil {
			return err
		}
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
