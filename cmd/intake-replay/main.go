// Command intake-replay runs recorded call logs through the intake pipeline
// and prints how far each call got.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/intake/internal/anthropic"
	"github.com/MikeSquared-Agency/intake/internal/config"
	"github.com/MikeSquared-Agency/intake/internal/dialogue"
	"github.com/MikeSquared-Agency/intake/internal/hermes"
	"github.com/MikeSquared-Agency/intake/internal/intake"
	"github.com/MikeSquared-Agency/intake/internal/processor"
	"github.com/MikeSquared-Agency/intake/internal/replay"
	"github.com/MikeSquared-Agency/intake/internal/session"
	"github.com/MikeSquared-Agency/intake/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()
	cfg := config.Load()

	statePath := flag.String("state", "replay-state.json", "progress file for resumable runs")
	create := flag.Bool("create", false, "create tickets for calls that end complete")
	dbPath := flag.String("db", cfg.SQLitePath, "SQLite ticket database")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if flag.NArg() == 0 {
		logger.Error("usage: intake-replay [flags] calls.jsonl...")
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewSQLiteStore(*dbPath)
	if err != nil {
		logger.Error("failed to open ticket store", "error", err)
		return 1
	}
	defer db.Close()

	sessions, err := session.NewManager(ctx, cfg.SessionTTL)
	if err != nil {
		logger.Error("failed to create session registry", "error", err)
		return 1
	}
	defer sessions.Close()

	deps := processor.Deps{
		Sessions:    sessions,
		Store:       db,
		Validator:   intake.Validator{StrictCatalog: cfg.StrictCatalog},
		Responder:   dialogue.Scripted{},
		SinkTimeout: cfg.SinkTimeout,
	}
	if cfg.AnthropicAPIKey != "" {
		deps.Responder = dialogue.NewLLM(anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), logger)
	}

	// Replies and ticket events go out on NATS when it is configured.
	if cfg.NatsURL != "" {
		hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			return 1
		}
		defer hermesClient.Close()
		deps.Publisher = hermesClient
		logger.Info("NATS connected", "url", cfg.NatsURL)
	}

	proc := processor.New(deps, logger)
	runner := replay.NewRunner(replay.Config{
		Files:         flag.Args(),
		StatePath:     *statePath,
		CreateTickets: *create,
	}, proc, logger)

	outcomes, err := runner.Run(ctx)
	enc := json.NewEncoder(os.Stdout)
	for _, o := range outcomes {
		enc.Encode(o)
	}
	if err != nil {
		logger.Error("replay failed", "error", err)
		return 1
	}
	return 0
}
