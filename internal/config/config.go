package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	LogLevel        string
	DatabaseURL     string
	SQLitePath      string
	NatsURL         string
	NatsToken       string
	AnthropicAPIKey string
	AnthropicModel  string
	SlackBotToken   string
	SlackChannel    string
	APIToken        string
	SessionTTL      time.Duration
	SinkTimeout     time.Duration
	StrictCatalog   bool
}

func Load() Config {
	return Config{
		Port:            envInt("INTAKE_PORT", 8760),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		SQLitePath:      envStr("INTAKE_SQLITE_PATH", "tickets.db"),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("INTAKE_MODEL", ""),
		SlackBotToken:   envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:    envStr("SLACK_TICKETS_CHANNEL", ""),
		APIToken:        envStr("INTAKE_API_TOKEN", ""),
		SessionTTL:      envDuration("INTAKE_SESSION_TTL", 2*time.Hour),
		SinkTimeout:     envDuration("INTAKE_SINK_TIMEOUT", 5*time.Second),
		StrictCatalog:   envBool("INTAKE_STRICT_CATALOG", false),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration rejects non-positive values as well as unparseable ones.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
