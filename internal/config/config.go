package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CasdoorConfig holds the identity provider settings used to verify the
// bearer tokens the front-end passes through.
type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

// Config holds all application configuration.
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	// ProviderBaseURL points at the assessment backend that issues attempts
	// and grades submissions.
	ProviderBaseURL string
	ProviderTimeout time.Duration

	// SessionTTL bounds how long liveness markers and outcome snapshots are
	// kept around after a session ends.
	SessionTTL time.Duration

	RedisURL string

	// EventBroker selects the session event transport: "kafka" or the
	// in-process default.
	EventBroker  string
	KafkaBrokers []string

	Casdoor CasdoorConfig
}

// LoadConfig reads configuration from environment variables with sensible
// defaults. A .env file is loaded when present but is optional.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        parseLogLevel(getEnv("LOG_LEVEL", "info")),
		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "http://localhost:5000"),
		ProviderTimeout: time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 15)) * time.Second,
		SessionTTL:      time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		RedisURL:        getEnv("REDIS_URL", ""),
		EventBroker:     getEnv("EVENT_BROKER", ""),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		Casdoor: CasdoorConfig{
			Endpoint:     getEnv("CASDOOR_ENDPOINT", ""),
			ClientID:     getEnv("CASDOOR_CLIENT_ID", ""),
			ClientSecret: getEnv("CASDOOR_CLIENT_SECRET", ""),
			Cert:         getEnv("CASDOOR_CERT", ""),
			Organization: getEnv("CASDOOR_ORGANIZATION", ""),
			Application:  getEnv("CASDOOR_APPLICATION", ""),
		},
	}

	if cfg.EventBroker == "kafka" && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("EVENT_BROKER=kafka requires KAFKA_BROKERS")
	}

	return cfg, nil
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
