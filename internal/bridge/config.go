package bridge

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultRealtimeURL is the OpenAI Realtime endpoint the bridge dials when
// OPENAI_REALTIME_URL is not set.
const DefaultRealtimeURL = "wss://api.openai.com/v1/realtime?model=gpt-realtime&voice=alloy&temperature=0.8"

// DefaultSystemMessage steers the assistant when SYSTEM_MESSAGE is not set.
const DefaultSystemMessage = "You are a helpful and friendly AI phone assistant. " +
	"Keep responses concise and natural. Interrupt yourself when the caller starts speaking."

// Config is the bridge's runtime configuration. Everything comes from the
// environment (a .env file in the working directory is honored when
// present), except the API key, which falls back to Google Secret Manager
// when the env leaves it unset.
type Config struct {
	OpenAIAPIKey  string
	RealtimeURL   string
	SystemMessage string

	// WSHost, when set, is the stable public host TwiML stream URLs point
	// at. CloudRunHost is the fallback; the request's forwarded host is
	// used when both are empty.
	WSHost       string
	CloudRunHost string

	Port int
}

// LoadConfig reads the bridge configuration. OPENAI_API_KEY must come from
// the environment or Secret Manager; everything else has a default.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		RealtimeURL:   envOr("OPENAI_REALTIME_URL", DefaultRealtimeURL),
		SystemMessage: envOr("SYSTEM_MESSAGE", DefaultSystemMessage),
		WSHost:        os.Getenv("WS_HOST"),
		CloudRunHost:  os.Getenv("CLOUD_RUN_SERVICE_URL"),
		Port:          8080,
	}

	if cfg.OpenAIAPIKey == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		key, err := secretLookup(ctx, "OPENAI_API_KEY")
		if err != nil {
			return nil, fmt.Errorf("missing OPENAI_API_KEY in env or Secret Manager: %w", err)
		}
		cfg.OpenAIAPIKey = key
	}

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", p)
		}
		cfg.Port = port
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
