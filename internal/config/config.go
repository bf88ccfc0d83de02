package config

import (
	"os"
	"strconv"
)

// Config holds runtime configuration for the relay service.
//
// GeminiAPIKey may be empty at load time: a missing key is an operational
// fault reported on first use, not a startup crash.
type Config struct {
	Addr                string
	DBPath              string
	AuthTokens          string
	GeminiAPIKey        string
	GeminiAPIBase       string
	GeminiModel         string
	ChatTimeoutSeconds  int
	TitleTimeoutSeconds int
	LogLevel            string
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Addr:                envOrDefault("CHATRELAY_ADDR", ":8080"),
		DBPath:              envOrDefault("CHATRELAY_DB_PATH", "data/chatrelay.db"),
		AuthTokens:          os.Getenv("CHATRELAY_AUTH_TOKENS"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiAPIBase:       envOrDefault("GEMINI_API_BASE", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:         envOrDefault("GEMINI_MODEL", "gemini-flash-latest"),
		ChatTimeoutSeconds:  envIntOrDefault("CHAT_TIMEOUT_SECONDS", 30),
		TitleTimeoutSeconds: envIntOrDefault("TITLE_TIMEOUT_SECONDS", 15),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
