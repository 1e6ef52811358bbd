// Package config provides configuration for the relay.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Operating modes.
const (
	ModeSingle = "single"
	ModeMulti  = "multi"
)

// Config holds the relay configuration.
type Config struct {
	// Server settings
	HTTPPort    int
	MetricsPort int

	// Operating mode: "single" or "multi"
	Mode string

	// Database. Empty selects the volatile in-memory store.
	DatabaseURL string

	// Credentials
	APIToken  string // single-user bearer token
	JWTSecret string // multi-user bearer secret (HS256)

	// Chat provider
	AllowedChannelID string // single-user allowed identity, multi-user migration fallback
	ChatBaseURL      string
	ChatBotToken     string

	// Multi-user directory seed: channel identity -> internal user id
	UserDirectory map[string]string

	// Link codes
	RedisAddr   string
	LinkCodeTTL time.Duration

	// Expiry sweep. Zero interval disables the sweeper.
	SweepInterval time.Duration
	QuestionTTL   time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:         getEnvInt("HTTP_PORT", 8080),
		MetricsPort:      getEnvInt("METRICS_PORT", 9090),
		Mode:             getEnv("MODE", ModeSingle),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		APIToken:         getEnv("API_TOKEN", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		AllowedChannelID: getEnv("ALLOWED_CHANNEL_ID", ""),
		ChatBaseURL:      getEnv("CHAT_BASE_URL", ""),
		ChatBotToken:     getEnv("CHAT_BOT_TOKEN", ""),
		UserDirectory:    parseDirectory(getEnv("USER_DIRECTORY", "")),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		LinkCodeTTL:      time.Duration(getEnvInt("LINK_CODE_TTL_MS", 600000)) * time.Millisecond,
		SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_MS", 0)) * time.Millisecond,
		QuestionTTL:      time.Duration(getEnvInt("QUESTION_TTL_MS", 0)) * time.Millisecond,
	}
	return cfg
}

// parseDirectory parses "channel:user,channel:user" pairs.
func parseDirectory(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			out[parts[0]] = parts[1]
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
