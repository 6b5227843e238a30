package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	APIBaseURL string
	LogLevel   string
	LogFormat  string
	// HTTPTimeout bounds every request made through the pipeline.
	HTTPTimeout time.Duration
	// RefreshLeeway triggers a proactive token refresh when the access
	// token expires within this window. Zero disables proactive refresh.
	RefreshLeeway time.Duration

	// StoreBackend selects the durable client state backend:
	// "file", "encrypted", "redis" or "memory".
	StoreBackend    string
	StorePath       string
	StorePassphrase string
	RedisURL        string

	MonitorHeartbeat time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		APIBaseURL:       getEnv("CBT_API_URL", "http://localhost:8080/api/v1"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		RefreshLeeway:    time.Duration(getEnvInt("REFRESH_LEEWAY_SECONDS", 30)) * time.Second,
		StoreBackend:     getEnv("STORE_BACKEND", "file"),
		StorePath:        getEnv("STORE_PATH", defaultStorePath()),
		StorePassphrase:  getEnv("STORE_PASSPHRASE", ""),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		MonitorHeartbeat: time.Duration(getEnvInt("MONITOR_HEARTBEAT_SECONDS", 15)) * time.Second,
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".cbt-state.json"
	}
	return filepath.Join(dir, "cbt", "state.json")
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
