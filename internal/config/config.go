package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for pdown.
type Config struct {
	// Share access
	BaseURL   string
	Password  string
	UserAgent string

	// Browser settings
	ChromePath   string
	Headless     bool
	ProfileRoot  string
	NavTimeoutMS int
	MaxSessions  int
	LocatorsFile string

	// Logging
	LogLevel    string
	LogFile     string
	EventLogDir string
	SnapshotDir string

	// NotifyURL receives an ntfy summary after each download run.
	NotifyURL string

	// HTTP API (pdown serve)
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BaseURL:          strings.TrimRight(getEnvOrDefault("PDOWN_BASE_URL", "https://drive.proton.me"), "/"),
		Password:         os.Getenv("SHARE_PASSWORD"),
		UserAgent:        os.Getenv("USER_AGENT"),
		ChromePath:       os.Getenv("PDOWN_CHROME_PATH"),
		Headless:         getEnvBoolOrDefault("PDOWN_HEADLESS", true),
		ProfileRoot:      os.Getenv("PDOWN_PROFILE_ROOT"),
		NavTimeoutMS:     getEnvIntOrDefault("PDOWN_NAV_TIMEOUT_MS", 30000),
		MaxSessions:      getEnvIntOrDefault("PDOWN_MAX_SESSIONS", 4),
		LocatorsFile:     os.Getenv("PDOWN_LOCATORS_FILE"),
		LogLevel:         strings.ToLower(getEnvOrDefault("PDOWN_LOG_LEVEL", "info")),
		LogFile:          os.Getenv("PDOWN_LOG_FILE"),
		EventLogDir:      os.Getenv("PDOWN_EVENT_LOG_DIR"),
		SnapshotDir:      os.Getenv("PDOWN_SNAPSHOT_DIR"),
		NotifyURL:        os.Getenv("PDOWN_NOTIFY_URL"),
		BindAddr:         getEnvOrDefault("PDOWN_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   getEnvListOrDefault("PDOWN_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193"}),
		PortAutoFallback: getEnvBoolOrDefault("PDOWN_PORT_AUTO_FALLBACK", true),
	}
	if cfg.NavTimeoutMS < 1000 {
		cfg.NavTimeoutMS = 1000
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be clamped.
func (c *Config) Validate() error {
	if c.MaxSessions < 0 {
		return fmt.Errorf("PDOWN_MAX_SESSIONS must be >= 0, got %d", c.MaxSessions)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("PDOWN_LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("PDOWN_BASE_URL must be an http(s) URL, got %q", c.BaseURL)
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
