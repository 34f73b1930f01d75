package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tripreport/pkg/pinme"
)

// Config is the runtime configuration shared by the serve and export
// commands.
type Config struct {
	PinmeBaseURL   string
	PinmeUser      string
	PinmePassword  string
	Port           int
	TraccarServer  string
	PublicDir      string
	MaxConcurrency int
	HTTPTimeout    time.Duration
	MetricsAddr    string

	// Export audit events go to Loki when LokiURL is set.
	LokiURL      string
	LokiUser     string
	LokiPassword string
}

// Load reads the given .env files (default ".env") when they exist, then
// builds the configuration from the environment. Variables already set in
// the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		slog.Debug("Loaded environment file", "file", file)
	}

	cfg := &Config{
		PinmeBaseURL:  firstEnv(pinme.DefaultBaseURL, "PINME_BASE", "PINME_BASE_URL"),
		PinmeUser:     os.Getenv("PINME_USER"),
		PinmePassword: os.Getenv("PINME_PASSWORD"),
		TraccarServer: firstEnv("gps.fleetmap.pt", "TRACCAR_SERVER"),
		PublicDir:     firstEnv("public", "PUBLIC_DIR"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
		LokiURL:       os.Getenv("LOKI_URL"),
		LokiUser:      os.Getenv("LOKI_USER"),
		LokiPassword:  os.Getenv("LOKI_PASSWORD"),
	}

	var err error
	if cfg.Port, err = intEnv("PORT", 4000); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency, err = intEnv("MAX_CONCURRENCY", 6); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = durationEnv("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if (c.PinmeUser == "") != (c.PinmePassword == "") {
		return fmt.Errorf("PINME_USER and PINME_PASSWORD must be set together")
	}
	return nil
}

// HasBasicAuth reports whether server-side credentials are configured.
func (c *Config) HasBasicAuth() bool {
	return c.PinmeUser != "" && c.PinmePassword != ""
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// MaskedUser hides all but the last two characters of the configured user.
func (c *Config) MaskedUser() string {
	if c.PinmeUser == "" {
		return "∅"
	}
	r := []rune(c.PinmeUser)
	if len(r) <= 2 {
		return string(r)
	}
	return strings.Repeat("*", len(r)-2) + string(r[len(r)-2:])
}

func firstEnv(def string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
