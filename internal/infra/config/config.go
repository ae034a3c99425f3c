package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	"github.com/joho/godotenv"
)

const (
	EmailProviderConsole  = "console"
	EmailProviderSendgrid = "sendgrid"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string
	LogLevel    string
	Environment string
	AppName     string
	Location    *time.Location

	PollInterval        time.Duration
	SafetyOffset        time.Duration
	StagnationThreshold int
	CallTimeout         time.Duration
	Concurrency         int
	ShutdownGrace       time.Duration
	ListFailureAlert    int

	EmailProvider  string
	SendgridAPIKey string
	EmailFromAddr  string
	EmailFromName  string

	TelegramToken           string // Optional; enables the Telegram listener and ops commands
	TelegramBroadcastChatID int64
	AdminTelegramID         int64

	MetricsAddr string // Empty disables the metrics endpoint
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getenv("ENVIRONMENT", "development"))
	cfg.AppName = getenv("APP_NAME", "Audit Manager")

	tz := getenv("TIMEZONE", "Local")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	if cfg.PollInterval, err = durationEnv("REMINDER_POLL_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.PollInterval < time.Second {
		return nil, fmt.Errorf("REMINDER_POLL_INTERVAL must be at least 1s, got %s", cfg.PollInterval)
	}
	if cfg.SafetyOffset, err = durationEnv("REMINDER_SAFETY_OFFSET", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SafetyOffset < 0 {
		return nil, fmt.Errorf("REMINDER_SAFETY_OFFSET must not be negative")
	}
	if cfg.CallTimeout, err = durationEnv("REMINDER_CALL_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownGrace, err = durationEnv("REMINDER_SHUTDOWN_GRACE", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StagnationThreshold, err = positiveIntEnv("REMINDER_STAGNATION_THRESHOLD", 2); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = positiveIntEnv("REMINDER_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.ListFailureAlert, err = positiveIntEnv("REMINDER_LIST_FAILURE_ALERT", 3); err != nil {
		return nil, err
	}

	cfg.EmailProvider = strings.ToLower(getenv("EMAIL_PROVIDER", EmailProviderConsole))
	cfg.SendgridAPIKey = os.Getenv("SENDGRID_API_KEY")
	cfg.EmailFromAddr = getenv("EMAIL_FROM_ADDRESS", "noreply@localhost")
	cfg.EmailFromName = getenv("EMAIL_FROM_NAME", cfg.AppName)
	switch cfg.EmailProvider {
	case EmailProviderConsole:
	case EmailProviderSendgrid:
		if cfg.SendgridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
		}
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramBroadcastChatID, err = int64Env("TELEGRAM_BROADCAST_CHAT_ID"); err != nil {
		return nil, err
	}
	if cfg.AdminTelegramID, err = int64Env("ADMIN_TELEGRAM_ID"); err != nil {
		return nil, err
	}

	cfg.MetricsAddr = getenv("METRICS_ADDR", ":9090")

	return cfg, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func int64Env(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
