package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

const (
	ChannelDriverSNS      = "sns"
	ChannelDriverTelegram = "telegram"
)

var ErrDatabaseURLMissing = errors.New("DATABASE_URL is not set")
var ErrChannelTargetMissing = errors.New("CHANNEL_TARGET is not set")
var ErrUnknownChannelDriver = errors.New("CHANNEL_DRIVER must be 'sns' or 'telegram'")
var ErrTelegramTokenMissing = errors.New("TELEGRAM_TOKEN is required for the telegram channel")

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL       string
	LogLevel          string
	Environment       string
	CropTemplatesPath string // empty: embedded catalogue

	DaysAhead     int
	BatchSize     int
	BatchPause    time.Duration
	ChannelDriver string
	ChannelTarget string // SNS topic ARN or Telegram chat id / @channel
	ProductName   string

	CronSpecDailyDigest string
	DigestLocation      *time.Location // cron schedule and "today" are both read in this zone
	RunTimeout          time.Duration
	HTTPPort            string
	HTTPAdminToken      string // empty leaves POST /dispatch unauthenticated

	AWSRegion      string
	AWSEndpointURL string // LocalStack and friends

	TelegramToken   string
	AdminTelegramID int64

	RedisAddr     string // empty disables the sent ledger
	RedisPassword string
	RedisDB       int
	SentLedgerTTL time.Duration

	PublishRatePerSecond    float64 // 0 = unlimited
	PersistRegeneratedPlans bool
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		CropTemplatesPath: os.Getenv("CROP_TEMPLATES_PATH"),
		ChannelTarget:     os.Getenv("CHANNEL_TARGET"),
		AWSEndpointURL:    os.Getenv("AWS_ENDPOINT_URL"),
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		HTTPAdminToken:    os.Getenv("HTTP_ADMIN_TOKEN"),
	}
	var err error

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))
	cfg.ChannelDriver = strings.ToLower(getEnv("CHANNEL_DRIVER", ChannelDriverSNS))
	cfg.ProductName = getEnv("PRODUCT_NAME", "TerraTrack")
	cfg.CronSpecDailyDigest = getEnv("CRON_SPEC_DAILY_DIGEST", "0 8 * * *") // Default: 8:00 AM daily
	cfg.HTTPPort = getEnv("HTTP_PORT", "8080")
	cfg.AWSRegion = getEnv("AWS_REGION", "us-east-1")

	if cfg.DigestLocation, err = time.LoadLocation(getEnv("DIGEST_TIMEZONE", "UTC")); err != nil {
		return nil, fmt.Errorf("invalid DIGEST_TIMEZONE: %w", err)
	}

	if cfg.DaysAhead, err = getInt("DAYS_AHEAD", 7); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getInt("BATCH_SIZE", 25); err != nil {
		return nil, err
	}
	pauseSeconds, err := getFloat("BATCH_PAUSE_SECONDS", 0.5)
	if err != nil {
		return nil, err
	}
	cfg.BatchPause = time.Duration(pauseSeconds * float64(time.Second))

	if cfg.RunTimeout, err = getDuration("RUN_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SentLedgerTTL, err = getDuration("SENT_LEDGER_TTL", 48*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.PublishRatePerSecond, err = getFloat("PUBLISH_RATE_PER_SECOND", 0); err != nil {
		return nil, err
	}

	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	if v := os.Getenv("PERSIST_REGENERATED_PLANS"); v != "" {
		cfg.PersistRegeneratedPlans, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PERSIST_REGENERATED_PLANS: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks the settings a dispatch run cannot do without.
func (c *AppConfig) Validate() error {
	if c.DatabaseURL == "" {
		return ErrDatabaseURLMissing
	}
	if c.ChannelTarget == "" {
		return ErrChannelTargetMissing
	}
	switch c.ChannelDriver {
	case ChannelDriverSNS:
	case ChannelDriverTelegram:
		if c.TelegramToken == "" {
			return ErrTelegramTokenMissing
		}
	default:
		return fmt.Errorf("%w, got %q", ErrUnknownChannelDriver, c.ChannelDriver)
	}
	if c.DaysAhead < 0 {
		return fmt.Errorf("DAYS_AHEAD must not be negative, got %d", c.DaysAhead)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.BatchPause < 0 {
		return fmt.Errorf("BATCH_PAUSE_SECONDS must not be negative, got %s", c.BatchPause)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
