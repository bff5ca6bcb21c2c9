package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Stream struct {
		URL                 string
		BaseDelay           time.Duration
		MaxDelay            time.Duration
		MaxAttempts         int
		AbnormalCloseFactor float64
		DialTimeout         time.Duration
		SurfaceParseErrors  bool
	}
	Notify struct {
		DefaultTTL  time.Duration
		CriticalTTL time.Duration
		QueueSize   int
		MaxWorkers  int
	}
	DB struct {
		DSN string
	}
	Telegram struct {
		BotToken  string
		ChatID    int64
		RateLimit int
		MinLevel  string
	}
	API struct {
		Port     string
		BasePath string
	}
	Log struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Stream settings
	cfg.Stream.URL = os.Getenv("STREAM_URL")
	if ms, err := strconv.Atoi(os.Getenv("STREAM_BASE_DELAY_MS")); err == nil {
		cfg.Stream.BaseDelay = time.Duration(ms) * time.Millisecond
	}
	if ms, err := strconv.Atoi(os.Getenv("STREAM_MAX_DELAY_MS")); err == nil {
		cfg.Stream.MaxDelay = time.Duration(ms) * time.Millisecond
	}
	if n, err := strconv.Atoi(os.Getenv("STREAM_MAX_ATTEMPTS")); err == nil {
		cfg.Stream.MaxAttempts = n
	}
	if f, err := strconv.ParseFloat(os.Getenv("STREAM_ABNORMAL_CLOSE_FACTOR"), 64); err == nil {
		cfg.Stream.AbnormalCloseFactor = f
	}
	if ms, err := strconv.Atoi(os.Getenv("STREAM_DIAL_TIMEOUT_MS")); err == nil {
		cfg.Stream.DialTimeout = time.Duration(ms) * time.Millisecond
	}
	if b, err := strconv.ParseBool(os.Getenv("STREAM_SURFACE_PARSE_ERRORS")); err == nil {
		cfg.Stream.SurfaceParseErrors = b
	}

	// Notification settings. A zero critical TTL keeps critical alerts
	// visible until dismissed.
	if ms, err := strconv.Atoi(os.Getenv("NOTIFY_DEFAULT_TTL_MS")); err == nil {
		cfg.Notify.DefaultTTL = time.Duration(ms) * time.Millisecond
	}
	if ms, err := strconv.Atoi(os.Getenv("NOTIFY_CRITICAL_TTL_MS")); err == nil {
		cfg.Notify.CriticalTTL = time.Duration(ms) * time.Millisecond
	}
	if qs, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Notify.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Notify.MaxWorkers = mw
	}

	// Database DSN, optional
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Telegram settings, optional
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ChatID = id
	}
	if n, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.Telegram.RateLimit = n
	}
	cfg.Telegram.MinLevel = os.Getenv("TELEGRAM_MIN_LEVEL")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Logging settings
	cfg.Log.Dir = os.Getenv("LOG_DIR")
	cfg.Log.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.Stream.URL == "" {
		missing = append(missing, "STREAM_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Stream.BaseDelay == 0 {
		cfg.Stream.BaseDelay = time.Second
	}
	if cfg.Stream.MaxDelay == 0 {
		cfg.Stream.MaxDelay = 30 * time.Second
	}
	if cfg.Stream.MaxAttempts == 0 {
		cfg.Stream.MaxAttempts = 10
	}
	if cfg.Stream.AbnormalCloseFactor == 0 {
		cfg.Stream.AbnormalCloseFactor = 1.5
	}
	if cfg.Stream.DialTimeout == 0 {
		cfg.Stream.DialTimeout = 10 * time.Second
	}
	if cfg.Notify.DefaultTTL == 0 {
		cfg.Notify.DefaultTTL = 5 * time.Minute
	}
	if cfg.Notify.QueueSize == 0 {
		cfg.Notify.QueueSize = 500
	}
	if cfg.Notify.MaxWorkers == 0 {
		cfg.Notify.MaxWorkers = 4
	}
	if cfg.Telegram.RateLimit == 0 {
		cfg.Telegram.RateLimit = 1
	}
	if cfg.Telegram.MinLevel == "" {
		cfg.Telegram.MinLevel = "warning"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = "logs"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}
