// Package config defines the top-level configuration for the market creator
// panel and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OMENCREATOR_* environment variables.
type Config struct {
	API        APIConfig        `toml:"api"`
	Session    SessionConfig    `toml:"session"`
	Submission SubmissionConfig `toml:"submission"`
	Picker     PickerConfig     `toml:"picker"`
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	History    HistoryConfig    `toml:"history"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	TUI        TUIConfig        `toml:"tui"`
}

// APIConfig selects the initial endpoint and tunes the HTTP client.
type APIConfig struct {
	// Endpoint is the name or base URL of one of the known endpoints.
	Endpoint       string   `toml:"endpoint"`
	Timeout        duration `toml:"timeout"`
	UserAgent      string   `toml:"user_agent"`
	CacheTTL       duration `toml:"cache_ttl"`
	ReferenceCache string   `toml:"reference_cache"` // memory | redis | none
}

// SessionConfig chooses where per-endpoint tokens are kept.
type SessionConfig struct {
	Store      string `toml:"store"` // file | redis | memory
	Path       string `toml:"path"`
	Passphrase string `toml:"passphrase"`
	Iterations int    `toml:"iterations"`
}

// SubmissionConfig holds the submission pipeline knobs.
type SubmissionConfig struct {
	SuccessDelay    duration `toml:"success_delay"`
	FailureDelay    duration `toml:"failure_delay"`
	DefaultCategory int64    `toml:"default_category"`
}

// PickerConfig tunes the cascading category selector. Offsets are in
// terminal cells.
type PickerConfig struct {
	HideDelay duration `toml:"hide_delay"`
	TopOffset int      `toml:"top_offset"`
	Gap       int      `toml:"gap"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json | text
	File   string `toml:"file"`
}

// ServerConfig holds HTTP server parameters for the headless API.
type ServerConfig struct {
	Addr        string   `toml:"addr"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"` // requests per window, 0 disables
	RateWindow  duration `toml:"rate_window"`
	// IdempotencyTTL bounds how long an Idempotency-Key is remembered.
	IdempotencyTTL duration `toml:"idempotency_ttl"`
}

// HistoryConfig chooses where finished submissions are recorded.
type HistoryConfig struct {
	Driver        string `toml:"driver"` // sqlite | postgres | none
	Path          string `toml:"path"`
	DSN           string `toml:"dsn"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables
// every Redis-backed component.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the image
// mirror. An empty Bucket disables mirroring.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Mouse   bool   `toml:"mouse"`
	LogFile string `toml:"log_file"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "150ms", "3s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "150ms" or "3s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		API: APIConfig{
			Endpoint:       domain.DefaultEndpoint().Name,
			Timeout:        duration{30 * time.Second},
			UserAgent:      "omencreator/1.0",
			CacheTTL:       duration{5 * time.Minute},
			ReferenceCache: "memory",
		},
		Session: SessionConfig{
			Store: "file",
			Path:  "omencreator-sessions.json",
		},
		Submission: SubmissionConfig{
			SuccessDelay: duration{2 * time.Second},
			FailureDelay: duration{3 * time.Second},
		},
		Picker: PickerConfig{
			HideDelay: duration{150 * time.Millisecond},
			TopOffset: 1,
			Gap:       1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr:           ":8000",
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:      30,
			RateWindow:     duration{time.Minute},
			IdempotencyTTL: duration{10 * time.Minute},
		},
		History: HistoryConfig{
			Driver:        "sqlite",
			Path:          "omencreator-history.db",
			PoolMaxConns:  4,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"market_created", "market_failed"},
		},
		TUI: TUIConfig{
			Mouse: true,
		},
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSessionStores = map[string]bool{"file": true, "redis": true, "memory": true}

var validHistoryDrivers = map[string]bool{"sqlite": true, "postgres": true, "none": true}

var validCaches = map[string]bool{"memory": true, "redis": true, "none": true}

var validEvents = map[string]bool{"market_created": true, "market_failed": true}

// Endpoint resolves API.Endpoint against the known set.
func (c *Config) Endpoint() (domain.Endpoint, error) {
	if strings.TrimSpace(c.API.Endpoint) == "" {
		return domain.DefaultEndpoint(), nil
	}
	return domain.LookupEndpoint(c.API.Endpoint)
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// API
	if _, err := c.Endpoint(); err != nil {
		errs = append(errs, fmt.Sprintf("api: endpoint %q is not a known endpoint", c.API.Endpoint))
	}
	if c.API.Timeout.Duration <= 0 {
		errs = append(errs, "api: timeout must be > 0")
	}
	if !validCaches[strings.ToLower(c.API.ReferenceCache)] {
		errs = append(errs, fmt.Sprintf("api: unknown reference_cache %q (valid: memory, redis, none)", c.API.ReferenceCache))
	}
	if strings.EqualFold(c.API.ReferenceCache, "redis") && c.Redis.Addr == "" {
		errs = append(errs, "api: reference_cache redis requires redis.addr")
	}

	// Session
	switch strings.ToLower(c.Session.Store) {
	case "file":
		if c.Session.Path == "" {
			errs = append(errs, "session: path must not be empty for the file store")
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "session: store redis requires redis.addr")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("session: unknown store %q (valid: file, redis, memory)", c.Session.Store))
	}
	if c.Session.Iterations < 0 {
		errs = append(errs, "session: iterations must be >= 0")
	}

	// Submission
	if c.Submission.SuccessDelay.Duration <= 0 {
		errs = append(errs, "submission: success_delay must be > 0")
	}
	if c.Submission.FailureDelay.Duration <= 0 {
		errs = append(errs, "submission: failure_delay must be > 0")
	}
	if c.Submission.DefaultCategory < 0 {
		errs = append(errs, "submission: default_category must be >= 0")
	}

	// Picker
	if c.Picker.HideDelay.Duration < 0 {
		errs = append(errs, "picker: hide_delay must be >= 0")
	}

	// Log
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("log: unknown format %q (valid: json, text)", c.Log.Format))
	}

	// Server
	if c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
	}

	// History
	switch strings.ToLower(c.History.Driver) {
	case "sqlite":
		if c.History.Path == "" {
			errs = append(errs, "history: path must not be empty for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(c.History.DSN) == "" {
			errs = append(errs, "history: dsn must not be empty for postgres")
		}
		if c.History.PoolMaxConns < 1 {
			errs = append(errs, "history: pool_max_conns must be >= 1")
		}
	case "none":
	default:
		errs = append(errs, fmt.Sprintf("history: unknown driver %q (valid: sqlite, postgres, none)", c.History.Driver))
	}

	// Redis
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Bucket != "" && c.S3.Region == "" {
		errs = append(errs, "s3: region must not be empty when bucket is set")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	for _, ev := range c.Notify.Events {
		if !validEvents[ev] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q (valid: market_created, market_failed)", ev))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
