package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OMENCREATOR_* environment variable overrides, and
// returns the final Config. A missing file leaves the defaults in place. The
// returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OMENCREATOR_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── API ──
	setStr(&cfg.API.Endpoint, "OMENCREATOR_API_ENDPOINT")
	setDuration(&cfg.API.Timeout, "OMENCREATOR_API_TIMEOUT")
	setStr(&cfg.API.UserAgent, "OMENCREATOR_API_USER_AGENT")
	setDuration(&cfg.API.CacheTTL, "OMENCREATOR_API_CACHE_TTL")
	setStr(&cfg.API.ReferenceCache, "OMENCREATOR_API_REFERENCE_CACHE")

	// ── Session ──
	setStr(&cfg.Session.Store, "OMENCREATOR_SESSION_STORE")
	setStr(&cfg.Session.Path, "OMENCREATOR_SESSION_PATH")
	setStr(&cfg.Session.Passphrase, "OMENCREATOR_SESSION_PASSPHRASE")
	setInt(&cfg.Session.Iterations, "OMENCREATOR_SESSION_ITERATIONS")

	// ── Submission ──
	setDuration(&cfg.Submission.SuccessDelay, "OMENCREATOR_SUBMISSION_SUCCESS_DELAY")
	setDuration(&cfg.Submission.FailureDelay, "OMENCREATOR_SUBMISSION_FAILURE_DELAY")
	setInt64(&cfg.Submission.DefaultCategory, "OMENCREATOR_SUBMISSION_DEFAULT_CATEGORY")

	// ── Picker ──
	setDuration(&cfg.Picker.HideDelay, "OMENCREATOR_PICKER_HIDE_DELAY")
	setInt(&cfg.Picker.TopOffset, "OMENCREATOR_PICKER_TOP_OFFSET")
	setInt(&cfg.Picker.Gap, "OMENCREATOR_PICKER_GAP")

	// ── Log ──
	setStr(&cfg.Log.Level, "OMENCREATOR_LOG_LEVEL")
	setStr(&cfg.Log.Format, "OMENCREATOR_LOG_FORMAT")
	setStr(&cfg.Log.File, "OMENCREATOR_LOG_FILE")

	// ── Server ──
	setStr(&cfg.Server.Addr, "OMENCREATOR_SERVER_ADDR")
	setStr(&cfg.Server.APIKey, "OMENCREATOR_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "OMENCREATOR_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "OMENCREATOR_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "OMENCREATOR_SERVER_RATE_WINDOW")
	setDuration(&cfg.Server.IdempotencyTTL, "OMENCREATOR_SERVER_IDEMPOTENCY_TTL")

	// ── History ──
	setStr(&cfg.History.Driver, "OMENCREATOR_HISTORY_DRIVER")
	setStr(&cfg.History.Path, "OMENCREATOR_HISTORY_PATH")
	setStr(&cfg.History.DSN, "OMENCREATOR_HISTORY_DSN")
	setInt(&cfg.History.PoolMaxConns, "OMENCREATOR_HISTORY_POOL_MAX_CONNS")
	setBool(&cfg.History.RunMigrations, "OMENCREATOR_HISTORY_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "OMENCREATOR_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OMENCREATOR_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OMENCREATOR_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OMENCREATOR_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OMENCREATOR_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OMENCREATOR_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "OMENCREATOR_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OMENCREATOR_S3_REGION")
	setStr(&cfg.S3.Bucket, "OMENCREATOR_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OMENCREATOR_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OMENCREATOR_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OMENCREATOR_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OMENCREATOR_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OMENCREATOR_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OMENCREATOR_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OMENCREATOR_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OMENCREATOR_NOTIFY_EVENTS")

	// ── TUI ──
	setBool(&cfg.TUI.Mouse, "OMENCREATOR_TUI_MOUSE")
	setStr(&cfg.TUI.LogFile, "OMENCREATOR_TUI_LOG_FILE")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
