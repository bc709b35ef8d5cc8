package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	ep, err := cfg.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultEndpoint(), ep)
	assert.Equal(t, 150*time.Millisecond, cfg.Picker.HideDelay.Duration)
	assert.Equal(t, 2*time.Second, cfg.Submission.SuccessDelay.Duration)
	assert.Equal(t, 3*time.Second, cfg.Submission.FailureDelay.Duration)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().API.Endpoint, cfg.API.Endpoint)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[api]
endpoint = "https://staging.omenium.com/api"
timeout = "10s"

[picker]
hide_delay = "200ms"

[submission]
default_category = 3

[history]
driver = "none"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("OMENCREATOR_LOG_LEVEL", "debug")
	t.Setenv("OMENCREATOR_SERVER_CORS_ORIGINS", " http://a , ,http://b")
	t.Setenv("OMENCREATOR_PICKER_GAP", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	ep, err := cfg.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "https://staging.omenium.com/api", ep.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout.Duration)
	assert.Equal(t, 200*time.Millisecond, cfg.Picker.HideDelay.Duration)
	assert.Equal(t, int64(3), cfg.Submission.DefaultCategory)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 1, cfg.Picker.Gap, "unparsable override is ignored")
}

func TestLoad_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.API.Endpoint = "https://prod.example/api"
	cfg.Session.Store = "redis"
	cfg.Log.Level = "loud"
	cfg.History.Driver = "postgres"
	cfg.Notify.TelegramToken = "t"
	cfg.Notify.Events = []string{"market_created", "order_filled"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"config validation failed",
		"api: endpoint",
		"session: store redis requires redis.addr",
		"log: unknown level",
		"history: dsn must not be empty",
		"telegram_token and telegram_chat_id",
		`unknown event "order_filled"`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Session.Passphrase = "hunter2"
	cfg.Redis.Password = "pw"
	cfg.Server.APIKey = ""

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Session.Passphrase)
	assert.Equal(t, "***", out.Redis.Password)
	assert.Empty(t, out.Server.APIKey)
	assert.Equal(t, "hunter2", cfg.Session.Passphrase)

	out.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}
