package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: from-file
  admin_ids: [1, 2]
  run_mode: polling
logging:
  level: debug
`), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, []int64{1, 2}, cfg.Telegram.AdminIDs)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv("BOT_TOKEN", "tok")
	t.Setenv("ADMIN_IDS", "10,20")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, cfg.Telegram.AdminIDs)
	assert.True(t, cfg.Telegram.IsAdmin(20))
	assert.False(t, cfg.Telegram.IsAdmin(30))
	assert.False(t, cfg.Telegram.IsAdmin(0))
}

func TestNormalizeRejects(t *testing.T) {
	base := func() Config {
		return Config{Telegram: TelegramConfig{Token: "t", AdminIDs: []int64{1}}}
	}

	cfg := base()
	cfg.Telegram.Token = " "
	assert.ErrorContains(t, Normalize(&cfg), "token")

	cfg = base()
	cfg.Telegram.AdminIDs = nil
	assert.ErrorContains(t, Normalize(&cfg), "admin_ids")

	cfg = base()
	cfg.Telegram.RunMode = "carrier-pigeon"
	assert.ErrorContains(t, Normalize(&cfg), "run_mode")

	cfg = base()
	cfg.Telegram.RunMode = RunModeWebhook
	assert.ErrorContains(t, Normalize(&cfg), "webhook.url")

	cfg = base()
	cfg.RateLimit.ExcludeUpdates = []string{"inline_query"}
	assert.ErrorContains(t, Normalize(&cfg), "exclude_updates")

	cfg = base()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback "}
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
}
