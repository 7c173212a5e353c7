package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no kbsync.yaml in sight
	t.Setenv("KBSYNC_OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "https://support.helpcove.com/api/v2/help_center/", cfg.HelpCenter.BaseURL)
	require.Equal(t, "en-us", cfg.HelpCenter.Locale)
	require.Equal(t, 100, cfg.HelpCenter.PageSize)
	require.Equal(t, 30*time.Second, cfg.HelpCenter.Timeout.Std())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	require.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	require.Equal(t, 2*time.Hour, cfg.Sync.Interval.Std())
	require.Equal(t, 5*time.Second, cfg.Sync.RetryDelay.Std())
	require.Equal(t, 16, cfg.Sync.HarvestParallelism)
	require.Equal(t, 20, cfg.Sync.UploadParallelism)
	require.False(t, cfg.Sync.PurgeDeleted)
	require.Equal(t, "127.0.0.1:8777", cfg.Ops.ListenAddr)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kbsync.yaml")
	body := `
helpcenter:
  base_url: https://kb.example.test/api/v2/help_center/
  locale: de
  timeout: 10s
  page_size: 25
redis:
  addr: redis.internal:6380
  db: 3
openai:
  api_key: sk-from-file
  assistant_name: Test Assistant
sync:
  interval: 15m
  retry_delay: 1s
  harvest_parallelism: 4
  upload_parallelism: 2
  output_dir: /var/tmp/kbsync
  purge_deleted: true
ops:
  listen_addr: ""
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://kb.example.test/api/v2/help_center/", cfg.HelpCenter.BaseURL)
	require.Equal(t, "de", cfg.HelpCenter.Locale)
	require.Equal(t, 10*time.Second, cfg.HelpCenter.Timeout.Std())
	require.Equal(t, 25, cfg.HelpCenter.PageSize)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.Equal(t, 3, cfg.Redis.DB)
	require.Equal(t, "sk-from-file", cfg.OpenAI.APIKey)
	require.Equal(t, "Test Assistant", cfg.OpenAI.AssistantName)
	require.Equal(t, 15*time.Minute, cfg.Sync.Interval.Std())
	require.True(t, cfg.Sync.PurgeDeleted)
	require.Empty(t, cfg.Ops.ListenAddr)

	// Untouched keys keep their defaults.
	require.Equal(t, "gpt-4o", cfg.OpenAI.Model)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kbsync.yaml")
	body := `
openai:
  api_key: sk-from-file
redis:
  password: file-secret
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("KBSYNC_OPENAI_API_KEY", "sk-from-env")
	t.Setenv("KBSYNC_REDIS_PASSWORD", "env-secret")
	t.Setenv("KBSYNC_OUTPUT_DIR", "/mnt/scratch")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
	require.Equal(t, "env-secret", cfg.Redis.Password)
	require.Equal(t, "/mnt/scratch", cfg.Sync.OutputDir)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidation(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("KBSYNC_OPENAI_API_KEY", "")
		_, err := Load("")
		require.ErrorContains(t, err, "openai.api_key")
	})

	t.Run("page size out of range", func(t *testing.T) {
		t.Setenv("KBSYNC_OPENAI_API_KEY", "sk-test")
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("helpcenter:\n  page_size: 500\n"), 0o644))
		_, err := Load(path)
		require.ErrorContains(t, err, "page_size")
	})

	t.Run("bad base url scheme", func(t *testing.T) {
		t.Setenv("KBSYNC_OPENAI_API_KEY", "sk-test")
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("helpcenter:\n  base_url: ftp://kb.example.test/\n"), 0o644))
		_, err := Load(path)
		require.ErrorContains(t, err, "unsupported scheme")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("KBSYNC_OPENAI_API_KEY", "sk-test")
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sync:\n  interval: soon\n"), 0o644))
		_, err := Load(path)
		require.ErrorContains(t, err, "invalid duration")
	})

	t.Run("redis addr without port", func(t *testing.T) {
		t.Setenv("KBSYNC_OPENAI_API_KEY", "sk-test")
		t.Setenv("KBSYNC_REDIS_ADDR", "redis.internal")
		_, err := Load("")
		require.ErrorContains(t, err, "redis.addr")
	})

	t.Run("listen addr port out of range", func(t *testing.T) {
		t.Setenv("KBSYNC_OPENAI_API_KEY", "sk-test")
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ops:\n  listen_addr: 127.0.0.1:99999\n"), 0o644))
		_, err := Load(path)
		require.ErrorContains(t, err, "ops.listen_addr")
	})
}
