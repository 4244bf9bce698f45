package gateway

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/parley/pkg/logging"
	"github.com/harunnryd/parley/pkg/redact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearBareEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HOST", "PORT", "LOG_LEVEL", "LLM_API_KEY", "LLM_API_URL"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfigDefaults(t *testing.T) {
	clearBareEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "/ws/chat", cfg.Server.WebsocketPath)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5, cfg.Session.ContextWindow)
	assert.Equal(t, 30*time.Second, cfg.Session.HeartbeatInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Session.CoalesceWindow)
	assert.Equal(t, 4096, cfg.Session.AudioChunkSize)
	assert.Equal(t, 4<<20, cfg.Session.MaxAudioBytes)
	assert.Equal(t, "mock", cfg.Vendors.STT.Provider)
	assert.Equal(t, "parley", cfg.Metrics.Namespace)
	assert.True(t, cfg.Privacy.RedactPII)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfigFileDotEnvAndExpansion(t *testing.T) {
	clearBareEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "PARLEY_TEST_VOICE=voice-from-dotenv\n")
	t.Cleanup(func() { _ = os.Unsetenv("PARLEY_TEST_VOICE") })

	path := filepath.Join(root, "config", "parley.yaml")
	writeFile(t, path, `
log_level: warn
server:
  addr: "127.0.0.1:9001"
  allowed_origins: ["https://app.example"]
session:
  context_window: 3
  coalesce_window: 150ms
vendors:
  stt:
    provider: mock
    settings:
      text: hi
  tts:
    provider: elevenlabs
    settings:
      api_key: k
      voice_id: ${PARLEY_TEST_VOICE}
      voices:
        zh: zh-voice
  llm:
    provider: mock
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9001", cfg.Server.Addr)
	assert.Equal(t, []string{"https://app.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 3, cfg.Session.ContextWindow)
	assert.Equal(t, 150*time.Millisecond, cfg.Session.CoalesceWindow)
	assert.Equal(t, "voice-from-dotenv", cfg.Vendors.TTS.Settings["voice_id"])
	assert.Equal(t, "hi", cfg.Vendors.STT.Settings["text"])
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearBareEnv(t)
	t.Setenv("PARLEY_SESSION_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("PARLEY_METRICS_ENABLED", "false")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LLM_API_KEY", "sk-env")
	t.Setenv("LLM_API_URL", "http://llm.local/v1")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Session.HeartbeatInterval)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9100", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sk-env", cfg.Vendors.LLM.Settings["api_key"])
	assert.Equal(t, "http://llm.local/v1", cfg.Vendors.LLM.Settings["base_url"])
}

func TestPrefixedAddrBeatsBareHostPort(t *testing.T) {
	clearBareEnv(t)
	t.Setenv("PARLEY_SERVER_ADDR", ":7000")
	t.Setenv("PORT", "9100")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoadConfigValidation(t *testing.T) {
	clearBareEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, `
server:
  ws_path: chat
metrics:
  sample_rate: 2
vendors:
  llm:
    provider: ""
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendors.llm.provider is required")
	assert.Contains(t, err.Error(), "server.ws_path")
	assert.Contains(t, err.Error(), "metrics.sample_rate")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestApplyReloadable(t *testing.T) {
	prevRedact := redact.Enabled()
	prevLevel := logging.Level()
	t.Cleanup(func() {
		redact.SetEnabled(prevRedact)
		logging.SetLevel(prevLevel.String())
	})

	ApplyReloadable(Config{LogLevel: "error", Privacy: PrivacyConfig{RedactPII: false}})
	assert.Equal(t, slog.LevelError, logging.Level())
	assert.False(t, redact.Enabled())
}

func TestWatchConfigReloads(t *testing.T) {
	clearBareEnv(t)
	path := filepath.Join(t.TempDir(), "parley.yaml")
	writeFile(t, path, "log_level: info\n")

	reloaded := make(chan Config, 4)
	require.NoError(t, WatchConfig(path, func(cfg Config) { reloaded <- cfg }))

	writeFile(t, path, "log_level: debug\nprivacy:\n  redact_pii: false\n")
	select {
	case cfg := <-reloaded:
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.False(t, cfg.Privacy.RedactPII)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}
