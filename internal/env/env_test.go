package env

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_PORT", "DATA_DIR", "STATE_BACKEND", "CATALOG_PATH", "HEARTBEAT_INTERVAL",
		"SUBSCRIBER_BUFFER", "DEBUG_MODE", "SHUTDOWN_TIMEOUT", "NATS_URL", "NATS_STREAM",
		"NATS_SUBJECT_PREFIX",
	} {
		t.Setenv(key, "")
	}
	// godotenv がカレントの .env を読まないように空ディレクトリへ移動
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5174, cfg.ServerPort)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, BackendFile, cfg.StateBackend)
	assert.Equal(t, 20*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 16, cfg.SubscriberBuffer)
	assert.False(t, cfg.DebugMode)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, "roulette.session", cfg.NATSSubjectPrefix)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("STATE_BACKEND", "SQLite")
	t.Setenv("HEARTBEAT_INTERVAL", "5")
	t.Setenv("SHUTDOWN_TIMEOUT", "1500ms")
	t.Setenv("DEBUG_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, BackendSQLite, cfg.StateBackend)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.ShutdownTimeout)
	assert.True(t, cfg.DebugMode)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port not a number", key: "SERVER_PORT", value: "abc"},
		{name: "port out of range", key: "SERVER_PORT", value: "70000"},
		{name: "unknown backend", key: "STATE_BACKEND", value: "redis"},
		{name: "bad duration", key: "HEARTBEAT_INTERVAL", value: "soon"},
		{name: "zero buffer", key: "SUBSCRIBER_BUFFER", value: "0"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
