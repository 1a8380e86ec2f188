package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultFor(t *testing.T) {
	cfg := DefaultFor(ExecModeSystem)

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, "/var/lib/submon", cfg.DataDir)
	assert.Equal(t, StoreEncrypted, cfg.Store)
	assert.Equal(t, "/var/lib/submon/submon.log", cfg.Log.File)
	assert.NoError(t, cfg.Validate())

	user := DefaultFor(ExecModeUser)
	assert.Equal(t, ".submon", filepath.Base(user.DataDir))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SUBMON_TEST_DIR", "/tmp/submon-test")

	path := writeConfig(t, `
listen: 127.0.0.1:9999
data_dir: ${SUBMON_TEST_DIR}
store: file
rescan_interval: 10s
poll_interval: 500ms
log:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Listen)
	assert.Equal(t, "/tmp/submon-test", cfg.DataDir)
	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, 10*time.Second, cfg.RescanInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 8, cfg.RescanConcurrency)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "bad yaml", content: "listen: [", wantErr: "failed to unmarshal"},
		{name: "bad listen", content: "listen: localhost", wantErr: "invalid listen address"},
		{name: "unknown store", content: "store: redis", wantErr: "unknown store"},
		{name: "zero interval", content: "poll_interval: 0s", wantErr: "poll_interval must be positive"},
		{name: "bad concurrency", content: "rescan_concurrency: 0", wantErr: "rescan_concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBlockedPageURL(t *testing.T) {
	tests := []struct {
		name  string
		bound string
		want  string
	}{
		{name: "loopback", bound: "127.0.0.1:7780", want: "http://127.0.0.1:7780/blocked"},
		{name: "empty host", bound: ":7780", want: "http://127.0.0.1:7780/blocked"},
		{name: "ipv4 wildcard", bound: "0.0.0.0:7780", want: "http://127.0.0.1:7780/blocked"},
		{name: "ipv6 wildcard", bound: "[::]:7780", want: "http://127.0.0.1:7780/blocked"},
		{name: "ephemeral port resolved by listener", bound: "127.0.0.1:43121", want: "http://127.0.0.1:43121/blocked"},
		{name: "ipv6 loopback", bound: "[::1]:7780", want: "http://[::1]:7780/blocked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultFor(ExecModeUser)
			assert.Equal(t, tt.want, cfg.BlockedPageURL(tt.bound))
		})
	}

	cfg := DefaultFor(ExecModeUser)
	cfg.RedirectURL = "chrome-extension://abc/blocked.html"
	assert.Equal(t, "chrome-extension://abc/blocked.html", cfg.BlockedPageURL("0.0.0.0:7780"))
}

func TestBaseURL(t *testing.T) {
	cfg := DefaultFor(ExecModeUser)
	assert.Equal(t, "http://127.0.0.1:7780", cfg.BaseURL())

	cfg.Listen = ":7780"
	assert.Equal(t, "http://127.0.0.1:7780", cfg.BaseURL())
}

func TestExecMode_String(t *testing.T) {
	assert.Equal(t, "system (root)", ExecModeSystem.String())
	assert.Equal(t, "user (non-root)", ExecModeUser.String())
	assert.Equal(t, "unknown", ExecMode("x").String())
}
