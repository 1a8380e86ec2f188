package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/sub_mon/internal/config"
	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

func TestFileSettingsStore_Contract(t *testing.T) {
	runSettingsStoreContract(t, func(t *testing.T) domain.SettingsStore {
		store, err := NewFileSettingsStore(t.TempDir())
		require.NoError(t, err)
		return store
	})
}

func TestFileSettingsStore_FilePermissions(t *testing.T) {
	store, err := NewFileSettingsStore(t.TempDir())
	require.NoError(t, err)

	enabled := true
	require.NoError(t, store.Update(context.Background(), domain.SettingsPatch{Enabled: &enabled}))

	info, err := os.Stat(store.GetStorePath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// No temp files left behind after the atomic rename.
	matches, err := filepath.Glob(store.GetStorePath() + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileSettingsStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store := NewFileSettingsStoreWithPath(path)
	_, err := store.Load(context.Background())
	assert.Error(t, err)
}

func TestFileSettingsStore_ReadsExtensionRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	record := `{"revision": 7, "values": {
		"blockedSubreddits": ["/r/wallstreetbets", "/r/politics"],
		"extensionEnabled": false,
		"theme": "light",
		"dailyLockUntil": 1760745599999
	}}`
	require.NoError(t, os.WriteFile(path, []byte(record), 0600))

	store := NewFileSettingsStoreWithPath(path)
	s, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.BlockList{"/r/wallstreetbets", "/r/politics"}, s.BlockList)
	assert.False(t, s.Enabled)
	assert.Equal(t, domain.ThemeLight, s.Theme)
	assert.Equal(t, int64(1760745599999), s.DailyLockUntil)

	rev, err := store.Revision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), rev)
}

func TestOpenSettingsStore_FileBackend(t *testing.T) {
	store, err := OpenSettingsStore(config.StoreFile, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileSettingsStore{}, store)

	_, err = OpenSettingsStore("redis", t.TempDir())
	assert.Error(t, err)
}
