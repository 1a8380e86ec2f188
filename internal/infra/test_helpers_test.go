package infra

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) StartTime(pid int) (time.Time, error) {
	return time.Time{}, nil
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// runSettingsStoreContract exercises the domain.SettingsStore contract shared
// by every backend.
func runSettingsStoreContract(t *testing.T, newStore func(t *testing.T) domain.SettingsStore) {
	ctx := context.Background()

	t.Run("empty store loads defaults", func(t *testing.T) {
		store := newStore(t)

		s, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultSettings(), s)

		rev, err := store.Revision(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), rev)
	})

	t.Run("update is partial and bumps revision", func(t *testing.T) {
		store := newStore(t)

		list := domain.BlockList{"/r/golang", "/r/rust"}
		require.NoError(t, store.Update(ctx, domain.SettingsPatch{BlockList: &list}))

		enabled := false
		theme := domain.ThemeLight
		require.NoError(t, store.Update(ctx, domain.SettingsPatch{Enabled: &enabled, Theme: &theme}))

		s, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, list, s.BlockList)
		assert.False(t, s.Enabled)
		assert.Equal(t, domain.ThemeLight, s.Theme)
		assert.Zero(t, s.DailyLockUntil)

		rev, err := store.Revision(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), rev)
	})

	t.Run("empty patch is a no-op", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Update(ctx, domain.SettingsPatch{}))

		rev, err := store.Revision(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), rev)
	})

	t.Run("invalid theme is rejected", func(t *testing.T) {
		store := newStore(t)

		theme := domain.Theme("neon")
		err := store.Update(ctx, domain.SettingsPatch{Theme: &theme})
		assert.ErrorIs(t, err, domain.ErrInvalidTheme)
	})

	t.Run("lock timestamp round trips", func(t *testing.T) {
		store := newStore(t)

		until := time.Date(2026, 10, 17, 23, 59, 59, 999e6, time.UTC).UnixMilli()
		require.NoError(t, store.Update(ctx, domain.SettingsPatch{DailyLockUntil: &until}))

		s, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, until, s.DailyLockUntil)
	})

	t.Run("EnsureDefaults only writes missing keys", func(t *testing.T) {
		store := newStore(t)

		enabled := false
		require.NoError(t, store.Update(ctx, domain.SettingsPatch{Enabled: &enabled}))

		written, err := store.EnsureDefaults(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{domain.KeyBlockedSubreddits, domain.KeyTheme}, written)

		s, err := store.Load(ctx)
		require.NoError(t, err)
		assert.False(t, s.Enabled, "existing value must survive install defaults")

		written, err = store.EnsureDefaults(ctx)
		require.NoError(t, err)
		assert.Empty(t, written)

		rev, err := store.Revision(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), rev)
	})
}
