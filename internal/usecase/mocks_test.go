package usecase

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// mockSettingsStore implements domain.SettingsStore in memory.
type mockSettingsStore struct {
	mu        sync.Mutex
	settings  domain.Settings
	stored    map[string]bool
	revision  int64
	loadErr   error
	updateErr error
	updates   int
}

func newMockSettingsStore(s domain.Settings) *mockSettingsStore {
	return &mockSettingsStore{settings: s, stored: make(map[string]bool)}
}

func (m *mockSettingsStore) Load(ctx context.Context) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domain.Settings{}, m.loadErr
	}
	return m.settings, nil
}

func (m *mockSettingsStore) Update(ctx context.Context, patch domain.SettingsPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings = patch.Apply(m.settings)
	m.updates++
	m.revision++
	return nil
}

func (m *mockSettingsStore) EnsureDefaults(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var written []string
	for _, key := range []string{domain.KeyBlockedSubreddits, domain.KeyExtensionEnabled, domain.KeyTheme} {
		if !m.stored[key] {
			m.stored[key] = true
			written = append(written, key)
		}
	}
	if len(written) > 0 {
		m.revision++
	}
	return written, nil
}

func (m *mockSettingsStore) Revision(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revision, nil
}

func (m *mockSettingsStore) Close() error { return nil }

// mockTabHost implements domain.TabHost for testing
type mockTabHost struct {
	mu          sync.Mutex
	tabs        []domain.Tab
	queryErr    error
	redirectErr map[int]error
	redirected  map[int]string
	patterns    []string
}

func newMockTabHost(tabs ...domain.Tab) *mockTabHost {
	return &mockTabHost{
		tabs:        tabs,
		redirectErr: make(map[int]error),
		redirected:  make(map[int]string),
	}
}

func (m *mockTabHost) Query(ctx context.Context, patterns []string) ([]domain.Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = patterns
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return append([]domain.Tab(nil), m.tabs...), nil
}

func (m *mockTabHost) Redirect(ctx context.Context, tabID int, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.redirectErr[tabID]; err != nil {
		return err
	}
	m.redirected[tabID] = target
	return nil
}

var (
	_ domain.SettingsStore = (*mockSettingsStore)(nil)
	_ domain.TabHost       = (*mockTabHost)(nil)
)
