package daemon

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// mockEnforcer records rescan triggers.
type mockEnforcer struct {
	mu       sync.Mutex
	triggers []domain.Trigger
	err      error
}

func (m *mockEnforcer) HandleNavigation(ctx context.Context, ev domain.NavigationEvent) (domain.Decision, error) {
	return domain.Decision{Action: domain.ActionAllow}, nil
}

func (m *mockEnforcer) Rescan(ctx context.Context, trigger domain.Trigger) (*domain.EnforcementResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, trigger)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.EnforcementResult{Trigger: trigger}, nil
}

func (m *mockEnforcer) count(trigger domain.Trigger) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.triggers {
		if t == trigger {
			n++
		}
	}
	return n
}

// mockStore only serves revisions.
type mockStore struct {
	mu       sync.Mutex
	revision int64
}

func (m *mockStore) Load(ctx context.Context) (domain.Settings, error) {
	return domain.DefaultSettings(), nil
}

func (m *mockStore) Update(ctx context.Context, patch domain.SettingsPatch) error { return nil }

func (m *mockStore) EnsureDefaults(ctx context.Context) ([]string, error) { return nil, nil }

func (m *mockStore) Revision(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revision, nil
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) bump() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revision++
}

// mockRegistry implements domain.DaemonRegistry in memory.
type mockRegistry struct {
	mu         sync.Mutex
	daemon     *domain.Daemon
	heartbeats int
	cleared    bool
}

func (m *mockRegistry) Register(d domain.Daemon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daemon = &d
	return nil
}

func (m *mockRegistry) UpdateHeartbeat() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeats++
	return nil
}

func (m *mockRegistry) IsAlive() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.daemon != nil && !m.cleared, nil
}

func (m *mockRegistry) GetAll() (*domain.RegistryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.daemon == nil {
		return nil, nil
	}
	return &domain.RegistryEntry{PID: m.daemon.PID, Address: m.daemon.Address}, nil
}

func (m *mockRegistry) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = true
	return nil
}

func (m *mockRegistry) GetRegistryPath() string { return "" }

// fakeServer blocks in Serve until Shutdown.
type fakeServer struct {
	stop     chan struct{}
	once     sync.Once
	serveErr error
}

func newFakeServer() *fakeServer {
	return &fakeServer{stop: make(chan struct{})}
}

func (f *fakeServer) Serve(ln net.Listener) error {
	if f.serveErr != nil {
		return f.serveErr
	}
	<-f.stop
	return nil
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.once.Do(func() { close(f.stop) })
	return nil
}

type installerFunc func(ctx context.Context) error

func (f installerFunc) Install(ctx context.Context) error { return f(ctx) }

type watcherFixture struct {
	enforcer *mockEnforcer
	store    *mockStore
	registry *mockRegistry
	server   *fakeServer
	notifier *ChangeNotifier
	watcher  *Watcher
	ln       net.Listener
}

func newWatcherFixture(t *testing.T, installErr error) *watcherFixture {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	f := &watcherFixture{
		enforcer: &mockEnforcer{},
		store:    &mockStore{},
		registry: &mockRegistry{},
		server:   newFakeServer(),
		notifier: NewChangeNotifier(),
		ln:       ln,
	}
	config := WatcherConfig{
		RescanInterval:    time.Hour,
		PollInterval:      10 * time.Millisecond,
		HeartbeatInterval: 10 * time.Millisecond,
		ShutdownTimeout:   time.Second,
	}
	f.watcher = NewWatcher(config, f.enforcer,
		installerFunc(func(context.Context) error { return installErr }),
		f.store, f.registry, f.server, f.notifier.C(),
		domain.Daemon{PID: 42, AppVersion: "test"}, zap.NewNop())
	return f
}

func (f *watcherFixture) run(ctx context.Context) chan error {
	done := make(chan error, 1)
	go func() { done <- f.watcher.Run(ctx, f.ln) }()
	return done
}

// TestDefaultWatcherConfig verifies default watcher configuration
func TestDefaultWatcherConfig(t *testing.T) {
	config := DefaultWatcherConfig()

	assert.Equal(t, time.Minute, config.RescanInterval)
	assert.Equal(t, 2*time.Second, config.PollInterval)
	assert.Equal(t, 30*time.Second, config.HeartbeatInterval)
	assert.NotZero(t, config.ShutdownTimeout)
}

func TestWatcher_RegistersAndRescansOnStartup(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := f.run(ctx)

	require.Eventually(t, func() bool {
		return f.enforcer.count(domain.TriggerStartup) == 1
	}, time.Second, 5*time.Millisecond)

	entry, err := f.registry.GetAll()
	require.NoError(t, err)
	assert.Equal(t, 42, entry.PID)
	assert.Equal(t, f.ln.Addr().String(), entry.Address)

	require.Eventually(t, func() bool {
		f.registry.mu.Lock()
		defer f.registry.mu.Unlock()
		return f.registry.heartbeats > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, f.registry.cleared, "registry is cleared on exit")
}

func TestWatcher_RescansOnChangeNotification(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.run(ctx)

	f.notifier.Notify()

	require.Eventually(t, func() bool {
		return f.enforcer.count(domain.TriggerSettingsChange) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWatcher_RescansOnOutsideWrite(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.run(ctx)

	require.Eventually(t, func() bool {
		return f.enforcer.count(domain.TriggerStartup) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, f.enforcer.count(domain.TriggerSettingsChange))

	f.store.bump()

	require.Eventually(t, func() bool {
		return f.enforcer.count(domain.TriggerSettingsChange) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWatcher_InstallFailure(t *testing.T) {
	f := newWatcherFixture(t, errors.New("disk full"))

	err := f.watcher.Run(context.Background(), f.ln)

	assert.Error(t, err)
	assert.Zero(t, f.enforcer.count(domain.TriggerStartup))
	assert.True(t, f.registry.cleared)
}

func TestWatcher_ServerFailure(t *testing.T) {
	f := newWatcherFixture(t, nil)
	f.server.serveErr = errors.New("address in use")

	err := f.watcher.Run(context.Background(), f.ln)

	assert.EqualError(t, err, "address in use")
}

func TestChangeNotifier_Coalesces(t *testing.T) {
	n := NewChangeNotifier()
	n.Notify()
	n.Notify()
	n.Notify()

	<-n.C()
	select {
	case <-n.C():
		t.Fatal("expected a single pending signal")
	default:
	}
}
