package domain

import (
	"context"
	"time"
)

// SettingsStore persists the settings record.
// Implementations: SQLCipher key/value table, or a plain JSON file.
type SettingsStore interface {
	// Load returns a snapshot. Missing or malformed values fall back to defaults.
	Load(ctx context.Context) (Settings, error)

	// Update applies a partial update (last write wins).
	Update(ctx context.Context, patch SettingsPatch) error

	// EnsureDefaults writes defaults for keys that were never stored.
	// Returns the keys it wrote.
	EnsureDefaults(ctx context.Context) ([]string, error)

	// Revision returns a counter bumped on every write, used by other
	// processes to notice changes.
	Revision(ctx context.Context) (int64, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// TabHost is the browser side of the system: it knows the open tabs and
// can replace a tab's URL.
type TabHost interface {
	// Query returns open tabs whose URL matches any of the match patterns.
	Query(ctx context.Context, patterns []string) ([]Tab, error)

	// Redirect replaces the tab's URL. Fire-and-forget; no retry.
	Redirect(ctx context.Context, tabID int, target string) error
}

// Enforcer evaluates navigations and open tabs and redirects blocked ones.
type Enforcer interface {
	// HandleNavigation evaluates a single committed navigation.
	HandleNavigation(ctx context.Context, ev NavigationEvent) (Decision, error)

	// Rescan re-evaluates all open reddit tabs.
	Rescan(ctx context.Context, trigger Trigger) (*EnforcementResult, error)
}

// ProcessManager handles OS process lookups.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// StartTime returns when the process was created.
	StartTime(pid int) (time.Time, error)

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// DaemonRegistry lets the CLI find the running daemon.
// Implementation: JSON file in the data directory.
type DaemonRegistry interface {
	// Register saves the daemon's PID and listen address.
	Register(daemon Daemon) error

	// UpdateHeartbeat updates timestamp for liveness check.
	UpdateHeartbeat() error

	// IsAlive checks if the registered daemon is running via PID.
	IsAlive() (bool, error)

	// GetAll returns the registry record, or nil if none.
	GetAll() (*RegistryEntry, error)

	// Clear removes the registry record.
	Clear() error

	// GetRegistryPath returns the registry file path (for tests).
	GetRegistryPath() string
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
