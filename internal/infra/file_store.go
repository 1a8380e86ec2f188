package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

const settingsFileName = "settings.json"

// settingsFile is the on-disk layout of FileSettingsStore.
type settingsFile struct {
	Revision int64                      `json:"revision"`
	Values   map[string]json.RawMessage `json:"values"`
}

// FileSettingsStore implements domain.SettingsStore using a plain JSON file.
// Writes take an exclusive flock and replace the file atomically.
type FileSettingsStore struct {
	path string
}

// NewFileSettingsStore creates a store in dataDir.
func NewFileSettingsStore(dataDir string) (*FileSettingsStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileSettingsStore{path: filepath.Join(dataDir, settingsFileName)}, nil
}

// NewFileSettingsStoreWithPath creates a store at a specific path (for testing).
func NewFileSettingsStoreWithPath(path string) *FileSettingsStore {
	return &FileSettingsStore{path: path}
}

// GetStorePath returns the settings file path.
func (s *FileSettingsStore) GetStorePath() string {
	return s.path
}

// Load returns a settings snapshot.
func (s *FileSettingsStore) Load(ctx context.Context) (domain.Settings, error) {
	f, err := s.read()
	if err != nil {
		return domain.Settings{}, err
	}
	return decodeSettings(rawValues(f)), nil
}

// Update applies a partial update and bumps the revision.
func (s *FileSettingsStore) Update(ctx context.Context, patch domain.SettingsPatch) error {
	values, err := encodePatch(patch)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	return s.withLock(func() error {
		f, err := s.read()
		if err != nil {
			return err
		}
		for k, v := range values {
			f.Values[k] = v
		}
		f.Revision++
		return s.atomicWrite(f)
	})
}

// EnsureDefaults writes defaults for keys that were never stored.
func (s *FileSettingsStore) EnsureDefaults(ctx context.Context) ([]string, error) {
	var written []string
	err := s.withLock(func() error {
		f, err := s.read()
		if err != nil {
			return err
		}
		defaults := defaultValues()
		for _, k := range domain.SettingsKeys {
			if k == domain.KeyDailyLockUntil {
				continue
			}
			if _, ok := f.Values[k]; !ok {
				f.Values[k] = defaults[k]
				written = append(written, k)
			}
		}
		if len(written) == 0 {
			return nil
		}
		f.Revision++
		return s.atomicWrite(f)
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

// Revision returns the write counter.
func (s *FileSettingsStore) Revision(ctx context.Context) (int64, error) {
	f, err := s.read()
	if err != nil {
		return 0, err
	}
	return f.Revision, nil
}

// Close is a no-op; the file is only open during reads and writes.
func (s *FileSettingsStore) Close() error {
	return nil
}

func (s *FileSettingsStore) read() (*settingsFile, error) {
	f := &settingsFile{Values: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if f.Values == nil {
		f.Values = make(map[string]json.RawMessage)
	}
	return f, nil
}

// withLock serializes read-modify-write cycles across processes.
func (s *FileSettingsStore) withLock(fn func() error) error {
	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	return fn()
}

// atomicWrite writes the file atomically (write + rename).
func (s *FileSettingsStore) atomicWrite(f *settingsFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func rawValues(f *settingsFile) map[string][]byte {
	values := make(map[string][]byte, len(f.Values))
	for k, v := range f.Values {
		values[k] = v
	}
	return values
}

// Ensure FileSettingsStore implements domain.SettingsStore.
var _ domain.SettingsStore = (*FileSettingsStore)(nil)
