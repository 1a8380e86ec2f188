package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
	"github.com/eliteGoblin/focusd/sub_mon/internal/policy"
)

var (
	// ErrLocked is returned when changing the block list or the enable
	// toggle while the daily lock is active.
	ErrLocked = errors.New("settings are locked until the end of the day")

	// ErrNoIdentifiers is returned when add/remove input yields no identifier.
	ErrNoIdentifiers = errors.New("no subreddit identifiers in input")
)

// ChangeHook is called after every successful settings write.
type ChangeHook func()

// SettingsService is the settings editor: it validates user edits and writes
// them to the store.
type SettingsService struct {
	store    domain.SettingsStore
	onChange ChangeHook
	now      func() time.Time
	logger   *zap.Logger
}

// NewSettingsService creates a settings service. onChange may be nil.
func NewSettingsService(store domain.SettingsStore, onChange ChangeHook, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		store:    store,
		onChange: onChange,
		now:      time.Now,
		logger:   logger,
	}
}

// Install writes defaults for keys that were never stored.
func (s *SettingsService) Install(ctx context.Context) error {
	written, err := s.store.EnsureDefaults(ctx)
	if err != nil {
		return fmt.Errorf("failed to write default settings: %w", err)
	}
	if len(written) > 0 {
		s.logger.Info("wrote default settings", zap.Strings("keys", written))
		s.changed()
	}
	return nil
}

// Snapshot returns the current settings.
func (s *SettingsService) Snapshot(ctx context.Context) (domain.Settings, error) {
	return s.store.Load(ctx)
}

// Save stores the editor contents and the toggle in one write.
func (s *SettingsService) Save(ctx context.Context, text string, enabled bool) (domain.Settings, error) {
	list := policy.ParseBlockList(text)
	return s.update(ctx, true, domain.SettingsPatch{BlockList: &list, Enabled: &enabled})
}

// SetBlockList replaces the block list with the parsed editor text.
func (s *SettingsService) SetBlockList(ctx context.Context, text string) (domain.Settings, error) {
	list := policy.ParseBlockList(text)
	return s.update(ctx, true, domain.SettingsPatch{BlockList: &list})
}

// AddSubreddits appends entries to the block list.
func (s *SettingsService) AddSubreddits(ctx context.Context, entries ...string) (domain.Settings, error) {
	if !hasIdentifier(entries) {
		return domain.Settings{}, ErrNoIdentifiers
	}
	current, err := s.writable(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	list := policy.MergeBlockList(current.BlockList, entries...)
	return s.update(ctx, false, domain.SettingsPatch{BlockList: &list})
}

// RemoveSubreddits drops entries from the block list.
func (s *SettingsService) RemoveSubreddits(ctx context.Context, entries ...string) (domain.Settings, error) {
	if !hasIdentifier(entries) {
		return domain.Settings{}, ErrNoIdentifiers
	}
	current, err := s.writable(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	list := policy.RemoveFromBlockList(current.BlockList, entries...)
	return s.update(ctx, false, domain.SettingsPatch{BlockList: &list})
}

// SetEnabled flips the enable toggle.
func (s *SettingsService) SetEnabled(ctx context.Context, enabled bool) (domain.Settings, error) {
	return s.update(ctx, true, domain.SettingsPatch{Enabled: &enabled})
}

// SetTheme changes the blocked page theme. Allowed while locked.
func (s *SettingsService) SetTheme(ctx context.Context, theme domain.Theme) (domain.Settings, error) {
	if !theme.Valid() {
		return domain.Settings{}, fmt.Errorf("%w: %q", domain.ErrInvalidTheme, theme)
	}
	return s.update(ctx, false, domain.SettingsPatch{Theme: &theme})
}

// LockForToday forces enforcement on until the end of now's local day.
// Re-locking while locked is allowed and never shortens the lock.
func (s *SettingsService) LockForToday(ctx context.Context) (domain.Settings, error) {
	now := s.now()
	until := EndOfDay(now).UnixMilli()

	current, err := s.store.Load(ctx)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if current.DailyLockUntil > until {
		until = current.DailyLockUntil
	}

	settings, err := s.update(ctx, false, domain.SettingsPatch{DailyLockUntil: &until})
	if err != nil {
		return domain.Settings{}, err
	}
	s.logger.Info("locked settings", zap.Time("until", settings.LockUntil()))
	return settings, nil
}

// EndOfDay returns 23:59:59.999 of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// writable loads the settings and fails with ErrLocked if the lock is active.
func (s *SettingsService) writable(ctx context.Context) (domain.Settings, error) {
	current, err := s.store.Load(ctx)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if current.LockActive(s.now()) {
		return current, ErrLocked
	}
	return current, nil
}

func (s *SettingsService) update(ctx context.Context, checkLock bool, patch domain.SettingsPatch) (domain.Settings, error) {
	if checkLock {
		if _, err := s.writable(ctx); err != nil {
			return domain.Settings{}, err
		}
	}

	if err := s.store.Update(ctx, patch); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	s.changed()

	return s.store.Load(ctx)
}

func (s *SettingsService) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func hasIdentifier(entries []string) bool {
	for _, e := range entries {
		if _, ok := policy.Normalize(e); ok {
			return true
		}
	}
	return false
}
