package infra

import (
	"encoding/json"
	"fmt"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
	"github.com/eliteGoblin/focusd/sub_mon/internal/policy"
)

// encodePatch turns a patch into storage key -> JSON value pairs.
func encodePatch(p domain.SettingsPatch) (map[string][]byte, error) {
	values := make(map[string][]byte, len(domain.SettingsKeys))
	put := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		values[key] = data
		return nil
	}

	if p.BlockList != nil {
		list := *p.BlockList
		if list == nil {
			list = domain.BlockList{}
		}
		if err := put(domain.KeyBlockedSubreddits, []string(list)); err != nil {
			return nil, err
		}
	}
	if p.Enabled != nil {
		if err := put(domain.KeyExtensionEnabled, *p.Enabled); err != nil {
			return nil, err
		}
	}
	if p.Theme != nil {
		if !p.Theme.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTheme, *p.Theme)
		}
		if err := put(domain.KeyTheme, string(*p.Theme)); err != nil {
			return nil, err
		}
	}
	if p.DailyLockUntil != nil {
		if err := put(domain.KeyDailyLockUntil, *p.DailyLockUntil); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// defaultValues returns the encoded defaults for every key.
func defaultValues() map[string][]byte {
	d := domain.DefaultSettings()
	values, _ := encodePatch(domain.SettingsPatch{
		BlockList:      &d.BlockList,
		Enabled:        &d.Enabled,
		Theme:          &d.Theme,
		DailyLockUntil: &d.DailyLockUntil,
	})
	return values
}

// decodeSettings builds a snapshot from stored values.
// Missing or wrong-typed values fall back to defaults; stored identifiers in
// the legacy "r/name" form are normalized.
func decodeSettings(values map[string][]byte) domain.Settings {
	s := domain.DefaultSettings()

	if raw, ok := values[domain.KeyBlockedSubreddits]; ok {
		var entries []string
		if err := json.Unmarshal(raw, &entries); err == nil {
			s.BlockList = policy.MergeBlockList(domain.BlockList{}, entries...)
		}
	}
	if raw, ok := values[domain.KeyExtensionEnabled]; ok {
		var enabled bool
		if err := json.Unmarshal(raw, &enabled); err == nil {
			s.Enabled = enabled
		}
	}
	if raw, ok := values[domain.KeyTheme]; ok {
		var theme string
		if err := json.Unmarshal(raw, &theme); err == nil && domain.Theme(theme).Valid() {
			s.Theme = domain.Theme(theme)
		}
	}
	if raw, ok := values[domain.KeyDailyLockUntil]; ok {
		var until float64
		if err := json.Unmarshal(raw, &until); err == nil && until > 0 {
			s.DailyLockUntil = int64(until)
		}
	}
	return s
}
