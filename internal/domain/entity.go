// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Storage keys of the persisted settings record.
// Kept wire-compatible with the browser extension's storage.local record.
const (
	KeyBlockedSubreddits = "blockedSubreddits"
	KeyExtensionEnabled  = "extensionEnabled"
	KeyTheme             = "theme"
	KeyDailyLockUntil    = "dailyLockUntil"
)

// SettingsKeys lists every persisted key in display order.
var SettingsKeys = []string{
	KeyBlockedSubreddits,
	KeyExtensionEnabled,
	KeyTheme,
	KeyDailyLockUntil,
}

// RedditHostPatterns are the match patterns used to find open reddit tabs.
var RedditHostPatterns = []string{
	"*://*.reddit.com/*",
	"*://reddit.com/*",
	"*://old.reddit.com/*",
}

// IdentifierPrefix is the prefix of every canonical subreddit identifier.
const IdentifierPrefix = "/r/"

// Theme selects the color scheme of the blocked page.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// DefaultTheme is used when no theme was stored or the stored value is unknown.
const DefaultTheme = ThemeDark

// ErrInvalidTheme is returned by ParseTheme for anything but dark/light.
var ErrInvalidTheme = errors.New("invalid theme")

// ParseTheme parses a user supplied theme name (case-insensitive).
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeDark:
		return ThemeDark, nil
	case ThemeLight:
		return ThemeLight, nil
	default:
		return "", fmt.Errorf("%w: %q (want dark or light)", ErrInvalidTheme, s)
	}
}

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeDark || t == ThemeLight
}

// BlockList is an ordered set of canonical subreddit identifiers ("/r/<name>").
// Order is for display only; matching is order-independent.
type BlockList []string

// Contains reports whether id is in the list.
func (b BlockList) Contains(id string) bool {
	for _, s := range b {
		if s == id {
			return true
		}
	}
	return false
}

// Settings is an immutable snapshot of the persisted settings record.
// Handlers fetch a fresh snapshot per evaluation instead of sharing a cache.
type Settings struct {
	BlockList      BlockList
	Enabled        bool
	Theme          Theme
	DailyLockUntil int64 // epoch millis, 0 = no lock
}

// DefaultSettings returns the settings written on first install.
func DefaultSettings() Settings {
	return Settings{
		BlockList: BlockList{},
		Enabled:   true,
		Theme:     DefaultTheme,
	}
}

// LockActive reports whether the daily lock is still in force at now.
func (s Settings) LockActive(now time.Time) bool {
	return s.DailyLockUntil > 0 && now.UnixMilli() < s.DailyLockUntil
}

// EffectiveEnabled combines the user toggle with the daily lock.
// An active lock forces enforcement on even if the user disabled blocking.
func (s Settings) EffectiveEnabled(now time.Time) bool {
	return s.Enabled || s.LockActive(now)
}

// LockUntil returns the lock expiry, or the zero time when no lock was set.
func (s Settings) LockUntil() time.Time {
	if s.DailyLockUntil <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.DailyLockUntil)
}

// SettingsPatch is a partial update. Nil fields are left untouched.
type SettingsPatch struct {
	BlockList      *BlockList
	Enabled        *bool
	Theme          *Theme
	DailyLockUntil *int64
}

// IsEmpty reports whether the patch changes nothing.
func (p SettingsPatch) IsEmpty() bool {
	return p.BlockList == nil && p.Enabled == nil && p.Theme == nil && p.DailyLockUntil == nil
}

// Apply returns s with the patch applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.BlockList != nil {
		s.BlockList = append(BlockList{}, (*p.BlockList)...)
	}
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.DailyLockUntil != nil {
		s.DailyLockUntil = *p.DailyLockUntil
	}
	return s
}

// NavigationEvent is reported by the host platform when a tab commits a URL.
type NavigationEvent struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
}

// Tab is an open browser tab as known to the host platform.
type Tab struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// RedirectCommand instructs the host platform to replace a tab's URL.
type RedirectCommand struct {
	TabID    int       `json:"tabId"`
	URL      string    `json:"url"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Action is the outcome of a block decision.
type Action string

const (
	ActionAllow Action = "allow"
	ActionBlock Action = "block"
)

// Reasons attached to a Decision.
const (
	ReasonDisabled    = "disabled"
	ReasonInvalidURL  = "invalid-url"
	ReasonNotReddit   = "not-reddit"
	ReasonNoSubreddit = "no-subreddit"
	ReasonNotListed   = "not-listed"
	ReasonBlocked     = "blocked"
)

// Decision is the result of evaluating one URL against a settings snapshot.
type Decision struct {
	Action    Action `json:"action"`
	Subreddit string `json:"subreddit,omitempty"`
	Reason    string `json:"reason"`
}

// Blocked reports whether the decision is to redirect.
func (d Decision) Blocked() bool {
	return d.Action == ActionBlock
}

// Trigger identifies what caused an enforcement pass.
type Trigger string

const (
	TriggerNavigation     Trigger = "navigation"
	TriggerSettingsChange Trigger = "settings-change"
	TriggerPeriodic       Trigger = "periodic"
	TriggerStartup        Trigger = "startup"
)

// EnforcementResult captures what happened during a single enforcement pass.
type EnforcementResult struct {
	Trigger     Trigger
	TabsScanned int
	Redirected  []int // tab IDs
	Errors      []error
	ExecutedAt  time.Time
	DurationMs  int64
}

// Daemon describes the running submon daemon.
type Daemon struct {
	PID        int
	Address    string
	StartedAt  time.Time
	AppVersion string
}

// RegistryEntry is the persisted daemon discovery record.
type RegistryEntry struct {
	Version       int    `json:"version"`
	PID           int    `json:"pid"`
	Address       string `json:"address"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	Mode          string `json:"mode,omitempty"` // "user" or "system"
	AppVersion    string `json:"app_version,omitempty"`
}
