package infra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
	"github.com/eliteGoblin/focusd/sub_mon/internal/policy"
)

// ErrUnknownTab is returned when redirecting a tab the host never reported.
var ErrUnknownTab = errors.New("unknown tab")

// TabTracker implements domain.TabHost for a host platform that reports
// navigations over the API. Redirects are queued until the host drains them.
type TabTracker struct {
	mu      sync.Mutex
	tabs    map[int]domain.Tab
	pending map[int]domain.RedirectCommand
	now     func() time.Time
	logger  *zap.Logger
}

// NewTabTracker creates an empty tracker.
func NewTabTracker(logger *zap.Logger) *TabTracker {
	return &TabTracker{
		tabs:    make(map[int]domain.Tab),
		pending: make(map[int]domain.RedirectCommand),
		now:     time.Now,
		logger:  logger,
	}
}

// Track records (or updates) an open tab. A tab that moved to a new URL
// loses any undrained redirect; the new URL gets its own decision.
func (t *TabTracker) Track(tab domain.Tab) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.tabs[tab.ID]; ok && prev.URL != tab.URL {
		if _, queued := t.pending[tab.ID]; queued {
			delete(t.pending, tab.ID)
			t.logger.Debug("dropped stale redirect",
				zap.Int("tab", tab.ID),
				zap.String("url", tab.URL))
		}
	}
	t.tabs[tab.ID] = tab
}

// Remove forgets a closed tab and any redirect queued for it.
func (t *TabTracker) Remove(tabID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.tabs[tabID]
	delete(t.tabs, tabID)
	delete(t.pending, tabID)
	return ok
}

// Tabs returns all tracked tabs ordered by ID.
func (t *TabTracker) Tabs() []domain.Tab {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.Tab, 0, len(t.tabs))
	for _, tab := range t.tabs {
		out = append(out, tab)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Query returns tracked tabs whose URL matches any of the match patterns.
func (t *TabTracker) Query(ctx context.Context, patterns []string) ([]domain.Tab, error) {
	compiled := make([]policy.HostPattern, 0, len(patterns))
	for _, s := range patterns {
		p, err := policy.ParseHostPattern(s)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, p)
	}

	var matched []domain.Tab
	for _, tab := range t.Tabs() {
		if policy.MatchAny(compiled, tab.URL) {
			matched = append(matched, tab)
		}
	}
	return matched, nil
}

// Redirect points the tab at target and queues the command for the host.
// A newer redirect for the same tab replaces an undrained one.
func (t *TabTracker) Redirect(ctx context.Context, tabID int, target string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tab, ok := t.tabs[tabID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTab, tabID)
	}
	tab.URL = target
	t.tabs[tabID] = tab
	t.pending[tabID] = domain.RedirectCommand{
		TabID:    tabID,
		URL:      target,
		IssuedAt: t.now(),
	}

	t.logger.Debug("queued redirect",
		zap.Int("tab", tabID),
		zap.String("target", target))
	return nil
}

// DrainRedirects returns and clears the queued commands, ordered by tab ID.
func (t *TabTracker) DrainRedirects() []domain.RedirectCommand {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.RedirectCommand, 0, len(t.pending))
	for _, cmd := range t.pending {
		out = append(out, cmd)
	}
	t.pending = make(map[int]domain.RedirectCommand)
	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}

// Ensure TabTracker implements domain.TabHost.
var _ domain.TabHost = (*TabTracker)(nil)
