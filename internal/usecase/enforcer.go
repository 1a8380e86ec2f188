package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// DefaultRescanConcurrency bounds parallel redirects during a rescan.
const DefaultRescanConcurrency = 8

// EnforcerImpl implements domain.Enforcer.
type EnforcerImpl struct {
	store       domain.SettingsStore
	host        domain.TabHost
	redirectURL string
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

// NewEnforcer creates an enforcer that redirects blocked tabs to redirectURL.
func NewEnforcer(
	store domain.SettingsStore,
	host domain.TabHost,
	redirectURL string,
	logger *zap.Logger,
) *EnforcerImpl {
	return &EnforcerImpl{
		store:       store,
		host:        host,
		redirectURL: redirectURL,
		concurrency: DefaultRescanConcurrency,
		now:         time.Now,
		logger:      logger,
	}
}

// WithConcurrency sets the rescan fan-out limit (minimum 1).
func (e *EnforcerImpl) WithConcurrency(n int) *EnforcerImpl {
	if n < 1 {
		n = 1
	}
	e.concurrency = n
	return e
}

// HandleNavigation evaluates one committed navigation against a fresh
// settings snapshot and redirects the tab when blocked.
// A failed redirect is logged and not retried. When settings cannot be
// loaded the zero Decision is returned with the error and the tab is left alone.
func (e *EnforcerImpl) HandleNavigation(ctx context.Context, ev domain.NavigationEvent) (domain.Decision, error) {
	settings, err := e.store.Load(ctx)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("failed to load settings: %w", err)
	}

	decision := Evaluate(ev.URL, settings, e.now())
	if !decision.Blocked() {
		return decision, nil
	}

	if err := e.host.Redirect(ctx, ev.TabID, e.redirectURL); err != nil {
		e.logger.Warn("failed to redirect tab",
			zap.Int("tab", ev.TabID),
			zap.String("subreddit", decision.Subreddit),
			zap.Error(err))
		return decision, nil
	}

	e.logger.Info("blocked navigation",
		zap.Int("tab", ev.TabID),
		zap.String("subreddit", decision.Subreddit))
	return decision, nil
}

// Rescan re-evaluates every open reddit tab against one settings snapshot.
// Per-tab redirect failures are collected in the result and never stop the
// other tabs.
func (e *EnforcerImpl) Rescan(ctx context.Context, trigger domain.Trigger) (*domain.EnforcementResult, error) {
	start := e.now()

	result := &domain.EnforcementResult{
		Trigger:    trigger,
		Redirected: make([]int, 0),
		Errors:     make([]error, 0),
		ExecutedAt: start,
	}

	settings, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	tabs, err := e.host.Query(ctx, domain.RedditHostPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to query tabs: %w", err)
	}
	result.TabsScanned = len(tabs)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, tab := range tabs {
		decision := Evaluate(tab.URL, settings, start)
		if !decision.Blocked() {
			continue
		}

		g.Go(func() error {
			err := e.host.Redirect(gctx, tab.ID, e.redirectURL)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Warn("failed to redirect tab",
					zap.Int("tab", tab.ID),
					zap.String("subreddit", decision.Subreddit),
					zap.Error(err))
				result.Errors = append(result.Errors, err)
				return nil
			}
			result.Redirected = append(result.Redirected, tab.ID)
			return nil
		})
	}
	_ = g.Wait()

	result.DurationMs = e.now().Sub(start).Milliseconds()

	if len(result.Redirected) > 0 {
		e.logger.Info("rescan redirected tabs",
			zap.String("trigger", string(trigger)),
			zap.Int("scanned", result.TabsScanned),
			zap.Ints("tabs", result.Redirected))
	} else {
		e.logger.Debug("rescan complete",
			zap.String("trigger", string(trigger)),
			zap.Int("scanned", result.TabsScanned))
	}

	return result, nil
}

// Ensure EnforcerImpl implements domain.Enforcer.
var _ domain.Enforcer = (*EnforcerImpl)(nil)
