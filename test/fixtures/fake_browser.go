// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// FakeBrowser plays the host platform: it reports navigations to the daemon
// and applies the redirect commands it drains.
type FakeBrowser struct {
	baseURL string

	mu   sync.Mutex
	tabs map[int]string
}

// NewFakeBrowser creates a browser talking to the daemon at baseURL.
func NewFakeBrowser(baseURL string) *FakeBrowser {
	return &FakeBrowser{
		baseURL: baseURL,
		tabs:    make(map[int]string),
	}
}

// Navigate opens url in tab and reports the committed navigation.
func (b *FakeBrowser) Navigate(tabID int, url string) (domain.Decision, error) {
	b.mu.Lock()
	b.tabs[tabID] = url
	b.mu.Unlock()

	var decision domain.Decision
	agent := fiber.Post(b.baseURL + "/v1/tabs/navigation").
		JSON(domain.NavigationEvent{TabID: tabID, URL: url})
	if err := expect(agent, fiber.StatusOK, &decision); err != nil {
		return domain.Decision{}, err
	}
	return decision, nil
}

// Close closes a tab.
func (b *FakeBrowser) Close(tabID int) error {
	b.mu.Lock()
	delete(b.tabs, tabID)
	b.mu.Unlock()

	return expect(fiber.Delete(fmt.Sprintf("%s/v1/tabs/%d", b.baseURL, tabID)), fiber.StatusNoContent, nil)
}

// Sync drains pending redirects and applies them to the open tabs.
// Returns the IDs of redirected tabs.
func (b *FakeBrowser) Sync() ([]int, error) {
	var cmds []domain.RedirectCommand
	if err := expect(fiber.Get(b.baseURL+"/v1/redirects"), fiber.StatusOK, &cmds); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int, 0, len(cmds))
	for _, cmd := range cmds {
		if _, ok := b.tabs[cmd.TabID]; ok {
			b.tabs[cmd.TabID] = cmd.URL
			ids = append(ids, cmd.TabID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// URL returns the current URL of a tab.
func (b *FakeBrowser) URL(tabID int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tabs[tabID]
}

// SaveSettings submits the editor text and toggle like the settings UI does.
func (b *FakeBrowser) SaveSettings(blockList string, enabled bool) (int, error) {
	agent := fiber.Put(b.baseURL + "/v1/settings").JSON(map[string]any{
		"blockList": blockList,
		"enabled":   enabled,
	})
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return 0, errs[0]
	}
	return code, nil
}

// Get fetches a path and returns the status code and body.
func (b *FakeBrowser) Get(path string) (int, string, error) {
	code, body, errs := fiber.Get(b.baseURL + path).String()
	if len(errs) > 0 {
		return 0, "", errs[0]
	}
	return code, body, nil
}

func expect(agent *fiber.Agent, status int, out any) error {
	var (
		code int
		body []byte
		errs []error
	)
	if out != nil {
		code, body, errs = agent.Struct(out)
	} else {
		code, body, errs = agent.Bytes()
	}
	if len(errs) > 0 {
		return errs[0]
	}
	if code != status {
		return fmt.Errorf("unexpected status %d: %s", code, body)
	}
	return nil
}
