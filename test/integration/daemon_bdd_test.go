//go:build integration

package integration

import (
	"context"
	"net"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sub_mon/internal/api"
	"github.com/eliteGoblin/focusd/sub_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
	"github.com/eliteGoblin/focusd/sub_mon/internal/infra"
	"github.com/eliteGoblin/focusd/sub_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/sub_mon/test/fixtures"
)

var _ = Describe("Blocking daemon", func() {
	var (
		dataDir  string
		store    domain.SettingsStore
		registry domain.DaemonRegistry
		browser  *fixtures.FakeBrowser
		cancel   context.CancelFunc
		done     chan error
		baseURL  string
	)

	BeforeEach(func() {
		var err error
		dataDir, err = os.MkdirTemp("", "submon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		store, err = infra.OpenEncryptedSettingsStore(dataDir)
		Expect(err).NotTo(HaveOccurred())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		baseURL = "http://" + ln.Addr().String()

		tabs := infra.NewTabTracker(logger)
		notifier := daemon.NewChangeNotifier()
		settings := usecase.NewSettingsService(store, notifier.Notify, logger)
		enforcer := usecase.NewEnforcer(store, tabs, baseURL+"/blocked", logger)
		server := api.NewServer(settings, enforcer, tabs, "integration", logger)
		registry = infra.NewFileRegistry(dataDir, infra.NewProcessManager())

		config := daemon.DefaultWatcherConfig()
		config.PollInterval = 20 * time.Millisecond
		watcher := daemon.NewWatcher(config, enforcer, settings, store, registry, server,
			notifier.C(), domain.Daemon{PID: os.Getpid(), AppVersion: "integration"}, logger)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- watcher.Run(ctx, ln) }()

		browser = fixtures.NewFakeBrowser(baseURL)
		Eventually(func() error {
			_, _, err := browser.Get("/v1")
			return err
		}, 2*time.Second, 20*time.Millisecond).Should(Succeed())
	})

	AfterEach(func() {
		cancel()
		Eventually(done, 5*time.Second).Should(Receive())
		Expect(store.Close()).To(Succeed())
		os.RemoveAll(dataDir)
	})

	Context("on startup", func() {
		It("registers itself and writes default settings", func() {
			entry, err := registry.GetAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(entry).NotTo(BeNil())
			Expect(entry.Address).To(Equal(baseURL[len("http://"):]))

			s, err := store.Load(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(domain.DefaultSettings()))
		})
	})

	Context("when a blocked subreddit is opened", func() {
		BeforeEach(func() {
			code, err := browser.SaveSettings("wallstreetbets\nR/POLITICS\n/r/politics", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(200))
		})

		It("stores the parsed list", func() {
			s, err := store.Load(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(s.BlockList).To(Equal(domain.BlockList{"/r/wallstreetbets", "/r/politics"}))
		})

		It("redirects the tab to the blocked page", func() {
			decision, err := browser.Navigate(1, "https://old.reddit.com/r/politics/comments/1")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked()).To(BeTrue())

			Expect(browser.Sync()).To(Equal([]int{1}))
			Expect(browser.URL(1)).To(Equal(baseURL + "/blocked"))
		})

		It("leaves other subreddits and other sites alone", func() {
			decision, err := browser.Navigate(2, "https://reddit.com/r/technology")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked()).To(BeFalse())

			decision, err = browser.Navigate(3, "https://example.com/r/politics")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked()).To(BeFalse())

			Expect(browser.Sync()).To(BeEmpty())
		})
	})

	Context("when settings change while tabs are open", func() {
		It("rescans open tabs after a save through the API", func() {
			_, err := browser.Navigate(4, "https://www.reddit.com/r/golang/")
			Expect(err).NotTo(HaveOccurred())
			Expect(browser.Sync()).To(BeEmpty())

			code, err := browser.SaveSettings("golang", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(200))

			Eventually(browser.Sync, 2*time.Second, 20*time.Millisecond).Should(Equal([]int{4}))
			Expect(browser.URL(4)).To(Equal(baseURL + "/blocked"))
		})

		It("rescans open tabs after another process writes the store", func() {
			_, err := browser.Navigate(5, "https://www.reddit.com/r/rust")
			Expect(err).NotTo(HaveOccurred())

			other, err := infra.OpenEncryptedSettingsStore(dataDir)
			Expect(err).NotTo(HaveOccurred())
			defer other.Close()
			cli := usecase.NewSettingsService(other, nil, zap.NewNop())
			_, err = cli.AddSubreddits(context.Background(), "rust")
			Expect(err).NotTo(HaveOccurred())

			Eventually(browser.Sync, 2*time.Second, 20*time.Millisecond).Should(Equal([]int{5}))
		})

		It("ignores tabs the user already closed", func() {
			_, err := browser.Navigate(6, "https://www.reddit.com/r/news")
			Expect(err).NotTo(HaveOccurred())
			Expect(browser.Close(6)).To(Succeed())

			_, err = browser.SaveSettings("news", true)
			Expect(err).NotTo(HaveOccurred())

			Consistently(browser.Sync, 200*time.Millisecond, 20*time.Millisecond).Should(BeEmpty())
		})
	})

	Context("when blocking is disabled", func() {
		BeforeEach(func() {
			_, err := browser.SaveSettings("politics", false)
			Expect(err).NotTo(HaveOccurred())
		})

		It("allows listed subreddits", func() {
			decision, err := browser.Navigate(7, "https://reddit.com/r/politics")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Reason).To(Equal(domain.ReasonDisabled))
		})

		It("still blocks while the daily lock is active", func() {
			code, _, err := browser.Get("/v1/settings")
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(200))

			settings := usecase.NewSettingsService(store, nil, zap.NewNop())
			_, err = settings.LockForToday(context.Background())
			Expect(err).NotTo(HaveOccurred())

			decision, err := browser.Navigate(8, "https://reddit.com/r/politics")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Blocked()).To(BeTrue())

			code, err = browser.SaveSettings("", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(409))
		})
	})

	Context("the blocked page", func() {
		It("follows the stored theme", func() {
			code, body, err := browser.Get("/blocked")
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(200))
			Expect(body).To(ContainSubstring(`data-theme="dark"`))

			settings := usecase.NewSettingsService(store, nil, zap.NewNop())
			_, err = settings.SetTheme(context.Background(), domain.ThemeLight)
			Expect(err).NotTo(HaveOccurred())

			_, body, err = browser.Get("/blocked")
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(ContainSubstring(`data-theme="light"`))
		})
	})
})
