package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/pdown/internal/engine"
	"github.com/dgnsrekt/pdown/internal/locator"
	"github.com/dgnsrekt/pdown/internal/netutil"
)

const (
	defaultCloseTimeout  = 5 * time.Second
	defaultDownloadGrace = time.Second
)

// ManagerConfig configures how sessions are launched.
type ManagerConfig struct {
	ChromePath string
	Headless   bool
	// ProfileRoot holds the temporary per-session profile dirs. Empty means
	// the system temp dir.
	ProfileRoot  string
	CloseTimeout time.Duration
	// DownloadGrace is how long Release waits after a completed download
	// before closing the browser, so Chrome can finish writing the file.
	DownloadGrace time.Duration
	Locators      locator.Set
	Logger        *slog.Logger
}

// Manager launches isolated browser sessions and tracks the live ones so they
// can be torn down on shutdown.
type Manager struct {
	cfg ManagerConfig

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaultCloseTimeout
	}
	if cfg.DownloadGrace <= 0 {
		cfg.DownloadGrace = defaultDownloadGrace
	}
	if cfg.Locators == (locator.Set{}) {
		cfg.Locators = locator.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg, sessions: make(map[*Session]struct{})}
}

// Session is one browser process with its own profile.
type Session struct {
	mgr           *Manager
	launcher      *Launcher
	profileDir    string
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	opts          engine.SessionOptions
	logger        *slog.Logger

	// closeBrowser and kill are the two teardown steps of Release.
	closeBrowser func(ctx context.Context) error
	kill         func()

	mu        sync.Mutex
	firstUsed bool
	pages     []*Page
	doneAt    time.Time

	done        chan struct{}
	doneOnce    sync.Once
	closeOnce   sync.Once
	killOnce    sync.Once
	releaseOnce sync.Once
	releaseErr  error
}

var _ engine.Session = (*Session)(nil)

// Acquire launches a browser and applies cookies and download settings.
// Failures are reported as BROWSER_UNAVAILABLE.
func (m *Manager) Acquire(ctx context.Context, opts engine.SessionOptions) (*Session, error) {
	logger := m.cfg.Logger

	if m.cfg.ProfileRoot != "" {
		if err := os.MkdirAll(m.cfg.ProfileRoot, 0o755); err != nil {
			return nil, engine.NewError(engine.CodeBrowserUnavailable, "create profile root", err)
		}
	}
	profileDir, err := os.MkdirTemp(m.cfg.ProfileRoot, "pdown-profile-*")
	if err != nil {
		return nil, engine.NewError(engine.CodeBrowserUnavailable, "create profile dir", err)
	}
	port, err := netutil.FreePort("127.0.0.1")
	if err != nil {
		_ = os.RemoveAll(profileDir)
		return nil, engine.NewError(engine.CodeBrowserUnavailable, "allocate debugging port", err)
	}

	launcher := NewLauncher(LaunchConfig{
		ChromePath: m.cfg.ChromePath,
		Headless:   m.cfg.Headless,
		CDPPort:    port,
		ProfileDir: profileDir,
	}, logger)
	if err := launcher.Launch(ctx); err != nil {
		_ = os.RemoveAll(profileDir)
		return nil, engine.NewError(engine.CodeBrowserUnavailable, "launch browser", err)
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), launcher.DebugURL())
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		mgr:           m,
		launcher:      launcher,
		profileDir:    profileDir,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		opts:          opts,
		logger:        logger,
		done:          make(chan struct{}),
	}
	s.closeBrowser = s.closeViaCDP
	s.kill = launcher.Kill

	if err := s.setup(ctx); err != nil {
		_ = s.Release()
		return nil, engine.NewError(engine.CodeBrowserUnavailable, "initialize browser session", err)
	}

	m.mu.Lock()
	m.sessions[s] = struct{}{}
	m.mu.Unlock()
	return s, nil
}

// setup attaches to the initial tab and applies browser-wide settings.
func (s *Session) setup(ctx context.Context) error {
	actions := []chromedp.Action{network.Enable()}

	if s.opts.Cookies != "" {
		cookies, skipped := ParseNetscapeCookies(s.opts.Cookies)
		if skipped > 0 {
			s.logger.Warn("skipped malformed cookie lines", "count", skipped)
		}
		if len(cookies) > 0 {
			actions = append(actions, network.SetCookies(cookies))
			s.logger.Debug("loaded cookies", "count", len(cookies))
		}
	}

	if s.opts.DownloadDir != "" {
		if err := os.MkdirAll(s.opts.DownloadDir, 0o755); err != nil {
			return fmt.Errorf("create download dir: %w", err)
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			c := chromedp.FromContext(ctx)
			return cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(s.opts.DownloadDir).
				WithEventsEnabled(true).
				Do(cdp.WithExecutor(ctx, c.Browser))
		}))
		chromedp.ListenBrowser(s.browserCtx, s.handleBrowserEvent)
	}

	runCtx, cancel := context.WithCancel(s.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *Session) handleBrowserEvent(ev interface{}) {
	e, ok := ev.(*cdpbrowser.EventDownloadProgress)
	if !ok || e.State != cdpbrowser.DownloadProgressStateCompleted {
		return
	}
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.doneAt = time.Now()
		s.mu.Unlock()
		s.logger.Debug("browser reports download complete")
		close(s.done)
	})
}

// DownloadDone is closed once the browser reports a completed download.
func (s *Session) DownloadDone() <-chan struct{} {
	return s.done
}

// NewPage opens a tab configured with the session's user agent and
// throttling. The first call reuses the tab created at launch.
func (s *Session) NewPage(ctx context.Context) (engine.Page, error) {
	s.mu.Lock()
	var tabCtx context.Context
	var tabCancel context.CancelFunc
	if !s.firstUsed {
		s.firstUsed = true
		tabCtx, tabCancel = s.browserCtx, func() {}
	} else {
		tabCtx, tabCancel = chromedp.NewContext(s.browserCtx)
	}
	s.mu.Unlock()

	p := newPage(tabCtx, tabCancel, s.mgr.cfg.Locators, s.logger)

	actions := []chromedp.Action{network.Enable()}
	if s.opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(s.opts.UserAgent))
	}
	if s.opts.SpeedKBps > 0 {
		bps := float64(s.opts.SpeedKBps) * 1000
		actions = append(actions, network.EmulateNetworkConditions(false, 0, bps, bps))
		s.logger.Debug("throttling network", "kbps", s.opts.SpeedKBps)
	}
	if err := p.run(ctx, actions...); err != nil {
		_ = p.Close()
		return nil, engine.NewError(engine.CodeBrowserUnavailable, "open page", err)
	}

	s.mu.Lock()
	s.pages = append(s.pages, p)
	s.mu.Unlock()
	return p, nil
}

// Release closes the browser gracefully within the close timeout, then kills
// the process and removes the profile. Each step runs once per session. After
// a completed download it first waits out what is left of the download grace.
func (s *Session) Release() error {
	s.releaseOnce.Do(func() {
		var errs []error
		s.waitDownloadGrace()
		s.closeOnce.Do(func() {
			ctx, cancel := context.WithTimeout(s.browserCtx, s.mgr.cfg.CloseTimeout)
			defer cancel()
			if err := s.closeBrowser(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Debug("graceful browser close failed", "error", err)
			}
		})
		s.browserCancel()
		s.allocCancel()
		s.killOnce.Do(s.kill)

		if err := os.RemoveAll(s.profileDir); err != nil {
			errs = append(errs, fmt.Errorf("remove profile dir: %w", err))
		}
		s.mgr.forget(s)
		s.releaseErr = errors.Join(errs...)
	})
	return s.releaseErr
}

func (s *Session) waitDownloadGrace() {
	s.mu.Lock()
	at := s.doneAt
	s.mu.Unlock()
	if at.IsZero() {
		return
	}
	if wait := s.mgr.cfg.DownloadGrace - time.Since(at); wait > 0 {
		s.logger.Debug("waiting for download to settle", "wait", wait)
		time.Sleep(wait)
	}
}

func (s *Session) closeViaCDP(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		return cdpbrowser.Close().Do(cdp.WithExecutor(ctx, c.Browser))
	}))
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s)
	m.mu.Unlock()
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll releases every live session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()
	for _, s := range live {
		if err := s.Release(); err != nil {
			m.cfg.Logger.Warn("session release failed", "error", err)
		}
	}
}
