// Package engine drives shared-link pages through loading, password
// challenges, folder crawling and download monitoring. It talks to the
// browser only through Page and Session, so it runs against fakes in tests.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dgnsrekt/pdown/internal/events"
	"github.com/dgnsrekt/pdown/internal/locator"
	"github.com/dgnsrekt/pdown/internal/share"
)

const defaultMaxDepth = 64

// SessionOptions configures one browser session.
type SessionOptions struct {
	// Cookies is the content of a Netscape cookie file.
	Cookies   string
	UserAgent string
	// SpeedKBps caps download and upload throughput. Zero means unthrottled.
	SpeedKBps int
	// DownloadDir enables native downloads into the directory.
	DownloadDir string
}

// Session is an isolated browser instance.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	// DownloadDone is closed once the browser reports a finished download.
	DownloadDone() <-chan struct{}
	// Release tears the session down. It is safe to call more than once.
	Release() error
}

// SessionManager creates sessions.
type SessionManager interface {
	Acquire(ctx context.Context, opts SessionOptions) (Session, error)
}

// AcquireFunc adapts a function to SessionManager.
type AcquireFunc func(ctx context.Context, opts SessionOptions) (Session, error)

func (f AcquireFunc) Acquire(ctx context.Context, opts SessionOptions) (Session, error) {
	return f(ctx, opts)
}

// Config wires an Engine.
type Config struct {
	Sessions SessionManager
	Locators locator.Set
	Timings  Timings
	BaseURL  string
	// MaxSessions bounds concurrent download sessions. Zero means unbounded.
	MaxSessions int
	// MaxDepth bounds crawl recursion below the share root.
	MaxDepth int
	Session  SessionOptions
	// Snapshots receives a screenshot of every page that failed. Optional.
	Snapshots SnapshotSink
	Bus       *events.Bus
	Logger    *slog.Logger
}

// Engine lists and downloads shares.
type Engine struct {
	sessions    SessionManager
	loc         locator.Set
	timings     Timings
	baseURL     string
	maxSessions int
	maxDepth    int
	session     SessionOptions
	snapshots   SnapshotSink
	bus         *events.Bus
	logger      *slog.Logger
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Engine, error) {
	if cfg.Sessions == nil {
		return nil, newError(CodeValidation, "session manager is required", nil)
	}
	if cfg.MaxSessions < 0 {
		return nil, newError(CodeValidation, "max sessions must be >= 0", nil)
	}
	if cfg.Locators == (locator.Set{}) {
		cfg.Locators = locator.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = share.DefaultBaseURL
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		sessions:    cfg.Sessions,
		loc:         cfg.Locators,
		timings:     cfg.Timings.withDefaults(),
		baseURL:     cfg.BaseURL,
		maxSessions: cfg.MaxSessions,
		maxDepth:    cfg.MaxDepth,
		session:     cfg.Session,
		snapshots:   cfg.Snapshots,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
	}, nil
}

// ListResult is the file tree of one share.
type ListResult struct {
	URL   string         `json:"url"`
	Files share.FileInfo `json:"files"`
}

// Outcome is the settled result of one share task.
type Outcome[T any] struct {
	Target share.Target
	Value  T
	Err    error
}

// SettleAll runs fn for every target concurrently and waits for all of them.
// Results keep input order and a failing task never cancels its siblings.
// limit caps concurrency when positive.
func SettleAll[T any](ctx context.Context, targets []share.Target, limit int, fn func(context.Context, share.Target) (T, error)) []Outcome[T] {
	out := make([]Outcome[T], len(targets))
	var sem *semaphore.Weighted
	if limit > 0 {
		sem = semaphore.NewWeighted(int64(limit))
	}

	var wg sync.WaitGroup
	for i, t := range targets {
		out[i].Target = t
		wg.Add(1)
		go func(i int, t share.Target) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					out[i].Err = fmt.Errorf("[%s] panic: %v\n%s", t.ID, r, debug.Stack())
				}
			}()
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					out[i].Err = err
					return
				}
				defer sem.Release(1)
			}
			out[i].Value, out[i].Err = fn(ctx, t)
		}(i, t)
	}
	wg.Wait()
	return out
}

// List builds the file tree of every target using one browser session with a
// page per share.
func (e *Engine) List(ctx context.Context, targets []share.Target, recursive bool) []Outcome[ListResult] {
	e.bus.Publish(events.Event{Type: events.LoadStart})
	defer e.bus.Publish(events.Event{Type: events.LoadComplete})

	opts := e.session
	opts.DownloadDir = ""
	sess, err := e.sessions.Acquire(ctx, opts)
	if err != nil {
		out := make([]Outcome[ListResult], len(targets))
		for i, t := range targets {
			out[i] = Outcome[ListResult]{Target: t, Err: err}
		}
		return out
	}

	out := SettleAll(ctx, targets, 0, func(ctx context.Context, t share.Target) (ListResult, error) {
		return e.listShare(ctx, sess, t, recursive)
	})
	if err := sess.Release(); err != nil {
		e.logger.Warn("session release failed", "error", err)
	}
	return out
}

// Download fetches every target into dir, one browser session per share.
func (e *Engine) Download(ctx context.Context, targets []share.Target, dir string) []Outcome[struct{}] {
	e.bus.Publish(events.Event{Type: events.LoadStart})
	return SettleAll(ctx, targets, e.maxSessions, func(ctx context.Context, t share.Target) (struct{}, error) {
		return struct{}{}, e.downloadShare(ctx, t, dir)
	})
}

func (e *Engine) downloadShare(ctx context.Context, t share.Target, dir string) (err error) {
	logger := e.logger.With("share_id", t.ID)
	opts := e.session
	opts.DownloadDir = dir
	sess, err := e.sessions.Acquire(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Release(); err != nil {
			logger.Warn("session release failed", "error", err)
		}
	}()

	page, err := sess.NewPage(ctx)
	if err != nil {
		return err
	}
	defer page.Close()
	defer func() { e.captureFailure(ctx, page, t, err) }()

	if err := e.LoadShare(ctx, page, t); err != nil {
		return err
	}
	e.bus.Publish(events.Event{Type: events.LoadComplete, ShareID: t.ID})

	logger.Debug("clicking download button")
	if err := page.WaitFor(ctx, e.loc.ShareDownloadButton, e.timings.DownloadButton); err != nil {
		return shareError(CodeDownloadNotStarted, t.ID, "download button not found", err)
	}
	if err := page.Click(ctx, e.loc.ShareDownloadButton, 1); err != nil {
		return shareError(CodeDownloadNotStarted, t.ID, "download button click failed", err)
	}
	if err := e.MonitorDownload(ctx, page, t.ID, sess.DownloadDone()); err != nil {
		return err
	}
	return e.settleDownload(ctx, sess.DownloadDone(), logger)
}

// settleDownload keeps the session alive until the browser confirms the file
// is written, bounded by DownloadConfirm, and then for DownloadGrace. The
// transfer manager can report 100% before Chrome has flushed the file.
func (e *Engine) settleDownload(ctx context.Context, done <-chan struct{}, logger *slog.Logger) error {
	confirm := time.NewTimer(e.timings.DownloadConfirm)
	defer confirm.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	case <-confirm.C:
		logger.Warn("browser never confirmed the download", "waited", e.timings.DownloadConfirm)
	}
	logger.Debug("waiting before closing the browser", "grace", e.timings.DownloadGrace)
	return sleep(ctx, e.timings.DownloadGrace)
}
