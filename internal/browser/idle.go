package browser

import (
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

const (
	idleMaxInflight = 2
	idleWindow      = 500 * time.Millisecond
)

// idleTracker counts in-flight requests of one tab. The network is quiet when
// at most maxInflight requests have been pending for the whole window.
type idleTracker struct {
	maxInflight int
	window      time.Duration

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	calmFrom time.Time
}

func newIdleTracker(maxInflight int, window time.Duration) *idleTracker {
	return &idleTracker{
		maxInflight: maxInflight,
		window:      window,
		inflight:    make(map[network.RequestID]struct{}),
	}
}

// reset forgets pending requests, e.g. on a new navigation.
func (t *idleTracker) reset(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight = make(map[network.RequestID]struct{})
	t.calmFrom = now
}

func (t *idleTracker) started(id network.RequestID, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.updateLocked(now)
}

func (t *idleTracker) finished(id network.RequestID, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
	t.updateLocked(now)
}

func (t *idleTracker) updateLocked(now time.Time) {
	if len(t.inflight) > t.maxInflight {
		t.calmFrom = time.Time{}
		return
	}
	if t.calmFrom.IsZero() {
		t.calmFrom = now
	}
}

// quiet reports whether the window has passed without exceeding maxInflight.
func (t *idleTracker) quiet(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.calmFrom.IsZero() && now.Sub(t.calmFrom) >= t.window
}
