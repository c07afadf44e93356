package engine

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/pdown/internal/locator"
)

const folderSelectorPrefix = "folder:"

var errNotFound = errors.New("element not found")

// fakeDir is one folder of a scripted share.
type fakeDir struct {
	folders  []string
	ghosts   []string
	items    []RawItem
	children map[string]*fakeDir
	listings int
}

// downloadSnap is what the transfer manager shows on one poll.
type downloadSnap struct {
	items    int
	name     string
	progress int64
	total    int64
	speed    string
	// readErr fails every field read of this poll.
	readErr error
}

// fakePage is a scripted Page. Selectors in present are found immediately,
// everything else times out.
type fakePage struct {
	loc locator.Set

	mu        sync.Mutex
	present   map[string]bool
	texts     map[string]string
	attrs     map[string]string
	stack     []*fakeDir
	navigated []string
	typed     []string
	clicks    []string
	hovers    []string
	evals     int
	handlers  []func(Response)
	responses []Response
	snaps     []downloadSnap
	snapIdx   int
	onSubmit  func(p *fakePage)
	closed    int
	shots     int
}

func newFakePage(loc locator.Set, root *fakeDir, present ...string) *fakePage {
	p := &fakePage{
		loc:     loc,
		present: make(map[string]bool),
		texts:   make(map[string]string),
		attrs:   make(map[string]string),
	}
	if root != nil {
		p.stack = []*fakeDir{root}
	}
	for _, sel := range present {
		p.present[sel] = true
	}
	return p
}

func (p *fakePage) setPresent(sel string, v bool) {
	p.mu.Lock()
	p.present[sel] = v
	p.mu.Unlock()
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navigated = append(p.navigated, url)
	handlers := slices.Clone(p.handlers)
	responses := append([]Response(nil), p.responses...)
	p.mu.Unlock()
	for _, r := range responses {
		for _, h := range handlers {
			h(r)
		}
	}
	return nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.navigated) == 0 {
		return "about:blank", nil
	}
	return p.navigated[len(p.navigated)-1], nil
}

func (p *fakePage) Evaluate(ctx context.Context, script string, out any) error {
	p.mu.Lock()
	p.evals++
	p.mu.Unlock()
	return nil
}

func (p *fakePage) found(sel string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.HasPrefix(sel, folderSelectorPrefix) {
		return true
	}
	if sel == p.loc.PreviousFolderBreadcrumb && len(p.stack) > 1 {
		return true
	}
	return p.present[sel]
}

func (p *fakePage) WaitFor(ctx context.Context, sel string, timeout time.Duration) error {
	if p.found(sel) {
		return nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return errNotFound
	}
}

func (p *fakePage) Click(ctx context.Context, sel string, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, sel)
	switch {
	case strings.HasPrefix(sel, folderSelectorPrefix) && count == 2:
		cur := p.stack[len(p.stack)-1]
		child, ok := cur.children[strings.TrimPrefix(sel, folderSelectorPrefix)]
		if !ok {
			return errNotFound
		}
		p.stack = append(p.stack, child)
	case sel == p.loc.PreviousFolderBreadcrumb:
		if len(p.stack) < 2 {
			return errNotFound
		}
		p.stack = p.stack[:len(p.stack)-1]
	}
	return nil
}

func (p *fakePage) Hover(ctx context.Context, sel string) error {
	p.mu.Lock()
	p.hovers = append(p.hovers, sel)
	p.mu.Unlock()
	return nil
}

func (p *fakePage) Submit(ctx context.Context, sel, text string) error {
	p.mu.Lock()
	p.typed = append(p.typed, text)
	hook := p.onSubmit
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *fakePage) current() downloadSnap {
	if len(p.snaps) == 0 {
		return downloadSnap{}
	}
	i := p.snapIdx
	if i >= len(p.snaps) {
		i = len(p.snaps) - 1
	}
	return p.snaps[i]
}

func (p *fakePage) Count(ctx context.Context, sel string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sel == p.loc.DownloadItem {
		if p.snapIdx < len(p.snaps) {
			p.snapIdx++
		}
		i := p.snapIdx - 1
		if i < 0 {
			return 0, nil
		}
		return p.snaps[i].items, nil
	}
	if p.present[sel] {
		return 1, nil
	}
	return 0, nil
}

func (p *fakePage) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sel == p.loc.DownloadFilename {
		snap := p.snaps[p.snapIdx-1]
		if snap.readErr != nil {
			return "", false, snap.readErr
		}
		return snap.name, snap.name != "", nil
	}
	v, ok := p.attrs[sel+"@"+name]
	if !ok {
		return "", false, errNotFound
	}
	return v, true, nil
}

func (p *fakePage) Text(ctx context.Context, sel string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sel == p.loc.DownloadSpeed {
		snap := p.snaps[p.snapIdx-1]
		return snap.speed, snap.readErr
	}
	v, ok := p.texts[sel]
	if !ok {
		return "", errNotFound
	}
	return v, nil
}

func (p *fakePage) Progress(ctx context.Context, sel string) (int64, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := p.snaps[p.snapIdx-1]
	if snap.readErr != nil {
		return 0, 0, snap.readErr
	}
	return snap.progress, snap.total, nil
}

func (p *fakePage) Folders(ctx context.Context) ([]FolderEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.stack[len(p.stack)-1]
	names := cur.folders
	if cur.listings == 0 {
		names = append(append([]string(nil), cur.folders...), cur.ghosts...)
	}
	cur.listings++
	out := make([]FolderEntry, len(names))
	for i, n := range names {
		out[i] = FolderEntry{Name: n, Selector: folderSelectorPrefix + n}
	}
	return out, nil
}

func (p *fakePage) Items(ctx context.Context) ([]RawItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.stack[len(p.stack)-1]
	return append([]RawItem(nil), cur.items...), nil
}

func (p *fakePage) OnResponse(fn func(Response)) {
	p.mu.Lock()
	p.handlers = append(p.handlers, fn)
	p.mu.Unlock()
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	p.shots++
	p.mu.Unlock()
	return []byte("\x89PNG"), nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	return nil
}

// fakeSession hands out one scripted page per NewPage call.
type fakeSession struct {
	mu       sync.Mutex
	pages    []*fakePage
	next     int
	done       chan struct{}
	released   int
	releasedAt time.Time
}

func (s *fakeSession) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.pages) {
		return nil, errors.New("no scripted page left")
	}
	p := s.pages[s.next]
	s.next++
	return p, nil
}

func (s *fakeSession) DownloadDone() <-chan struct{} { return s.done }

func (s *fakeSession) Release() error {
	s.mu.Lock()
	s.released++
	s.releasedAt = time.Now()
	s.mu.Unlock()
	return nil
}

func jsonResponse(url string, status int, body string) Response {
	return Response{
		URL:    url,
		Status: status,
		Body: func(ctx context.Context) ([]byte, error) {
			return []byte(body), nil
		},
	}
}

func testTimings() Timings {
	return Timings{
		Navigation:     time.Second,
		Challenge:      20 * time.Millisecond,
		APIWait:        time.Second,
		Settle:         time.Millisecond,
		BackSettle:     time.Millisecond,
		Locate:         50 * time.Millisecond,
		Poll:           5 * time.Millisecond,
		DownloadStart:  30 * time.Millisecond,
		DownloadButton: 50 * time.Millisecond,
		FilenameWait:   50 * time.Millisecond,

		DownloadConfirm: 50 * time.Millisecond,
		DownloadGrace:   5 * time.Millisecond,
	}
}
