package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/dgnsrekt/pdown/internal/engine"
	"github.com/dgnsrekt/pdown/internal/locator"
)

const idlePoll = 50 * time.Millisecond

// Page is one browser tab driven through chromedp.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	loc    locator.Set
	idle   *idleTracker
	logger *slog.Logger

	mu        sync.Mutex
	pending   map[network.RequestID]*network.Response
	handlers  []func(engine.Response)
	closeOnce sync.Once
}

var _ engine.Page = (*Page)(nil)

func newPage(ctx context.Context, cancel context.CancelFunc, loc locator.Set, logger *slog.Logger) *Page {
	p := &Page{
		ctx:     ctx,
		cancel:  cancel,
		loc:     loc,
		idle:    newIdleTracker(idleMaxInflight, idleWindow),
		logger:  logger,
		pending: make(map[network.RequestID]*network.Response),
	}
	chromedp.ListenTarget(ctx, p.handleEvent)
	return p
}

func (p *Page) handleEvent(ev interface{}) {
	now := time.Now()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.idle.started(e.RequestID, now)
	case *network.EventResponseReceived:
		p.mu.Lock()
		p.pending[e.RequestID] = e.Response
		p.mu.Unlock()
	case *network.EventLoadingFinished:
		p.idle.finished(e.RequestID, now)
		p.mu.Lock()
		resp, ok := p.pending[e.RequestID]
		delete(p.pending, e.RequestID)
		handlers := slices.Clone(p.handlers)
		p.mu.Unlock()
		if !ok || len(handlers) == 0 {
			return
		}
		// Listener callbacks must not block the event loop.
		go p.dispatch(handlers, e.RequestID, resp)
	case *network.EventLoadingFailed:
		p.idle.finished(e.RequestID, now)
		p.mu.Lock()
		delete(p.pending, e.RequestID)
		p.mu.Unlock()
	}
}

func (p *Page) dispatch(handlers []func(engine.Response), id network.RequestID, resp *network.Response) {
	r := engine.Response{
		URL:    resp.URL,
		Status: int(resp.Status),
		Body: func(ctx context.Context) ([]byte, error) {
			var body []byte
			err := p.run(ctx, chromedp.ActionFunc(func(runCtx context.Context) error {
				var err error
				body, err = network.GetResponseBody(id).Do(runCtx)
				return err
			}))
			return body, err
		},
	}
	for _, h := range handlers {
		h(r)
	}
}

// run executes actions on the tab bounded by ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *Page) eval(ctx context.Context, script string, out any) error {
	var raw string
	if err := p.run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		return engine.NewError(engine.CodeEvalFailure, "evaluation failed", err)
	}
	return decodeEnvelope(raw, out)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.idle.reset(time.Now())
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return err
	}
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for {
		if p.idle.quiet(time.Now()) {
			p.logger.Debug("network idle", "url", url)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var u string
	if err := p.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	var discard any
	if out == nil {
		out = &discard
	}
	return p.run(ctx, chromedp.Evaluate(script, out))
}

func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return engine.NewError(engine.CodeTimeout, fmt.Sprintf("waiting for %q", selector), err)
		}
		return err
	}
	return nil
}

// firstNode runs fn against the first node matching selector.
func (p *Page) firstNode(ctx context.Context, selector string, fn func(context.Context, *cdp.Node) error) error {
	return p.run(ctx, chromedp.QueryAfter(selector, func(ctx context.Context, _ runtime.ExecutionContextID, nodes ...*cdp.Node) error {
		if len(nodes) == 0 {
			return engine.NewError(codeNotFound, "no element matches "+selector, nil)
		}
		return fn(ctx, nodes[0])
	}, chromedp.ByQuery))
}

func (p *Page) Click(ctx context.Context, selector string, count int) error {
	if count < 1 {
		count = 1
	}
	return p.firstNode(ctx, selector, func(ctx context.Context, n *cdp.Node) error {
		return chromedp.MouseClickNode(n, chromedp.ClickCount(count)).Do(ctx)
	})
}

func (p *Page) Hover(ctx context.Context, selector string) error {
	return p.firstNode(ctx, selector, func(ctx context.Context, n *cdp.Node) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(n.NodeID).Do(ctx); err != nil {
			return err
		}
		box, err := dom.GetBoxModel().WithNodeID(n.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		x, y, ok := quadCenter(box.Content)
		if !ok {
			return engine.NewError(engine.CodeEvalFailure, "element has no box: "+selector, nil)
		}
		return chromedp.MouseEvent(input.MouseMoved, x, y).Do(ctx)
	})
}

// quadCenter returns the midpoint of a content quad (four x,y pairs).
func quadCenter(q dom.Quad) (x, y float64, ok bool) {
	if len(q) < 8 {
		return 0, 0, false
	}
	for i := 0; i < 8; i += 2 {
		x += q[i]
		y += q[i+1]
	}
	return x / 4, y / 4, true
}

func (p *Page) Submit(ctx context.Context, selector, text string) error {
	return p.run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text+kb.Enter, chromedp.ByQuery),
	)
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := p.eval(ctx, countScript(selector), &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Page) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var v *string
	if err := p.eval(ctx, attributeScript(selector, name), &v); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	var s string
	if err := p.eval(ctx, textScript(selector), &s); err != nil {
		return "", err
	}
	return s, nil
}

func (p *Page) Progress(ctx context.Context, selector string) (int64, int64, error) {
	var v struct {
		Value float64 `json:"value"`
		Max   float64 `json:"max"`
	}
	if err := p.eval(ctx, progressScript(selector), &v); err != nil {
		return 0, 0, err
	}
	return int64(v.Value), int64(v.Max), nil
}

func (p *Page) Folders(ctx context.Context) ([]engine.FolderEntry, error) {
	var rows []struct {
		Name     string `json:"name"`
		Selector string `json:"selector"`
	}
	script := foldersScript(p.loc.FolderRows, p.loc.FolderIcon, p.loc.FolderIconRef, p.loc.FolderName)
	if err := p.eval(ctx, script, &rows); err != nil {
		return nil, err
	}
	out := make([]engine.FolderEntry, len(rows))
	for i, r := range rows {
		out[i] = engine.FolderEntry{Name: r.Name, Selector: r.Selector}
	}
	return out, nil
}

func (p *Page) Items(ctx context.Context) ([]engine.RawItem, error) {
	var rows []struct {
		Info string `json:"info"`
		Size string `json:"size"`
	}
	script := itemsScript(p.loc.TableRows, p.loc.ItemInfo, p.loc.ItemInfoFallback, p.loc.ItemSize)
	if err := p.eval(ctx, script, &rows); err != nil {
		return nil, err
	}
	out := make([]engine.RawItem, len(rows))
	for i, r := range rows {
		out[i] = engine.RawItem{Info: r.Info, SizeText: r.Size}
	}
	return out, nil
}

func (p *Page) OnResponse(fn func(engine.Response)) {
	p.mu.Lock()
	p.handlers = append(p.handlers, fn)
	p.mu.Unlock()
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the tab. It is safe to call more than once.
func (p *Page) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}
