package engine

import (
	"context"
	"time"
)

// Page is the browser capability the engine drives. One Page belongs to one
// share task at a time.
type Page interface {
	// Navigate loads url and returns once the network is quiet (at most two
	// requests in flight for 500ms) or ctx expires.
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	// Evaluate runs script in the page. out may be nil.
	Evaluate(ctx context.Context, script string, out any) error
	// WaitFor blocks until selector matches a visible element or timeout
	// elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string, count int) error
	Hover(ctx context.Context, selector string) error
	// Submit types text into the element matched by selector and presses
	// Enter.
	Submit(ctx context.Context, selector, text string) error
	Count(ctx context.Context, selector string) (int, error)
	// Attribute returns the named attribute of the first match. ok is false
	// when the attribute is absent.
	Attribute(ctx context.Context, selector, name string) (value string, ok bool, err error)
	Text(ctx context.Context, selector string) (string, error)
	// Progress reads value and max of the first progress element matched.
	Progress(ctx context.Context, selector string) (value, max int64, err error)
	// Folders lists the folder entries currently in view, in row order.
	Folders(ctx context.Context) ([]FolderEntry, error)
	// Items returns the descriptive text and size text of every listing row.
	Items(ctx context.Context) ([]RawItem, error)
	// OnResponse registers fn for every completed network response.
	OnResponse(fn func(Response))
	// Screenshot captures the visible viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// FolderEntry is a folder row in the current listing view.
type FolderEntry struct {
	Name string
	// Selector addresses the clickable cell of the row.
	Selector string
}

// RawItem is one listing row before parsing.
type RawItem struct {
	// Info reads "Folder - <name>" or "File - <mime> - <name>".
	Info     string
	SizeText string
}

// Response is a completed network response observed by a page.
type Response struct {
	URL    string
	Status int
	// Body fetches the response body. It may fail when the browser already
	// evicted it.
	Body func(ctx context.Context) ([]byte, error)
}

// OK reports a 2xx status.
func (r Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// race waits for every selector concurrently, each bounded by timeout, and
// returns the index of the first one to appear. It returns -1 when none
// appeared. Losing waits are cancelled.
func race(ctx context.Context, page Page, timeout time.Duration, selectors ...string) int {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan int, len(selectors))
	for i, sel := range selectors {
		go func(i int, sel string) {
			if err := page.WaitFor(rctx, sel, timeout); err != nil {
				results <- -1
				return
			}
			results <- i
		}(i, sel)
	}

	for range selectors {
		if idx := <-results; idx >= 0 {
			return idx
		}
	}
	return -1
}
