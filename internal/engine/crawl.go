package engine

import (
	"context"
	"strings"

	"github.com/dgnsrekt/pdown/internal/share"
)

// CrawlState tracks one share's traversal. It is owned by a single crawl.
// The zero value is ready to use.
type CrawlState struct {
	Visited map[string]struct{}
	Path    []string
}

// NewCrawlState returns an empty state positioned at the share root.
func NewCrawlState() *CrawlState {
	return &CrawlState{Visited: make(map[string]struct{})}
}

func pathKey(path []string) string { return strings.Join(path, "/") }

// mark records path as visited and reports whether it was new.
func (s *CrawlState) mark(path []string) bool {
	if s.Visited == nil {
		s.Visited = make(map[string]struct{})
	}
	key := pathKey(path)
	if _, ok := s.Visited[key]; ok {
		return false
	}
	s.Visited[key] = struct{}{}
	return true
}

// VisitFunc is called with the page showing the folder at path.
type VisitFunc func(ctx context.Context, path []string) error

// Crawl visits the share root and, when recursive, every folder below it in
// depth-first pre-order. Each folder path is entered at most once. An error
// from onVisit aborts the crawl.
func (e *Engine) Crawl(ctx context.Context, page Page, t share.Target, state *CrawlState, recursive bool, onVisit VisitFunc) error {
	state.Path = state.Path[:0]
	state.mark(nil)
	if onVisit != nil {
		if err := onVisit(ctx, nil); err != nil {
			return err
		}
	}
	return e.crawlLevel(ctx, page, t, state, recursive, onVisit)
}

func (e *Engine) crawlLevel(ctx context.Context, page Page, t share.Target, state *CrawlState, recursive bool, onVisit VisitFunc) error {
	logger := e.logger.With("share_id", t.ID)

	folders, err := page.Folders(ctx)
	if err != nil {
		return shareError(CodeEvalFailure, t.ID, "folder enumeration failed", err)
	}
	if len(folders) == 0 {
		logger.Debug("no folders found in view", "path", pathKey(state.Path))
	} else {
		names := make([]string, len(folders))
		for i, f := range folders {
			names[i] = f.Name
		}
		logger.Debug("folders in view", "path", pathKey(state.Path), "folders", strings.Join(names, ", "))
	}

	if !recursive {
		return nil
	}
	if len(state.Path) >= e.maxDepth {
		logger.Warn("max crawl depth reached, not descending", "path", pathKey(state.Path), "max_depth", e.maxDepth)
		return nil
	}

	for _, f := range folders {
		if f.Name == "" {
			continue
		}
		child := append(append([]string(nil), state.Path...), f.Name)
		if !state.mark(child) {
			logger.Debug("already visited, skipping", "path", pathKey(child))
			continue
		}
		logger.Debug("visiting folder", "path", pathKey(child))

		// Rows are re-rendered after every navigation, so the entry is
		// resolved again.
		current, err := page.Folders(ctx)
		if err != nil {
			return shareError(CodeEvalFailure, t.ID, "folder enumeration failed", err)
		}
		sel := ""
		for _, c := range current {
			if c.Name == f.Name {
				sel = c.Selector
				break
			}
		}
		if sel == "" {
			logger.Error("no element found for folder",
				"code", CodeEnumerationInconsistency, "folder", f.Name, "path", pathKey(state.Path))
			continue
		}

		if err := page.WaitFor(ctx, sel, e.timings.Locate); err != nil {
			return shareError(CodeTimeout, t.ID, "folder row not clickable: "+pathKey(child), err)
		}
		if err := page.Click(ctx, sel, 1); err != nil {
			return shareError(CodeEvalFailure, t.ID, "folder select failed: "+pathKey(child), err)
		}
		if err := page.Click(ctx, sel, 2); err != nil {
			return shareError(CodeEvalFailure, t.ID, "folder open failed: "+pathKey(child), err)
		}
		if err := sleep(ctx, e.timings.Settle); err != nil {
			return err
		}

		state.Path = child
		if onVisit != nil {
			if err := onVisit(ctx, child); err != nil {
				return err
			}
		}
		if err := e.crawlLevel(ctx, page, t, state, recursive, onVisit); err != nil {
			return err
		}

		logger.Debug("going back up one level", "path", pathKey(child))
		if err := e.goBack(ctx, page); err != nil {
			return shareError(CodeEvalFailure, t.ID, "breadcrumb navigation failed from "+pathKey(child), err)
		}
		state.Path = child[:len(child)-1]
		if err := sleep(ctx, e.timings.BackSettle); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) goBack(ctx context.Context, page Page) error {
	if err := page.WaitFor(ctx, e.loc.PreviousFolderBreadcrumb, e.timings.Locate); err != nil {
		return err
	}
	if err := page.Hover(ctx, e.loc.PreviousFolderBreadcrumb); err != nil {
		return err
	}
	return page.Click(ctx, e.loc.PreviousFolderBreadcrumb, 1)
}
