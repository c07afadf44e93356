package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/pdown/internal/share"
)

var (
	folderItemPattern = regexp.MustCompile(`^Folder - (.+)$`)
	fileItemPattern   = regexp.MustCompile(`^File - ([^-]+) - (.+)$`)
)

// parseItem turns a listing row into a FileInfo. Folders come back
// unexpanded. Files whose size text cannot be read get size 0.
func parseItem(shareID string, raw RawItem, logger *slog.Logger) (share.FileInfo, error) {
	info := strings.TrimSpace(raw.Info)
	if m := folderItemPattern.FindStringSubmatch(info); m != nil {
		return share.NewFolder(strings.TrimSpace(m[1]), nil), nil
	}
	if m := fileItemPattern.FindStringSubmatch(info); m != nil {
		name := strings.TrimSpace(m[2])
		size, ok := share.ParseSize(raw.SizeText)
		if !ok {
			logger.Debug("unreadable size, recording 0", "name", name, "size_text", raw.SizeText)
		}
		return share.NewFile(name, strings.TrimSpace(m[1]), size), nil
	}
	return share.FileInfo{}, shareError(CodeMalformedItem, shareID, fmt.Sprintf("invalid item format: %s", info), nil)
}

// treeBuilder assembles per-folder row snapshots into one tree. Children
// slices are never appended to once assigned, so node pointers stay valid.
type treeBuilder struct {
	shareID string
	logger  *slog.Logger
	root    []share.FileInfo
	nodes   map[string]*share.FileInfo
}

func newTreeBuilder(shareID string, logger *slog.Logger) *treeBuilder {
	return &treeBuilder{
		shareID: shareID,
		logger:  logger,
		root:    []share.FileInfo{},
		nodes:   make(map[string]*share.FileInfo),
	}
}

// add attaches the items seen at path. Items for a folder whose node is
// unknown are logged and dropped.
func (b *treeBuilder) add(path []string, items []share.FileInfo) {
	key := pathKey(path)
	if len(path) == 0 {
		b.root = items
		for i := range b.root {
			b.nodes[b.root[i].Name] = &b.root[i]
		}
		return
	}
	parent, ok := b.nodes[key]
	if !ok || !parent.IsFolder() {
		b.logger.Warn("parent folder not found, dropping items", "path", key, "items", len(items))
		return
	}
	parent.Children = items
	for i := range parent.Children {
		b.nodes[key+"/"+parent.Children[i].Name] = &parent.Children[i]
	}
}

func (b *treeBuilder) build(rootName string) share.FileInfo {
	return share.NewFolder(rootName, b.root)
}

func (e *Engine) readItems(ctx context.Context, page Page, shareID string) ([]share.FileInfo, error) {
	rows, err := page.Items(ctx)
	if err != nil {
		return nil, shareError(CodeEvalFailure, shareID, "listing rows unreadable", err)
	}
	items := make([]share.FileInfo, 0, len(rows))
	for _, r := range rows {
		item, err := parseItem(shareID, r, e.logger)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (e *Engine) listShare(ctx context.Context, sess Session, t share.Target, recursive bool) (_ ListResult, err error) {
	logger := e.logger.With("share_id", t.ID)

	page, err := sess.NewPage(ctx)
	if err != nil {
		return ListResult{}, err
	}
	defer page.Close()
	defer func() { e.captureFailure(ctx, page, t, err) }()

	corr := NewCorrelator(e.baseURL, t, e.logger)
	page.OnResponse(corr.Handle)

	logger.Debug("handling page load and waiting for API")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.LoadShare(gctx, page, t) })
	g.Go(func() error {
		_, err := corr.Wait(gctx, e.timings.APIWait)
		return err
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, err
	}
	meta, ok := corr.Metadata()
	if !ok {
		return ListResult{}, shareError(CodeEvalFailure, t.ID, "failed to process share info API response", nil)
	}

	var files share.FileInfo
	if meta.IsFolder {
		files, err = e.listFolder(ctx, page, t, meta, recursive)
	} else {
		files, err = e.listFile(ctx, page, t, meta)
	}
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{URL: t.URL, Files: files}, nil
}

func (e *Engine) listFolder(ctx context.Context, page Page, t share.Target, meta share.Metadata, recursive bool) (share.FileInfo, error) {
	logger := e.logger.With("share_id", t.ID)
	tree := newTreeBuilder(t.ID, logger)

	err := e.Crawl(ctx, page, t, NewCrawlState(), recursive, func(ctx context.Context, path []string) error {
		logger.Debug("crawling folder", "path", pathKey(path))
		items, err := e.readItems(ctx, page, t.ID)
		if err != nil {
			return err
		}
		logger.Debug("extracted items from current view", "path", pathKey(path), "count", len(items))
		if len(path) == 0 {
			e.validateRoot(logger, meta, items)
		}
		tree.add(path, items)
		return nil
	})
	if err != nil {
		return share.FileInfo{}, err
	}

	name, err := page.Text(ctx, e.loc.RootFolderBreadcrumb)
	if err != nil {
		return share.FileInfo{}, shareError(CodeEvalFailure, t.ID, "root folder name unreadable", err)
	}
	return tree.build(strings.TrimSpace(name)), nil
}

// validateRoot compares the root rows with the captured API listing. Names
// in the API payload are encrypted, so only the counts are comparable.
func (e *Engine) validateRoot(logger *slog.Logger, meta share.Metadata, items []share.FileInfo) {
	if meta.Listing == nil {
		return
	}
	apiFolders, apiFiles := share.CountLinks(meta.Listing)
	var domFolders, domFiles int
	for _, it := range items {
		if it.IsFolder() {
			domFolders++
		} else {
			domFiles++
		}
	}
	if apiFolders != domFolders || apiFiles != domFiles {
		logger.Warn("listing differs from API response",
			"api_folders", apiFolders, "api_files", apiFiles,
			"dom_folders", domFolders, "dom_files", domFiles)
	}
}

func (e *Engine) listFile(ctx context.Context, page Page, t share.Target, meta share.Metadata) (share.FileInfo, error) {
	if err := page.WaitFor(ctx, e.loc.FileShareFilename, e.timings.FilenameWait); err != nil {
		return share.FileInfo{}, shareError(CodeTimeout, t.ID, "file name not found", err)
	}
	name, _, err := page.Attribute(ctx, e.loc.FileShareFilename, "aria-label")
	if err != nil {
		return share.FileInfo{}, shareError(CodeEvalFailure, t.ID, "file name unreadable", err)
	}
	return share.NewFile(name, meta.MIMEType, meta.Size), nil
}
