package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/pdown/internal/share"
)

const bodyFetchTimeout = 10 * time.Second

// ResponseKind classifies a network response seen while a share loads.
type ResponseKind int

const (
	ResponseIgnored ResponseKind = iota
	ResponseShareInfo
	ResponseFolderListing
	ResponseInvalidPassword
	ResponseShareNotFound
)

// Correlator watches web API traffic for one share and captures its
// metadata. It is ready once the share info says the share is a file, or
// once both the share info and the first folder listing have arrived.
type Correlator struct {
	shareID    string
	shareInfo  string
	folderBase string
	logger     *slog.Logger

	mu       sync.Mutex
	info     *share.InfoResponse
	listing  *share.FolderResponse
	listings int
	readyCh  chan struct{}
	ready    bool
	errCh    chan struct{}
	err      error
}

// NewCorrelator builds a correlator for target t on the web origin baseURL.
func NewCorrelator(baseURL string, t share.Target, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	path := "/api/drive/urls/" + t.Token
	return &Correlator{
		shareID:    t.ID,
		shareInfo:  path,
		folderBase: strings.TrimRight(baseURL, "/") + path + "/folders",
		logger:     logger.With("share_id", t.ID),
		readyCh:    make(chan struct{}),
		errCh:      make(chan struct{}),
	}
}

// Classify maps a response URL and status to its kind.
func (c *Correlator) Classify(rawURL string, status int) ResponseKind {
	u := rawURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if status == http.StatusUnprocessableEntity {
		switch {
		case strings.HasSuffix(u, c.shareInfo+"/info"):
			return ResponseShareNotFound
		case strings.HasSuffix(u, c.shareInfo+"/auth"):
			return ResponseInvalidPassword
		}
		return ResponseIgnored
	}
	switch {
	case strings.HasSuffix(u, c.shareInfo):
		return ResponseShareInfo
	case strings.HasPrefix(rawURL, c.folderBase):
		return ResponseFolderListing
	}
	return ResponseIgnored
}

// Handle consumes one response. It is safe for concurrent use.
func (c *Correlator) Handle(resp Response) {
	kind := c.Classify(resp.URL, resp.Status)
	switch kind {
	case ResponseIgnored:
		return
	case ResponseShareNotFound:
		c.fail(shareError(CodeShareNotFound, c.shareID, "share not found or invalid URL", nil))
		return
	case ResponseInvalidPassword:
		c.fail(shareError(CodeInvalidPassword, c.shareID, "invalid password (API)", nil))
		return
	}
	if !resp.OK() {
		c.logger.Debug("ignoring failed api response", "url", resp.URL, "status", resp.Status)
		return
	}
	if resp.Body == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bodyFetchTimeout)
	defer cancel()
	body, err := resp.Body(ctx)
	if err != nil {
		c.logger.Debug("response body unavailable", "url", resp.URL, "error", err)
		return
	}

	switch kind {
	case ResponseShareInfo:
		var info share.InfoResponse
		if err := json.Unmarshal(body, &info); err != nil {
			c.logger.Debug("undecodable share info", "url", resp.URL, "error", err, bodyAttr(body))
			c.fail(shareError(CodeEvalFailure, c.shareID, "failed to process share info API response", err))
			return
		}
		c.setShareInfo(info)
	case ResponseFolderListing:
		var listing share.FolderResponse
		if err := json.Unmarshal(body, &listing); err != nil {
			c.logger.Debug("undecodable folder listing", "url", resp.URL, "error", err, bodyAttr(body))
			return
		}
		c.setFolderInfo(listing)
	}
}

func (c *Correlator) setShareInfo(info share.InfoResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info != nil {
		return
	}
	c.info = &info
	c.logger.Debug("share info captured", "mime_type", info.Token.MIMEType, "size", info.Token.Size)
	if !share.IsFolderMIME(info.Token.MIMEType) || c.listing != nil {
		c.markReadyLocked()
	}
}

func (c *Correlator) setFolderInfo(listing share.FolderResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings++
	if c.listing != nil {
		return
	}
	c.listing = &listing
	folders, files := share.CountLinks(listing.Links)
	c.logger.Debug("folder listing captured", "folders", folders, "files", files)
	if c.info != nil {
		c.markReadyLocked()
	}
}

func (c *Correlator) markReadyLocked() {
	if !c.ready {
		c.ready = true
		close(c.readyCh)
	}
}

func (c *Correlator) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.errCh)
}

// Wait blocks until the share metadata is complete, an API error was seen,
// timeout elapses or ctx is done.
func (c *Correlator) Wait(ctx context.Context, timeout time.Duration) (share.Metadata, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.readyCh:
		meta, _ := c.Metadata()
		return meta, nil
	case <-c.errCh:
		c.mu.Lock()
		defer c.mu.Unlock()
		return share.Metadata{}, c.err
	case <-timer.C:
		return share.Metadata{}, shareError(CodeTimeout, c.shareID, "share API responses not observed", nil)
	case <-ctx.Done():
		return share.Metadata{}, ctx.Err()
	}
}

// Metadata returns the captured metadata. ok is false until ready.
func (c *Correlator) Metadata() (share.Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return share.Metadata{}, false
	}
	meta := share.Metadata{
		MIMEType: c.info.Token.MIMEType,
		Size:     c.info.Token.Size,
		IsFolder: share.IsFolderMIME(c.info.Token.MIMEType),
	}
	if c.listing != nil {
		meta.Listing = append([]share.Link(nil), c.listing.Links...)
	}
	return meta, true
}

// Listings returns how many folder listing responses were observed.
func (c *Correlator) Listings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listings
}
