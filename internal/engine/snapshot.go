package engine

import (
	"context"
	"errors"
	"time"

	"github.com/dgnsrekt/pdown/internal/share"
)

const snapshotTimeout = 5 * time.Second

// SnapshotSink stores failure screenshots.
type SnapshotSink interface {
	SaveFailure(shareID, code, message string, png []byte) error
}

// captureFailure screenshots page when a share task ends with err. The
// capture runs on its own deadline because ctx may already be expired by the
// time the task gave up.
func (e *Engine) captureFailure(ctx context.Context, page Page, t share.Target, err error) {
	if e.snapshots == nil || err == nil || errors.Is(err, context.Canceled) {
		return
	}
	logger := e.logger.With("share_id", t.ID)
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()

	png, shotErr := page.Screenshot(sctx)
	if shotErr != nil {
		logger.Debug("failure screenshot unavailable", "error", shotErr)
		return
	}
	code := CodeOf(err)
	if saveErr := e.snapshots.SaveFailure(t.ID, code, err.Error(), png); saveErr != nil {
		logger.Warn("failure screenshot not saved", "error", saveErr)
		return
	}
	logger.Debug("failure screenshot saved", "code", code, "size", len(png))
}
