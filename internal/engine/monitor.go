package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/pdown/internal/events"
	"github.com/dgnsrekt/pdown/internal/share"
)

const unknownFilename = "Unknown Filename"

// DownloadState is the latest observation of an in-progress transfer.
type DownloadState struct {
	ShareID   string
	Filename  string
	Progress  int64
	Total     int64
	Speed     *float64
	StartedAt time.Time
	started   bool
}

// averageSpeed returns bytes per second since the start event, or nil when no
// start was observed.
func (s *DownloadState) averageSpeed(now time.Time) *float64 {
	if !s.started || s.Total <= 0 {
		return nil
	}
	elapsed := now.Sub(s.StartedAt).Seconds()
	if elapsed <= 0 {
		return nil
	}
	avg := float64(s.Total) / elapsed
	return &avg
}

// MonitorDownload polls the transfer manager until the download finishes and
// publishes start, progress and completion events. done is an optional
// browser-level completion signal.
func (e *Engine) MonitorDownload(ctx context.Context, page Page, shareID string, done <-chan struct{}) error {
	logger := e.logger.With("share_id", shareID)

	if err := page.WaitFor(ctx, e.loc.DownloadItem, e.timings.DownloadStart); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return shareError(CodeDownloadNotStarted, shareID, "download did not start", err)
	}

	state := &DownloadState{ShareID: shareID}
	ticker := time.NewTicker(e.timings.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			logger.Debug("browser reported download completed")
			e.completeDownload(state)
			return nil
		case <-ticker.C:
			finished, err := e.pollDownload(ctx, page, state, logger)
			if err != nil {
				logger.Debug("download monitor poll error", "error", err)
				continue
			}
			if finished {
				e.completeDownload(state)
				return nil
			}
		}
	}
}

// pollDownload reads the transfer manager once. It reports whether the
// transfer has finished. Unreadable fields fall back to defaults.
func (e *Engine) pollDownload(ctx context.Context, page Page, state *DownloadState, logger *slog.Logger) (bool, error) {
	n, err := page.Count(ctx, e.loc.DownloadItem)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return true, nil
	}

	filename, ok, err := page.Attribute(ctx, e.loc.DownloadFilename, "aria-label")
	if err != nil {
		logger.Debug("reading download filename failed", "error", err)
	}
	if err != nil || !ok || filename == "" {
		filename = unknownFilename
	}
	progress, total, err := page.Progress(ctx, e.loc.DownloadProgress)
	if err != nil {
		logger.Debug("reading download progress failed", "error", err)
		progress, total = 0, 0
	}
	var speed *float64
	text, err := page.Text(ctx, e.loc.DownloadSpeed)
	if err != nil {
		logger.Debug("reading download speed failed", "error", err)
	} else if v, ok := share.ParseSpeed(text); ok {
		speed = &v
	}

	state.Filename = filename
	state.Progress = progress
	state.Total = total
	state.Speed = speed

	if !state.started {
		state.started = true
		state.StartedAt = time.Now()
		e.bus.Publish(events.Event{
			Type:     events.DownloadStart,
			ShareID:  state.ShareID,
			Filename: filename,
			Size:     total,
		})
	}
	e.bus.Publish(events.Event{
		Type:     events.DownloadProgress,
		ShareID:  state.ShareID,
		Filename: filename,
		Progress: progress,
		Size:     total,
		Speed:    speed,
	})

	return total > 0 && progress >= total, nil
}

func (e *Engine) completeDownload(state *DownloadState) {
	e.bus.Publish(events.Event{
		Type:         events.DownloadComplete,
		ShareID:      state.ShareID,
		Filename:     state.Filename,
		Size:         state.Total,
		AverageSpeed: state.averageSpeed(time.Now()),
	})
}
