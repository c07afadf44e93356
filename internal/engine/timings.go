package engine

import (
	"context"
	"time"
)

// Timings holds every wait the engine performs. Tests shrink them.
type Timings struct {
	Navigation     time.Duration
	Challenge      time.Duration
	APIWait        time.Duration
	Settle         time.Duration
	BackSettle     time.Duration
	Locate         time.Duration
	Poll           time.Duration
	DownloadStart  time.Duration
	DownloadButton time.Duration
	FilenameWait   time.Duration
	// DownloadConfirm bounds the wait for the browser's own completion
	// signal once the transfer manager shows the file as done.
	DownloadConfirm time.Duration
	// DownloadGrace holds the session open after completion so Chrome can
	// flush the file before teardown.
	DownloadGrace time.Duration
}

// DefaultTimings returns the waits tuned against the live web app.
func DefaultTimings() Timings {
	return Timings{
		Navigation:     30 * time.Second,
		Challenge:      2500 * time.Millisecond,
		APIWait:        30 * time.Second,
		Settle:         1500 * time.Millisecond,
		BackSettle:     420 * time.Millisecond,
		Locate:         2500 * time.Millisecond,
		Poll:           500 * time.Millisecond,
		DownloadStart:  10 * time.Second,
		DownloadButton: 20 * time.Second,
		FilenameWait:   5 * time.Second,

		DownloadConfirm: 30 * time.Second,
		DownloadGrace:   time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	set := func(dst *time.Duration, def time.Duration) {
		if *dst <= 0 {
			*dst = def
		}
	}
	set(&t.Navigation, d.Navigation)
	set(&t.Challenge, d.Challenge)
	set(&t.APIWait, d.APIWait)
	set(&t.Settle, d.Settle)
	set(&t.BackSettle, d.BackSettle)
	set(&t.Locate, d.Locate)
	set(&t.Poll, d.Poll)
	set(&t.DownloadStart, d.DownloadStart)
	set(&t.DownloadButton, d.DownloadButton)
	set(&t.FilenameWait, d.FilenameWait)
	set(&t.DownloadConfirm, d.DownloadConfirm)
	set(&t.DownloadGrace, d.DownloadGrace)
	return t
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
