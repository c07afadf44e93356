package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/pdown/internal/events"
	"golang.org/x/time/rate"
)

const (
	filenameWidth    = 20
	barWidth         = 30
	progressInterval = time.Second
)

// progressPrinter renders engine events for the terminal, or as JSON lines
// in --json mode. It is driven by a single goroutine.
type progressPrinter struct {
	out     io.Writer
	opts    runOptions
	palette palette
	now     func() time.Time

	throttle map[string]*rate.Sometimes
	started  map[string]time.Time
}

func newProgressPrinter(out io.Writer, opts runOptions, p palette) *progressPrinter {
	return &progressPrinter{
		out:      out,
		opts:     opts,
		palette:  p,
		now:      time.Now,
		throttle: make(map[string]*rate.Sometimes),
		started:  make(map[string]time.Time),
	}
}

// follow renders events from bus until stop is called. stop waits until
// every event received so far has been rendered.
func (p *progressPrinter) follow(bus *events.Bus) (stop func()) {
	id, ch := bus.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for evt := range ch {
			p.handle(evt)
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			bus.Unsubscribe(id)
			wg.Wait()
		})
	}
}

func (p *progressPrinter) handle(evt events.Event) {
	if p.opts.json {
		if evt.Type == events.LoadStart || evt.Type == events.LoadComplete {
			return
		}
		data, err := json.Marshal(evt)
		if err != nil {
			return
		}
		fmt.Fprintln(p.out, string(data))
		return
	}
	if p.opts.quiet {
		return
	}

	switch evt.Type {
	case events.LoadStart:
		if !p.opts.debug {
			fmt.Fprintln(p.out, p.palette.muted.Render("Loading shares..."))
		}
	case events.LoadComplete:
		if evt.ShareID != "" {
			fmt.Fprintln(p.out, p.palette.muted.Render("Opened "+evt.ShareID))
		}
	case events.DownloadStart:
		if _, ok := p.started[evt.ShareID]; ok {
			return
		}
		p.started[evt.ShareID] = p.now()
		p.throttle[evt.ShareID] = &rate.Sometimes{Interval: progressInterval}
		fmt.Fprintln(p.out, p.line(evt.Filename, 0, evt.Size, "0B/s"))
	case events.DownloadProgress:
		s, ok := p.throttle[evt.ShareID]
		if !ok {
			return
		}
		speed := "N/A"
		if evt.Speed != nil {
			speed = formatSpeed(*evt.Speed, p.opts.size)
		}
		s.Do(func() {
			fmt.Fprintln(p.out, p.line(evt.Filename, evt.Progress, evt.Size, speed))
		})
	case events.DownloadComplete:
		start, ok := p.started[evt.ShareID]
		if !ok {
			return
		}
		delete(p.started, evt.ShareID)
		delete(p.throttle, evt.ShareID)

		avg := 0.0
		if evt.AverageSpeed != nil {
			avg = *evt.AverageSpeed
		} else if secs := p.now().Sub(start).Seconds(); secs > 0 {
			avg = float64(evt.Size) / secs
		}
		speed := formatSpeed(avg, p.opts.size) + " (average)"
		fmt.Fprintln(p.out, p.line(evt.Filename, evt.Size, evt.Size, speed))
	}
}

// line renders "name |bar| pct% | done / total | speed".
func (p *progressPrinter) line(filename string, progress, total int64, speed string) string {
	if filename == "" {
		filename = "Unknown Filename"
	}
	pct := 0
	if total > 0 {
		pct = int(progress * 100 / total)
		if pct > 100 {
			pct = 100
		}
	}
	filled := pct * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("%s |%s| %d%% | %s | %s",
		formatFilename(filename, filenameWidth),
		p.palette.bar.Render(bar),
		pct,
		formatProgress(progress, total, p.opts.size),
		speed,
	)
}
