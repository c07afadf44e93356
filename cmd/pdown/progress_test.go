package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/pdown/internal/events"
)

const shareID = "ABCDEFGHIJ#KLMNOPQRSTUV"

func float(v float64) *float64 { return &v }

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func TestProgressPrinterLifecycle(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, runOptions{}, newPalette())
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return start }

	p.handle(events.Event{Type: events.DownloadStart, ShareID: shareID, Filename: "backup.zip", Size: 2048})
	p.handle(events.Event{Type: events.DownloadProgress, ShareID: shareID, Filename: "backup.zip", Progress: 1024, Size: 2048, Speed: float(512)})
	// Throttled: arrives within the same interval as the first progress line.
	p.handle(events.Event{Type: events.DownloadProgress, ShareID: shareID, Filename: "backup.zip", Progress: 1536, Size: 2048})
	p.handle(events.Event{Type: events.DownloadComplete, ShareID: shareID, Filename: "backup.zip", Size: 2048, AverageSpeed: float(1024)})

	lines := nonEmptyLines(buf.String())
	if len(lines) != 3 {
		t.Fatalf("lines = %q; want start, one progress and complete", lines)
	}
	if !strings.Contains(lines[0], "0%") || !strings.Contains(lines[0], "0B / 2048B") {
		t.Fatalf("start line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "50%") || !strings.Contains(lines[1], "512B/s") {
		t.Fatalf("progress line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "100%") || !strings.Contains(lines[2], "1024B/s (average)") {
		t.Fatalf("complete line = %q", lines[2])
	}
	if !strings.HasPrefix(lines[0], "backup.zip ") {
		t.Fatalf("filename column missing: %q", lines[0])
	}
}

func TestProgressPrinterAverageFallsBackToElapsed(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, runOptions{}, newPalette())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.handle(events.Event{Type: events.DownloadStart, ShareID: shareID, Filename: "f.bin", Size: 4000})
	now = now.Add(2 * time.Second)
	p.handle(events.Event{Type: events.DownloadComplete, ShareID: shareID, Filename: "f.bin", Size: 4000})

	if !strings.Contains(buf.String(), "2000B/s (average)") {
		t.Fatalf("output = %q; want 2000B/s average", buf.String())
	}
}

func TestProgressPrinterIgnoresUnstartedShares(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, runOptions{}, newPalette())

	p.handle(events.Event{Type: events.DownloadProgress, ShareID: shareID, Progress: 1, Size: 2})
	p.handle(events.Event{Type: events.DownloadComplete, ShareID: shareID, Size: 2})
	if buf.Len() != 0 {
		t.Fatalf("output = %q; want nothing", buf.String())
	}
}

func TestProgressPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, runOptions{json: true}, newPalette())

	p.handle(events.Event{Type: events.LoadStart})
	p.handle(events.Event{Type: events.DownloadStart, ShareID: shareID, Filename: "a.txt", Size: 3})
	p.handle(events.Event{Type: events.DownloadComplete, ShareID: shareID, Filename: "a.txt", Size: 3})

	lines := nonEmptyLines(buf.String())
	if len(lines) != 2 {
		t.Fatalf("lines = %q; want 2 JSON events", lines)
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["event"] != "downloadstart" || first["shareID"] != shareID || first["filename"] != "a.txt" {
		t.Fatalf("first event = %v", first)
	}
}

func TestProgressPrinterQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, runOptions{quiet: true}, newPalette())
	p.handle(events.Event{Type: events.LoadStart})
	p.handle(events.Event{Type: events.DownloadStart, ShareID: shareID, Size: 3})
	if buf.Len() != 0 {
		t.Fatalf("output = %q; want nothing in quiet mode", buf.String())
	}
}

func TestProgressPrinterFollow(t *testing.T) {
	var buf bytes.Buffer
	bus := events.NewBus()
	p := newProgressPrinter(&buf, runOptions{json: true}, newPalette())

	stop := p.follow(bus)
	bus.Publish(events.Event{Type: events.DownloadStart, ShareID: shareID, Filename: "a.txt", Size: 3})
	stop()
	stop()

	if !strings.Contains(buf.String(), `"downloadstart"`) {
		t.Fatalf("output = %q; want downloadstart event", buf.String())
	}
	if bus.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() = %d; want 0", bus.SubscriberCount())
	}
}
