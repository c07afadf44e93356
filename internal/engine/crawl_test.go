package engine

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/dgnsrekt/pdown/internal/events"
	"github.com/dgnsrekt/pdown/internal/locator"
	"github.com/dgnsrekt/pdown/internal/share"
)

func newTestEngine(t *testing.T, sessions SessionManager, bus *events.Bus, logOut io.Writer) *Engine {
	t.Helper()
	if sessions == nil {
		sessions = AcquireFunc(func(context.Context, SessionOptions) (Session, error) {
			return &fakeSession{}, nil
		})
	}
	if logOut == nil {
		logOut = io.Discard
	}
	e, err := New(Config{
		Sessions: sessions,
		Timings:  testTimings(),
		Bus:      bus,
		Logger:   slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func testTarget(t *testing.T) share.Target {
	t.Helper()
	target, err := share.ParseTarget("", "https://drive.proton.me/urls/ABCDEFGHIJ#KLMNOPQRSTUV")
	if err != nil {
		t.Fatalf("ParseTarget: %v", err)
	}
	return target
}

func recordVisits(visits *[][]string) VisitFunc {
	return func(ctx context.Context, path []string) error {
		*visits = append(*visits, append([]string{}, path...))
		return nil
	}
}

func TestCrawlPreOrder(t *testing.T) {
	a1 := &fakeDir{}
	a := &fakeDir{folders: []string{"A1"}, children: map[string]*fakeDir{"A1": a1}}
	b := &fakeDir{}
	root := &fakeDir{folders: []string{"A", "B"}, children: map[string]*fakeDir{"A": a, "B": b}}

	e := newTestEngine(t, nil, nil, nil)
	page := newFakePage(locator.Default(), root)

	var visits [][]string
	if err := e.Crawl(context.Background(), page, testTarget(t), NewCrawlState(), true, recordVisits(&visits)); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	want := [][]string{{}, {"A"}, {"A", "A1"}, {"B"}}
	if !reflect.DeepEqual(visits, want) {
		t.Fatalf("visits = %v; want %v", visits, want)
	}
	if len(page.stack) != 1 {
		t.Fatalf("crawl ended %d levels deep; want back at root", len(page.stack)-1)
	}
}

func TestCrawlZeroState(t *testing.T) {
	root := &fakeDir{folders: []string{"A"}, children: map[string]*fakeDir{"A": {}}}
	e := newTestEngine(t, nil, nil, nil)
	page := newFakePage(locator.Default(), root)

	state := &CrawlState{}
	var visits [][]string
	if err := e.Crawl(context.Background(), page, testTarget(t), state, true, recordVisits(&visits)); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if want := [][]string{{}, {"A"}}; !reflect.DeepEqual(visits, want) {
		t.Fatalf("visits = %v; want %v", visits, want)
	}
	if len(state.Visited) != 2 {
		t.Fatalf("visited = %v; want root and A", state.Visited)
	}
}

func TestCrawlVisitsDuplicateFoldersOnce(t *testing.T) {
	a := &fakeDir{}
	root := &fakeDir{folders: []string{"A", "A"}, children: map[string]*fakeDir{"A": a}}

	e := newTestEngine(t, nil, nil, nil)
	page := newFakePage(locator.Default(), root)
	state := NewCrawlState()

	var visits [][]string
	if err := e.Crawl(context.Background(), page, testTarget(t), state, true, recordVisits(&visits)); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	want := [][]string{{}, {"A"}}
	if !reflect.DeepEqual(visits, want) {
		t.Fatalf("visits = %v; want %v", visits, want)
	}
	opens := 0
	for _, c := range page.clicks {
		if c == folderSelectorPrefix+"A" {
			opens++
		}
	}
	if opens != 2 {
		t.Fatalf("folder A clicked %d times; want 2 (select + open)", opens)
	}
	if _, ok := state.Visited["A"]; !ok || len(state.Visited) != 2 {
		t.Fatalf("Visited = %v; want root and A", state.Visited)
	}
}

func TestCrawlNonRecursiveVisitsRootOnly(t *testing.T) {
	root := &fakeDir{folders: []string{"A"}, children: map[string]*fakeDir{"A": {}}}
	e := newTestEngine(t, nil, nil, nil)
	page := newFakePage(locator.Default(), root)

	var visits [][]string
	if err := e.Crawl(context.Background(), page, testTarget(t), NewCrawlState(), false, recordVisits(&visits)); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if want := [][]string{{}}; !reflect.DeepEqual(visits, want) {
		t.Fatalf("visits = %v; want %v", visits, want)
	}
	if len(page.clicks) != 0 {
		t.Fatalf("clicks = %v; want none", page.clicks)
	}
}

func TestCrawlSkipsVanishedFolder(t *testing.T) {
	root := &fakeDir{
		folders:  []string{"A"},
		ghosts:   []string{"Gone"},
		children: map[string]*fakeDir{"A": {}},
	}
	var logBuf bytes.Buffer
	e := newTestEngine(t, nil, nil, &logBuf)
	page := newFakePage(locator.Default(), root)

	var visits [][]string
	if err := e.Crawl(context.Background(), page, testTarget(t), NewCrawlState(), true, recordVisits(&visits)); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if want := [][]string{{}, {"A"}}; !reflect.DeepEqual(visits, want) {
		t.Fatalf("visits = %v; want %v", visits, want)
	}
	if !strings.Contains(logBuf.String(), CodeEnumerationInconsistency) {
		t.Fatalf("expected %s in logs, got %q", CodeEnumerationInconsistency, logBuf.String())
	}
}

func TestCrawlStopsOnVisitError(t *testing.T) {
	root := &fakeDir{folders: []string{"A"}, children: map[string]*fakeDir{"A": {}}}
	e := newTestEngine(t, nil, nil, nil)
	page := newFakePage(locator.Default(), root)

	boom := shareError(CodeMalformedItem, "x", "bad row", nil)
	err := e.Crawl(context.Background(), page, testTarget(t), NewCrawlState(), true, func(ctx context.Context, path []string) error {
		if len(path) == 1 {
			return boom
		}
		return nil
	})
	if !IsCode(err, CodeMalformedItem) {
		t.Fatalf("Crawl error = %v; want %s", err, CodeMalformedItem)
	}
}
