package events

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBusFansOutAndStamps(t *testing.T) {
	bus := NewBus()
	id1, ch1 := bus.Subscribe()
	_, ch2 := bus.Subscribe()

	bus.Publish(Event{Type: DownloadStart, ShareID: "abc"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Type != DownloadStart || evt.ShareID != "abc" {
				t.Fatalf("subscriber %d got %+v", i, evt)
			}
			if evt.Time.IsZero() {
				t.Fatalf("subscriber %d got unstamped event", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}

	bus.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	if got := bus.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount() = %d; want 1", got)
	}
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	bus.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufSize+10; i++ {
			bus.Publish(Event{Type: DownloadProgress})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if got := bus.Dropped(); got != 10 {
		t.Fatalf("Dropped() = %d; want 10", got)
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(Event{Type: LoadStart})
}

func TestSSEHandlerFiltersTypes(t *testing.T) {
	bus := NewBus()
	srv := httptest.NewServer(SSEHandler(bus))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?types=downloadcomplete", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	bus.Publish(Event{Type: DownloadProgress, ShareID: "x"})
	bus.Publish(Event{Type: DownloadComplete, ShareID: "x"})

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got, want := strings.TrimSpace(line), "event: downloadcomplete"; got != want {
		t.Fatalf("first event line = %q; want %q", got, want)
	}
}
