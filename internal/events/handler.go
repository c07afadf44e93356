package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// SSEHandler streams bus events as server-sent events. Clients may filter
// by event type via ?types=downloadprogress,downloadcomplete and by share
// via ?share=<id>.
func SSEHandler(bus *Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		var typeFilter map[Type]bool
		if q := r.URL.Query().Get("types"); q != "" {
			typeFilter = make(map[Type]bool)
			for _, f := range strings.Split(q, ",") {
				if f = strings.TrimSpace(f); f != "" {
					typeFilter[Type(f)] = true
				}
			}
		}
		shareFilter := r.URL.Query().Get("share")

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := bus.Subscribe()
		defer bus.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if typeFilter != nil && !typeFilter[evt.Type] {
					continue
				}
				if shareFilter != "" && evt.ShareID != "" && evt.ShareID != shareFilter {
					continue
				}
				payload, err := json.Marshal(evt)
				if err != nil {
					slog.Debug("sse marshal failed", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
				flusher.Flush()
			}
		}
	}
}
