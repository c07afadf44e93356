package storage

import (
	"sync"

	"github.com/dgnsrekt/pdown/internal/events"
)

// RecordEvents writes every event published on bus to the registry, one
// file per share, until the returned stop function is called. stop waits
// for the forwarding goroutine to exit.
func RecordEvents(bus *events.Bus, reg *WriterRegistry) (stop func()) {
	id, ch := bus.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for evt := range ch {
			_ = reg.Writer(ShareSegment(evt.ShareID)).Write(evt)
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
