package storage

import (
	"log/slog"
	"sync"
	"time"
)

// WriterRegistry manages one JSONLWriter per directory segment, so each
// share's events land in their own file.
type WriterRegistry struct {
	baseDir    string
	name       string
	maxSizeMB  int
	bufferSize int
	now        func() time.Time

	writers map[string]*JSONLWriter
	mu      sync.RWMutex
}

// NewWriterRegistry creates a registry writing
// <baseDir>/<date>/<segment>/<name>.jsonl files.
func NewWriterRegistry(baseDir, name string, bufferSize, maxSizeMB int) *WriterRegistry {
	return &WriterRegistry{
		baseDir:    baseDir,
		name:       name,
		maxSizeMB:  maxSizeMB,
		bufferSize: bufferSize,
		now:        time.Now,
		writers:    make(map[string]*JSONLWriter),
	}
}

// Writer returns (or creates) the writer for segment.
func (r *WriterRegistry) Writer(segment string) *JSONLWriter {
	r.mu.RLock()
	if w, ok := r.writers[segment]; ok {
		r.mu.RUnlock()
		return w
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.writers[segment]; ok {
		return w
	}

	w := NewJSONLWriter(r.baseDir, segment, r.name, r.bufferSize, r.maxSizeMB)
	w.mu.Lock()
	w.now = r.now
	w.mu.Unlock()
	r.writers[segment] = w

	slog.Debug("created jsonl writer", "segment", segment)
	return w
}

// Close closes all managed writers and returns the last error seen.
func (r *WriterRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for segment, w := range r.writers {
		if err := w.Close(); err != nil {
			slog.Error("failed to close writer", "segment", segment, "error", err)
			lastErr = err
		}
	}
	r.writers = make(map[string]*JSONLWriter)
	return lastErr
}
