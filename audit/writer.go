package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Writer appends Records as JSON lines to an underlying file, one Encode call per Record
// (matching engine/recorder.go's Recorder: a json.Encoder guarded by a mutex, flushed on every
// write since os.File.Write already flushes to the OS).
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	enc    *json.Encoder
}

// Open appends to (creating if absent) the audit log at path.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Writer{f: f, enc: json.NewEncoder(f)}, nil
}

// NewWriter wraps an arbitrary io.Writer (e.g. a test buffer) as an audit Writer without opening a
// file. Close is then a no-op.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write appends one Record. Safe for concurrent use across targets in the same run (spec §5:
// "within one run, audit records for a single target appear in attempt order" — callers are
// responsible for calling Write in attempt order per target; Write itself only serializes disk
// access across targets).
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Close closes the underlying file, if Open was used to create this Writer.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	return w.f.Close()
}
