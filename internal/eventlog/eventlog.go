// Package eventlog is the stand-in for the host runtime's instrumentation
// hook (spec.md §1's "SCRIPT" collaborator is out of scope for this
// repository). Rather than embedding inside an interpreter, vprof consumes
// a recorded line-delimited JSON event log: one line per call/c_call/
// return/c_return/exception event, in the order the runtime produced
// them. cmd/vprofile replays such a log through internal/profiler exactly
// as a live instrumentation hook would feed it events.
//
// Adapted from the teacher's internal/trace package: same rotating
// lumberjack sink and same line-delimited JSON record shape, generalized
// from free-form trace events to the five fixed profiler event kinds.
package eventlog

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Record is one serialized profiler event.
type Record struct {
	Kind      string `json:"kind"`
	Tick      int64  `json:"tick"`
	Module    string `json:"module,omitempty"`
	Name      string `json:"name,omitempty"`
	Line      int    `json:"line,omitempty"`
	IsBuiltin bool   `json:"is_builtin,omitempty"`
	CtxID     int64  `json:"ctx_id,omitempty"`
	Tag       int64  `json:"tag,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Writer appends Records as line-delimited JSON, optionally rotating via
// lumberjack when writing to a file.
type Writer struct {
	mu     sync.Mutex
	sink   io.Writer
	logger *lumberjack.Logger
}

// NewFileWriter opens (creating/rotating as needed) path for event log
// output, capped at maxSizeMB per file with 5 compressed backups
// retained — the same rotation policy the teacher's trace system used.
func NewFileWriter(path string, maxSizeMB int) *Writer {
	logger := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 5,
		Compress:   true,
	}
	return &Writer{sink: logger, logger: logger}
}

// NewWriter wraps an arbitrary io.Writer (e.g. os.Stdout in tests).
func NewWriter(w io.Writer) *Writer {
	return &Writer{sink: w}
}

// Write serializes rec as one JSON line.
func (w *Writer) Write(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.sink.Write(append(data, '\n'))
	return err
}

// Close flushes and closes the underlying log file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		return w.logger.Close()
	}
	return nil
}

// Reader streams Records from a line-delimited JSON event log, in the
// order they were recorded, for replay through internal/profiler.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r for record-at-a-time iteration.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &Reader{scanner: scanner}
}

// OpenFile opens path and wraps it in a Reader. The caller is responsible
// for closing the returned *os.File once done.
func OpenFile(path string) (*Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return NewReader(f), f, nil
}

// Next reads the next Record, returning (rec, true) or (Record{}, false)
// at end of stream. A malformed line is skipped rather than aborting the
// whole replay, since a partially-written trailing line is common when a
// log file was truncated mid-rotation.
func (r *Reader) Next() (Record, bool) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		return rec, true
	}
	return Record{}, false
}
