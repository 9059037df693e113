// Package buildlog maintains the append-only audit trail of rebuild
// attempts at _meta/_build_log.csv. Rows are only ever appended, never
// rewritten, so the log doubles as a history of the model.
package buildlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jszwec/csvutil"
)

// Build statuses recorded in the log.
const (
	StatusRebuilt = "rebuilt"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Entry is one build log row.
type Entry struct {
	Timestamp string  `csv:"timestamp"`
	Table     string  `csv:"table_name"`
	Status    string  `csv:"status"`
	Rows      int     `csv:"rows"`
	Elapsed   float64 `csv:"elapsed_seconds"`
}

// Logger appends entries to the build log under one data root.
type Logger struct {
	path string
}

// New returns a logger for the data root.
func New(dataRoot string) *Logger {
	return &Logger{path: filepath.Join(dataRoot, "_meta", "_build_log.csv")}
}

// Append writes one entry, creating the file (and header) on first use.
// An empty Timestamp is filled with the current time.
func (l *Logger) Append(e Entry) error {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().Format(time.RFC3339)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating _meta dir: %w", err)
	}
	existing, err := os.Stat(l.path)
	newFile := err != nil || existing.Size() == 0

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening build log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = newFile
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("appending build log entry: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing build log: %w", err)
	}
	return nil
}

// Entries reads the whole log back. A missing log reads as empty.
func (l *Logger) Entries() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading build log: %w", err)
	}
	var entries []Entry
	if err := csvutil.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding build log: %w", err)
	}
	return entries, nil
}
