// Package freshness decides whether a source's on-disk files changed since
// the last successful load, and persists the per-source record it compares
// against (_meta/_last_loaded.json under the data root).
//
// The decision itself is a pure comparison; writing an updated record is the
// smart loader's job, after a fresh load succeeded.
package freshness

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
)

const (
	metaDir  = "_meta"
	recordFN = "_last_loaded.json"
)

// Entry is the persisted record for one source.
type Entry struct {
	// MTimes maps each absolute file path to its last observed modification
	// time in unix nanoseconds. Compared as a set of pairs, never as a list.
	MTimes map[string]int64 `json:"mtimes"`
	// CachePath is the columnar artifact the record vouches for, relative
	// to the data root.
	CachePath string `json:"parquet_path"`
	FileCount int    `json:"file_count"`
}

// Store reads and writes the per-source records.
type Store struct {
	path string
}

// NewStore returns a store rooted at dataRoot.
func NewStore(dataRoot string) *Store {
	return &Store{path: filepath.Join(dataRoot, metaDir, recordFN)}
}

// Load reads all records. A missing or unreadable record file yields an
// empty map: the worst outcome of losing the file is a full reload.
func (s *Store) Load() map[string]Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]Entry{}
	}
	var records map[string]Entry
	if err := json.Unmarshal(data, &records); err != nil {
		return map[string]Entry{}
	}
	if records == nil {
		records = map[string]Entry{}
	}
	return records
}

// Save atomically replaces the record file (temp file + rename), so a
// concurrent reader never observes a torn record.
func (s *Store) Save(records map[string]Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating %s dir: %w", metaDir, err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding freshness records: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing freshness records: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing freshness records: %w", err)
	}
	return nil
}

// Update performs a read-modify-write for a single source record.
func (s *Store) Update(name string, e Entry) error {
	records := s.Load()
	records[name] = e
	return s.Save(records)
}

// Remove deletes a single source record, if present.
func (s *Store) Remove(name string) error {
	records := s.Load()
	if _, ok := records[name]; !ok {
		return nil
	}
	delete(records, name)
	return s.Save(records)
}

// Snapshot stats every file and returns the path→mtime map that would be
// persisted on a successful load. Every file must exist; the resolver only
// hands over existing paths, so a stat failure here is a real error.
func Snapshot(files []string) (map[string]int64, error) {
	mtimes := make(map[string]int64, len(files))
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", f, err)
		}
		mtimes[f] = info.ModTime().UnixNano()
	}
	return mtimes, nil
}

// Changed reports whether the source must be reloaded: any difference in
// the file set or any timestamp (new file, removed file, touched file), or
// a missing cache artifact, invalidates the whole record.
func Changed(current map[string]int64, stored Entry, cacheExists bool) bool {
	if !cacheExists {
		return true
	}
	return !maps.Equal(current, stored.MTimes)
}
