// Package cachestore persists tables as parquet artifacts, one file per
// name. The same store backs both the source cache (cache/<name>.parquet)
// and the fact artifacts (facts/<name>.parquet).
//
// Operations are whole-table replace. Writes go to a temp file that is
// renamed into place, so a concurrent reader never sees a partial artifact.
package cachestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/vk/factbuild/internal/table"
)

// SourceDir and FactDir are the artifact directories under the data root.
const (
	SourceDir = "cache"
	FactDir   = "facts"
)

// emptyCol marks artifacts written from a table with no columns at all, so
// the round trip can reconstruct an empty table instead of failing.
const emptyCol = "__empty__"

// MissError reports a read of an artifact that does not exist. Callers
// guard reads with Exists, so this surfacing to a user means a bug or a
// file deleted midway through a run.
type MissError struct {
	Name string
	Path string
}

func (e *MissError) Error() string {
	return fmt.Sprintf("no cached artifact for %q at %s", e.Name, e.Path)
}

// Store reads and writes parquet artifacts under one directory.
type Store struct {
	dir string
}

// New returns a store writing to dataRoot/dir.
func New(dataRoot, dir string) *Store {
	return &Store{dir: filepath.Join(dataRoot, dir)}
}

// Path returns the artifact path for a name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".parquet")
}

// Exists reports whether an artifact is present for the name.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Remove deletes the artifact for a name, if present.
func (s *Store) Remove(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing artifact for %q: %w", name, err)
	}
	return nil
}

// Write serializes the table, replacing any prior artifact for the name.
func (s *Store) Write(name string, t *table.Table) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact dir: %w", err)
	}

	cols := t.Columns()
	if len(cols) == 0 {
		cols = []string{emptyCol}
	}
	kinds := inferKinds(t, cols)
	schema := buildSchema(name, cols, kinds)

	tmp := s.Path(name) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating artifact for %q: %w", name, err)
	}

	w := parquet.NewGenericWriter[map[string]any](f, schema)
	for i := 0; i < t.NumRows(); i++ {
		row := encodeRow(t.Row(i), cols, kinds)
		if _, err := w.Write([]map[string]any{row}); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("writing artifact for %q: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("finalizing artifact for %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing artifact for %q: %w", name, err)
	}
	if err := os.Rename(tmp, s.Path(name)); err != nil {
		return fmt.Errorf("replacing artifact for %q: %w", name, err)
	}
	return nil
}

// Read deserializes the artifact for the name.
func (s *Store) Read(name string) (*table.Table, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissError{Name: name, Path: s.Path(name)}
		}
		return nil, fmt.Errorf("opening artifact for %q: %w", name, err)
	}
	defer f.Close()

	r := parquet.NewGenericReader[map[string]any](f)
	defer r.Close()

	cols := make([]string, 0, len(r.Schema().Fields()))
	for _, field := range r.Schema().Fields() {
		cols = append(cols, field.Name())
	}
	if len(cols) == 1 && cols[0] == emptyCol {
		return table.New(), nil
	}

	t := table.New(cols...)
	buf := make([]map[string]any, 64)
	for {
		for i := range buf {
			buf[i] = make(map[string]any, len(cols))
		}
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			t.AppendRow(decodeRow(buf[i]))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading artifact for %q: %w", name, err)
		}
		if n == 0 {
			break
		}
	}
	return t, nil
}

// Shape reads only the artifact metadata and returns (rows, cols). Used by
// the inspect mode to report on caches without materializing them.
func (s *Store) Shape(name string) (int64, int, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, &MissError{Name: name, Path: s.Path(name)}
		}
		return 0, 0, fmt.Errorf("opening artifact for %q: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("stat artifact for %q: %w", name, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return 0, 0, fmt.Errorf("parsing artifact for %q: %w", name, err)
	}
	ncols := len(pf.Schema().Fields())
	if ncols == 1 && pf.Schema().Fields()[0].Name() == emptyCol {
		ncols = 0
	}
	return pf.NumRows(), ncols, nil
}
