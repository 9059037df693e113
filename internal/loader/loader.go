// Package loader implements the smart source loader: it serves a source
// either from its parquet cache artifact or from a fresh spreadsheet parse,
// and keeps the freshness record and cache in sync after every fresh load.
package loader

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vk/factbuild/internal/cachestore"
	"github.com/vk/factbuild/internal/excel"
	"github.com/vk/factbuild/internal/freshness"
	"github.com/vk/factbuild/internal/table"
)

// memoSize bounds the in-process table memo. The model has a few dozen
// sources at most, so this is effectively "all of them".
const memoSize = 64

// StalePolicy decides what happens when a source resolves to zero files but
// a cache artifact still exists. Runs are unattended, so the decision is
// fixed at startup instead of prompted for.
type StalePolicy string

const (
	// StaleFail surfaces the inconsistency as an error. Default.
	StaleFail StalePolicy = "fail"
	// StaleDelete drops the stale artifact and freshness record.
	StaleDelete StalePolicy = "delete"
	// StaleIgnore keeps serving the cached table read-only.
	StaleIgnore StalePolicy = "ignore"
)

// ParseStalePolicy validates a policy string from flags or settings.
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch p := StalePolicy(strings.ToLower(s)); p {
	case StaleFail, StaleDelete, StaleIgnore:
		return p, nil
	}
	return "", fmt.Errorf("invalid stale-cache policy %q: must be 'fail', 'delete' or 'ignore'", s)
}

// NoFilesError reports a source that currently resolves to zero files.
// Non-fatal at the orchestrator level; fatal for any fact needing the source.
type NoFilesError struct {
	Source     string
	StaleCache string // artifact path when a stale cache made this a conflict
}

func (e *NoFilesError) Error() string {
	if e.StaleCache != "" {
		return fmt.Sprintf("source %q resolves to no files but a cache artifact remains at %s; rerun with stale-cache policy 'delete' or 'ignore' to override", e.Source, e.StaleCache)
	}
	return fmt.Sprintf("no files found for source %q", e.Source)
}

// ParseError reports a single file that failed to parse. The whole source
// load fails; partial loads are never accepted.
type ParseError struct {
	Source string
	File   string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("source %q: parsing %s: %v", e.Source, e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Result describes a completed load.
type Result struct {
	Table    *table.Table
	Reloaded bool
	Elapsed  time.Duration
}

// Loader wires the freshness store, the cache store, and an in-process
// memo together. One Loader serves a whole run (and would serve a
// long-lived dashboard process; the memo replaces its old global cache and
// is invalidated explicitly).
type Loader struct {
	records *freshness.Store
	cache   *cachestore.Store
	memo    *lru.Cache[string, *table.Table]
	policy  StalePolicy
	parse   func(path string) (*table.Table, error)
}

// New builds a loader over the given data root.
func New(dataRoot string, policy StalePolicy) *Loader {
	memo, err := lru.New[string, *table.Table](memoSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &Loader{
		records: freshness.NewStore(dataRoot),
		cache:   cachestore.New(dataRoot, cachestore.SourceDir),
		memo:    memo,
		policy:  policy,
		parse:   excel.ReadTable,
	}
}

// Invalidate drops the memoized table for one source.
func (l *Loader) Invalidate(name string) { l.memo.Remove(name) }

// InvalidateAll empties the memo.
func (l *Loader) InvalidateAll() { l.memo.Purge() }

// Load returns the table for the named source, reloading from the
// spreadsheet files only when the freshness check says the source changed.
func (l *Loader) Load(name string, files []string) (*Result, error) {
	if name == "" {
		return nil, fmt.Errorf("source name must not be empty")
	}
	start := time.Now()

	if len(files) == 0 {
		return l.loadStale(name, start)
	}

	current, err := freshness.Snapshot(files)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	stored := l.records.Load()[name]

	if !freshness.Changed(current, stored, l.cache.Exists(name)) {
		t, err := l.fromCache(name)
		if err != nil {
			return nil, err
		}
		return &Result{Table: t, Reloaded: false, Elapsed: time.Since(start)}, nil
	}

	parts := make([]*table.Table, 0, len(files))
	for _, f := range files {
		part, err := l.parse(f)
		if err != nil {
			return nil, &ParseError{Source: name, File: f, Err: err}
		}
		parts = append(parts, part)
	}
	t := table.Concat(parts...)

	if err := l.cache.Write(name, t); err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	entry := freshness.Entry{
		MTimes:    current,
		CachePath: filepath.Join(cachestore.SourceDir, name+".parquet"),
		FileCount: len(files),
	}
	if err := l.records.Update(name, entry); err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	l.memo.Add(name, t)

	return &Result{Table: t, Reloaded: true, Elapsed: time.Since(start)}, nil
}

// loadStale handles the zero-files case according to the stale-cache
// policy. Without a lingering cache there is nothing to decide: the source
// simply has no data this run.
func (l *Loader) loadStale(name string, start time.Time) (*Result, error) {
	if !l.cache.Exists(name) {
		return nil, &NoFilesError{Source: name}
	}
	switch l.policy {
	case StaleDelete:
		if err := l.cache.Remove(name); err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		if err := l.records.Remove(name); err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		l.memo.Remove(name)
		return nil, &NoFilesError{Source: name}
	case StaleIgnore:
		t, err := l.fromCache(name)
		if err != nil {
			return nil, err
		}
		return &Result{Table: t, Reloaded: false, Elapsed: time.Since(start)}, nil
	default:
		return nil, &NoFilesError{Source: name, StaleCache: l.cache.Path(name)}
	}
}

func (l *Loader) fromCache(name string) (*table.Table, error) {
	if t, ok := l.memo.Get(name); ok {
		return t, nil
	}
	t, err := l.cache.Read(name)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	l.memo.Add(name, t)
	return t, nil
}
