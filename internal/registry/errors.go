package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/factbuild/internal/table"
)

// NotRegisteredError reports a fact named in the dependency map with no
// builder compiled in.
type NotRegisteredError struct {
	Fact       string
	Registered []string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("no builder registered for fact %q (registered: %s)", e.Fact, strings.Join(e.Registered, ", "))
}

// MissingSourceError reports required sources absent from the loaded set,
// typically because their load was skipped earlier in the run.
type MissingSourceError struct {
	Fact      string
	Missing   []string
	Available []string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("fact %q: required sources missing: [%s] (available: [%s])",
		e.Fact, strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// EmptySourceError reports a required source that loaded with zero rows.
type EmptySourceError struct {
	Fact   string
	Source string
}

func (e *EmptySourceError) Error() string {
	return fmt.Sprintf("fact %q: source %q is empty", e.Fact, e.Source)
}

// MissingColumnError reports required columns absent from a source table,
// listing what is available for diagnosis.
type MissingColumnError struct {
	Fact      string
	Source    string
	Missing   []string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("fact %q: source %q missing columns [%s] (available: [%s])",
		e.Fact, e.Source, strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// RequireSources validates that every named source is present in the
// loaded set.
func RequireSources(fact string, sources map[string]*table.Table, names ...string) error {
	var missing []string
	for _, n := range names {
		if sources[n] == nil {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	available := make([]string, 0, len(sources))
	for n := range sources {
		available = append(available, n)
	}
	return &MissingSourceError{Fact: fact, Missing: missing, Available: sortedCopy(available)}
}

// RequireNonEmpty validates that a source table has at least one row.
func RequireNonEmpty(fact, source string, t *table.Table) error {
	if t.NumRows() == 0 {
		return &EmptySourceError{Fact: fact, Source: source}
	}
	return nil
}

// RequireColumns validates that the source table declares every column.
func RequireColumns(fact, source string, t *table.Table, cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingColumnError{Fact: fact, Source: source, Missing: missing, Available: t.Columns()}
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
