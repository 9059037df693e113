// Package source resolves logical source names into concrete files under
// the data root. A source is declared with either a fixed relative path or
// a glob pattern; both may legitimately match nothing (monthly files appear
// and disappear between runs), which resolves to an empty list, not an error.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Spec declares how one logical source maps to files. Exactly one of
// Pattern or Path must be set.
type Spec struct {
	Pattern string `json:"pattern,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Validate checks that the spec declares exactly one resolution mode.
func (s Spec) Validate() error {
	switch {
	case s.Pattern == "" && s.Path == "":
		return errors.New("source must declare either 'pattern' or 'path'")
	case s.Pattern != "" && s.Path != "":
		return errors.New("source must declare 'pattern' or 'path', not both")
	}
	return nil
}

// Resolve expands the spec against dataRoot and returns the matching files
// in sorted order. Resolution is repeated fresh on every run.
func Resolve(spec Spec, dataRoot string) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if spec.Path != "" {
		full := filepath.Join(dataRoot, spec.Path)
		if _, err := os.Stat(full); err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("stat %s: %w", full, err)
		}
		return []string{full}, nil
	}

	matches, err := filepath.Glob(filepath.Join(dataRoot, spec.Pattern))
	if err != nil {
		return nil, fmt.Errorf("bad glob pattern %q: %w", spec.Pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
