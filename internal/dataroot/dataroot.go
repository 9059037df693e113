// Package dataroot locates the external data directory. The folder lives in
// a synced drive whose mount point differs per machine, so resolution walks
// a short ordered candidate list; an environment override wins outright.
package dataroot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvVar overrides candidate resolution when set (typically via .env).
const EnvVar = "FACTBUILD_DATA_ROOT"

// NotFoundError means no candidate directory exists. This aborts the run
// before any other I/O.
type NotFoundError struct {
	Candidates []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("data root not found; none of the candidate directories exist:\n  - %s",
		strings.Join(e.Candidates, "\n  - "))
}

// Resolve returns the first existing candidate directory. override, when
// non-empty, is the only candidate considered.
func Resolve(override string, candidates []string) (string, error) {
	tried := candidates
	if override != "" {
		tried = []string{override}
	}
	for _, c := range tried {
		info, err := os.Stat(c)
		if err == nil && info.IsDir() {
			abs, err := filepath.Abs(c)
			if err != nil {
				return "", fmt.Errorf("resolving %s: %w", c, err)
			}
			return abs, nil
		}
	}
	return "", &NotFoundError{Candidates: tried}
}
