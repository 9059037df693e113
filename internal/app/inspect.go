package app

import (
	"fmt"
	"text/tabwriter"

	"github.com/vk/factbuild/internal/cachestore"
	"github.com/vk/factbuild/internal/freshness"
	"github.com/vk/factbuild/internal/source"
)

// inspect reports the state of every declared source and registered fact
// without loading or rebuilding anything. Artifact shapes come from the
// parquet metadata only, so inspecting a large model stays cheap.
func (a *App) inspect(root string, specs map[string]source.Spec) error {
	cache := cachestore.New(root, cachestore.SourceDir)
	facts := cachestore.New(root, cachestore.FactDir)
	records := freshness.NewStore(root).Load()

	w := tabwriter.NewWriter(a.outW, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tFILES\tSTATUS\tROWS\tCOLS")
	for _, name := range sortedSpecNames(specs) {
		files, rerr := source.Resolve(specs[name], root)
		status := a.sourceStatus(name, files, rerr, records, cache)
		rows, cols := shapeOf(cache, name)
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", name, len(files), status, rows, cols)
	}

	fmt.Fprintln(w, "\nFACT\tBUILT\tROWS\tCOLS")
	for _, name := range a.registry.Names() {
		rows, cols := shapeOf(facts, name)
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", name, facts.Exists(name), rows, cols)
	}
	return w.Flush()
}

// sourceStatus classifies one source the same way a run would, minus the
// side effects: would the loader reuse the cache or reload?
func (a *App) sourceStatus(name string, files []string, rerr error, records map[string]freshness.Entry, cache *cachestore.Store) string {
	if rerr != nil {
		return "resolve error"
	}
	if len(files) == 0 {
		if cache.Exists(name) {
			return "no files (stale cache)"
		}
		return "no files"
	}
	current, err := freshness.Snapshot(files)
	if err != nil {
		return "stat error"
	}
	if freshness.Changed(current, records[name], cache.Exists(name)) {
		return "changed"
	}
	return "up-to-date"
}

// shapeOf formats an artifact's (rows, cols), or dashes when absent.
func shapeOf(s *cachestore.Store, name string) (string, string) {
	rows, cols, err := s.Shape(name)
	if err != nil {
		return "-", "-"
	}
	return fmt.Sprintf("%d", rows), fmt.Sprintf("%d", cols)
}
