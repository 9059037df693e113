package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vk/factbuild/internal/buildlog"
	"github.com/vk/factbuild/internal/cachestore"
	"github.com/vk/factbuild/internal/config"
	"github.com/vk/factbuild/internal/ctxlog"
	"github.com/vk/factbuild/internal/dataroot"
	"github.com/vk/factbuild/internal/depgraph"
	"github.com/vk/factbuild/internal/loader"
	"github.com/vk/factbuild/internal/source"
	"github.com/vk/factbuild/internal/table"
)

// Run executes one orchestrator pass. Source-level failures are isolated
// (logged, the source skipped); builder-level failures abort the whole run
// so no half-valid fact is ever persisted.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("run started")

	root, err := dataroot.Resolve(a.dataRootOverride(), a.settings.DataRootCandidates)
	if err != nil {
		return err
	}
	a.logger.Info("data root resolved", "root", root)

	sourcesPath, depsPath := a.mapPaths()
	specs, err := config.LoadSourceMap(sourcesPath)
	if err != nil {
		return err
	}
	deps, err := config.LoadDependencyMap(depsPath)
	if err != nil {
		return err
	}
	if err := depgraph.Validate(deps); err != nil {
		return err
	}
	specs, err = config.ExpandSpecs(specs, map[string]string{"period": a.period()})
	if err != nil {
		return fmt.Errorf("expanding source map: %w", err)
	}
	a.logger.Info("configuration loaded", "sources", len(specs), "facts", len(deps))

	if a.cfg.Inspect {
		return a.inspect(root, specs)
	}

	ld := loader.New(root, a.policy)
	loaded := make(map[string]*table.Table, len(specs))
	var changed []string

	for _, name := range sortedSpecNames(specs) {
		res, ok := a.loadSource(ld, root, name, specs[name])
		if !ok {
			continue
		}
		loaded[name] = res.Table
		if res.Reloaded {
			changed = append(changed, name)
		}
	}

	if len(changed) == 0 {
		a.logger.Info("all sources up-to-date, nothing to rebuild")
		return nil
	}
	a.logger.Info("sources changed", "sources", changed)

	rebuild, err := depgraph.RebuildSet(changed, deps)
	if err != nil {
		return err
	}
	if len(rebuild) == 0 {
		a.logger.Info("no fact tables depend on the changed sources")
		return nil
	}
	a.logger.Info("fact tables to rebuild", "facts", rebuild)

	// Facts slated for rebuild may need sources that were declared but not
	// loaded above (e.g. skipped by an earlier failure is final, but a
	// source absent from the loop entirely is loaded on demand here).
	a.loadExtraSources(ld, root, rebuild, deps, specs, loaded)

	return a.rebuildFacts(ctx, root, rebuild, deps, loaded)
}

// loadSource runs one source through the smart loader. Failures are
// logged and the source skipped; any fact needing it fails loudly later.
func (a *App) loadSource(ld *loader.Loader, root, name string, spec source.Spec) (*loader.Result, bool) {
	files, err := source.Resolve(spec, root)
	if err != nil {
		a.logger.Error("failed to resolve source, skipping", "source", name, "error", err)
		return nil, false
	}
	res, err := ld.Load(name, files)
	if err != nil {
		a.logger.Warn("failed to load source, skipping", "source", name, "error", err)
		return nil, false
	}
	a.logger.Info("source loaded",
		"source", name,
		"rows", res.Table.NumRows(),
		"cols", res.Table.NumCols(),
		"reloaded", res.Reloaded,
		"elapsed", res.Elapsed.Round(timeRounding),
	)
	return res, true
}

// loadExtraSources loads any rebuild dependency that is declared in the
// source map but missing from the in-memory set.
func (a *App) loadExtraSources(ld *loader.Loader, root string, rebuild []string, deps map[string][]string, specs map[string]source.Spec, loaded map[string]*table.Table) {
	for _, fact := range rebuild {
		for _, dep := range deps[fact] {
			if _, ok := loaded[dep]; ok {
				continue
			}
			spec, declared := specs[dep]
			if !declared {
				continue // a fact input, satisfied during the rebuild loop
			}
			if res, ok := a.loadSource(ld, root, dep, spec); ok {
				loaded[dep] = res.Table
			}
		}
	}
}

// rebuildFacts runs the builders in dependency order, persisting each
// result and appending to the build log. The first builder error aborts
// the remaining rebuilds.
func (a *App) rebuildFacts(ctx context.Context, root string, rebuild []string, deps map[string][]string, loaded map[string]*table.Table) error {
	facts := cachestore.New(root, cachestore.FactDir)
	blog := buildlog.New(root)
	rebuilt := make(map[string]*table.Table, len(rebuild))

	for _, fact := range rebuild {
		builder, err := a.registry.Builder(fact)
		if err != nil {
			a.logBuild(blog, fact, buildlog.StatusError, 0, 0)
			return err
		}

		inputs := make(map[string]*table.Table, len(deps[fact]))
		for _, dep := range deps[fact] {
			if t, ok := loaded[dep]; ok {
				inputs[dep] = t
			} else if t, ok := rebuilt[dep]; ok {
				inputs[dep] = t
			}
		}

		a.logger.Info("rebuilding fact", "fact", fact)
		start := now()
		result, err := builder.Fn(ctx, root, inputs)
		elapsed := now().Sub(start)
		if err != nil {
			a.logBuild(blog, fact, buildlog.StatusError, 0, elapsed.Seconds())
			return fmt.Errorf("building fact %q: %w", fact, err)
		}

		if err := facts.Write(fact, result); err != nil {
			a.logBuild(blog, fact, buildlog.StatusError, result.NumRows(), elapsed.Seconds())
			return fmt.Errorf("persisting fact %q: %w", fact, err)
		}
		rebuilt[fact] = result
		a.logBuild(blog, fact, buildlog.StatusRebuilt, result.NumRows(), elapsed.Seconds())
		a.logger.Info("fact rebuilt",
			"fact", fact,
			"rows", result.NumRows(),
			"cols", result.NumCols(),
			"elapsed", elapsed.Round(timeRounding),
		)
	}

	a.logger.Info("rebuild complete", "facts", len(rebuilt))
	return nil
}

// logBuild appends a build log entry; a failure to log must not mask the
// build outcome, so it is only reported.
func (a *App) logBuild(blog *buildlog.Logger, fact, status string, rows int, seconds float64) {
	err := blog.Append(buildlog.Entry{Table: fact, Status: status, Rows: rows, Elapsed: seconds})
	if err != nil {
		a.logger.Error("failed to append build log entry", "fact", fact, "error", err)
	}
}

// now is swappable for tests that pin build durations.
var now = time.Now

const timeRounding = time.Millisecond

func sortedSpecNames(specs map[string]source.Spec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
