package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/factbuild/internal/buildlog"
	"github.com/vk/factbuild/internal/cachestore"
	"github.com/vk/factbuild/internal/registry"
	"github.com/vk/factbuild/internal/table"
	"github.com/vk/factbuild/internal/testutil"
)

// funcModule registers a single prebuilt builder, letting tests wire
// counting or failing builders without a real builders/ package.
type funcModule struct{ b *registry.Builder }

func (m *funcModule) Register(r *registry.Registry) { r.RegisterBuilder(m.b) }

// harness is a complete on-disk model: a data root with two spreadsheet
// sources, a config dir with the settings file and both maps, and two fact
// builders ("f_margin" over both sources, "f_summary" over f_margin) that
// count their invocations across runs.
type harness struct {
	root    string
	cfgDir  string
	out     *testutil.SafeBuffer
	cfg     *Config
	salesFn string
	ratesFn string

	marginCalls  int
	summaryCalls int
	marginFail   bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		root:   t.TempDir(),
		cfgDir: t.TempDir(),
		out:    &testutil.SafeBuffer{},
	}
	h.salesFn = filepath.Join(h.root, "input", "sales_2511.xlsx")
	h.ratesFn = filepath.Join(h.root, "input", "rates.xlsx")

	testutil.WriteXLSX(t, h.salesFn, [][]any{
		{"CODPF", "QT"},
		{"K001", 2.0},
		{"K002", 1.0},
	})
	testutil.WriteXLSX(t, h.ratesFn, [][]any{
		{"UF", "PCT"},
		{"SP", 0.02},
	})
	testutil.WriteJSON(t, filepath.Join(h.cfgDir, "sources_map.json"), map[string]map[string]string{
		"O_SALES": {"pattern": "input/sales_${period}.xlsx"},
		"T_RATES": {"path": "input/rates.xlsx"},
	})
	testutil.WriteJSON(t, filepath.Join(h.cfgDir, "model_dependencies.json"), map[string][]string{
		"f_margin":  {"O_SALES", "T_RATES"},
		"f_summary": {"f_margin"},
	})
	testutil.WriteFile(t, filepath.Join(h.cfgDir, "settings.hcl"), `
sources_map  = "sources_map.json"
dependencies = "model_dependencies.json"
log_level    = "debug"
`)

	h.cfg = &Config{
		SettingsPath: filepath.Join(h.cfgDir, "settings.hcl"),
		DataRoot:     h.root,
		Period:       "2511",
	}
	return h
}

func (h *harness) modules() []registry.Module {
	margin := &registry.Builder{Fact: "f_margin", Fn: func(_ context.Context, _ string, sources map[string]*table.Table) (*table.Table, error) {
		h.marginCalls++
		if h.marginFail {
			return nil, assert.AnError
		}
		if err := registry.RequireSources("f_margin", sources, "O_SALES", "T_RATES"); err != nil {
			return nil, err
		}
		out := table.New("ROWS")
		out.AppendRow(table.Row{"ROWS": float64(sources["O_SALES"].NumRows() + sources["T_RATES"].NumRows())})
		return out, nil
	}}
	summary := &registry.Builder{Fact: "f_summary", Fn: func(_ context.Context, _ string, sources map[string]*table.Table) (*table.Table, error) {
		h.summaryCalls++
		if err := registry.RequireSources("f_summary", sources, "f_margin"); err != nil {
			return nil, err
		}
		return sources["f_margin"].Clone(), nil
	}}
	return []registry.Module{&funcModule{b: margin}, &funcModule{b: summary}}
}

func (h *harness) run(t *testing.T) error {
	t.Helper()
	a := NewApp(h.out, h.cfg, h.modules()...)
	return a.Run(context.Background())
}

func (h *harness) logEntries(t *testing.T) []buildlog.Entry {
	t.Helper()
	entries, err := buildlog.New(h.root).Entries()
	require.NoError(t, err)
	return entries
}

func TestRunColdStart(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.run(t))

	assert.Equal(t, 1, h.marginCalls)
	assert.Equal(t, 1, h.summaryCalls)

	cache := cachestore.New(h.root, cachestore.SourceDir)
	assert.True(t, cache.Exists("O_SALES"))
	assert.True(t, cache.Exists("T_RATES"))

	facts := cachestore.New(h.root, cachestore.FactDir)
	got, err := facts.Read("f_margin")
	require.NoError(t, err)
	require.Equal(t, 1, got.NumRows())
	assert.Equal(t, 3.0, got.Value(0, "ROWS"))
	assert.True(t, facts.Exists("f_summary"))

	entries := h.logEntries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, "f_margin", entries[0].Table)
	assert.Equal(t, buildlog.StatusRebuilt, entries[0].Status)
	assert.Equal(t, 1, entries[0].Rows)
	assert.Equal(t, "f_summary", entries[1].Table)
	assert.Equal(t, buildlog.StatusRebuilt, entries[1].Status)
}

func TestRunSecondPassIsNoop(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.run(t))
	require.NoError(t, h.run(t))

	assert.Equal(t, 1, h.marginCalls, "unchanged sources must not trigger a rebuild")
	assert.Equal(t, 1, h.summaryCalls)
	assert.Len(t, h.logEntries(t), 2)
	assert.Contains(t, h.out.String(), "all sources up-to-date")
}

func TestRunChangePropagatesThroughFactChain(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.run(t))
	testutil.Touch(t, h.ratesFn)
	require.NoError(t, h.run(t))

	assert.Equal(t, 2, h.marginCalls)
	assert.Equal(t, 2, h.summaryCalls, "f_summary depends on f_margin and must follow it")
	assert.Len(t, h.logEntries(t), 4)
}

func TestRunChangedSourceWithoutDependentsRebuildsNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	lone := filepath.Join(h.root, "input", "lone.xlsx")
	testutil.WriteXLSX(t, lone, [][]any{{"A"}, {"x"}})
	testutil.WriteJSON(t, filepath.Join(h.cfgDir, "sources_map.json"), map[string]map[string]string{
		"O_SALES": {"pattern": "input/sales_${period}.xlsx"},
		"T_RATES": {"path": "input/rates.xlsx"},
		"T_LONE":  {"path": "input/lone.xlsx"},
	})

	require.NoError(t, h.run(t))
	require.Equal(t, 1, h.marginCalls)

	testutil.Touch(t, lone)
	require.NoError(t, h.run(t))

	assert.Equal(t, 1, h.marginCalls, "no fact depends on T_LONE")
	assert.Contains(t, h.out.String(), "no fact tables depend on the changed sources")
	assert.Len(t, h.logEntries(t), 2)
}

func TestRunBuilderErrorAbortsRemainingRebuilds(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.marginFail = true

	err := h.run(t)
	require.Error(t, err)
	require.ErrorContains(t, err, `building fact "f_margin"`)

	assert.Equal(t, 1, h.marginCalls)
	assert.Equal(t, 0, h.summaryCalls, "downstream builders must not run after an abort")
	assert.False(t, cachestore.New(h.root, cachestore.FactDir).Exists("f_margin"))

	entries := h.logEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "f_margin", entries[0].Table)
	assert.Equal(t, buildlog.StatusError, entries[0].Status)
}

func TestRunMissingSourceFailsDependentFact(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, os.Remove(h.ratesFn))

	err := h.run(t)
	require.Error(t, err)

	var mse *registry.MissingSourceError
	require.ErrorAs(t, err, &mse)
	assert.Equal(t, []string{"T_RATES"}, mse.Missing)
	assert.Equal(t, 0, h.summaryCalls)
}

func TestRunStaleCacheIgnoreServesCachedTable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.run(t))
	require.NoError(t, os.Remove(h.salesFn))

	h.cfg.OnStaleCache = "ignore"
	require.NoError(t, h.run(t))

	assert.Equal(t, 1, h.marginCalls, "a cached source served read-only is not a change")
	assert.Contains(t, h.out.String(), "all sources up-to-date")
}

func TestRunStaleCacheDeleteDropsArtifact(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.run(t))
	require.NoError(t, os.Remove(h.salesFn))

	h.cfg.OnStaleCache = "delete"
	require.NoError(t, h.run(t))

	assert.False(t, cachestore.New(h.root, cachestore.SourceDir).Exists("O_SALES"))
}

func TestRunDependencyCycleFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	testutil.WriteJSON(t, filepath.Join(h.cfgDir, "model_dependencies.json"), map[string][]string{
		"f_margin":  {"O_SALES", "f_summary"},
		"f_summary": {"f_margin"},
	})

	err := h.run(t)
	require.Error(t, err)
	require.ErrorContains(t, err, "cyclic fact dependencies")
	assert.Equal(t, 0, h.marginCalls)
}

func TestRunInspectReportsWithoutRebuilding(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.run(t))
	testutil.Touch(t, h.ratesFn)

	h.cfg.Inspect = true
	require.NoError(t, h.run(t))

	assert.Equal(t, 1, h.marginCalls, "inspect must not rebuild")
	report := h.out.String()
	assert.Contains(t, report, "O_SALES")
	assert.Contains(t, report, "up-to-date")
	assert.Contains(t, report, "changed")
	assert.Contains(t, report, "f_margin")
}
