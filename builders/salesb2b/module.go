// Package salesb2b builds the sales_b2b fact table: authorized B2B invoice
// lines from O_NFCI enriched with lookup tables (shipment list, product
// parents, client groups, entry costs, rep commissions, freight and
// allowance rates) and derived cost/margin columns.
package salesb2b

import (
	"context"
	"strings"

	"github.com/vk/factbuild/internal/ctxlog"
	"github.com/vk/factbuild/internal/registry"
	"github.com/vk/factbuild/internal/table"
)

// FactName is the fact table this package produces.
const FactName = "sales_b2b"

// Lookup sources required besides the primary O_NFCI.
var lookupSources = []string{
	"T_Remessas",
	"T_ProdF",
	"T_GruposCli",
	"T_Entradas",
	"T_Reps",
	"T_Fretes",
	"T_Verbas",
}

// Module implements registry.Module for this package.
type Module struct{}

// Register registers the builder with the app registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBuilder(&registry.Builder{Fact: FactName, Fn: Build})
}

// Build produces the fact table. Inputs are never mutated; the primary
// source is cloned before any transformation.
func Build(ctx context.Context, dataRoot string, sources map[string]*table.Table) (*table.Table, error) {
	logger := ctxlog.FromContext(ctx).With("fact", FactName)

	required := append([]string{"O_NFCI"}, lookupSources...)
	if err := registry.RequireSources(FactName, sources, required...); err != nil {
		return nil, err
	}
	if err := registry.RequireNonEmpty(FactName, "O_NFCI", sources["O_NFCI"]); err != nil {
		return nil, err
	}

	// Everything downstream works on uppercase column names and text.
	t := normalizeCase(sources["O_NFCI"])
	if err := registry.RequireColumns(FactName, "O_NFCI", t, "CODPF", "QT", "PMERC_T"); err != nil {
		return nil, err
	}

	lk := buildLookups(sources)

	// Keep only authorized invoice lines when the status column is present.
	if t.HasColumn("SITUAÇÃO") {
		before := t.NumRows()
		t = t.Filter(func(r table.Row) bool {
			s, _ := table.AsString(r["SITUAÇÃO"])
			return s == "AUTORIZADO"
		}).Clone()
		logger.Debug("filtered canceled invoice lines", "before", before, "after", t.NumRows())
	}

	applyShipmentRepricing(t)
	joinLookups(t, lk)
	deriveColumns(t)
	roundColumns(t)

	logger.Debug("built fact table", "rows", t.NumRows(), "cols", t.NumCols())
	return t, nil
}

// normalizeCase returns a copy with uppercase column names and uppercase
// string cells, so joins never miss on casing.
func normalizeCase(in *table.Table) *table.Table {
	cols := in.Columns()
	upper := make([]string, len(cols))
	for i, c := range cols {
		upper[i] = strings.ToUpper(c)
	}
	out := table.New(upper...)
	for i := 0; i < in.NumRows(); i++ {
		src := in.Row(i)
		row := make(table.Row, len(src))
		for k, v := range src {
			if s, ok := v.(string); ok {
				v = strings.ToUpper(s)
			}
			row[strings.ToUpper(k)] = v
		}
		out.AppendRow(row)
	}
	return out
}

// applyShipmentRepricing prices REMESSA DE PRODUTO lines at a symbolic
// 0.01 per unit so shipments do not distort revenue totals.
func applyShipmentRepricing(t *table.Table) {
	if !t.HasColumn("OP") || !t.HasColumn("QT") {
		return
	}
	for _, col := range []string{"PMERC_U", "PMERC_T", "PNF_T"} {
		t.AddColumn(col)
	}
	for i := 0; i < t.NumRows(); i++ {
		r := t.Row(i)
		op, _ := table.AsString(r["OP"])
		if op != "REMESSA DE PRODUTO" {
			continue
		}
		qt, ok := table.AsFloat(r["QT"])
		if !ok {
			continue
		}
		r["PMERC_U"] = 0.01
		r["PMERC_T"] = 0.01 * qt
		r["PNF_T"] = 0.01 * qt
	}
}
