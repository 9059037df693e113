// Package salesb2c builds the sales_b2c fact table: marketplace order
// lines from the L_LPI source, validated strictly and passed through. The
// channel-margin enrichment still happens downstream in reporting.
package salesb2c

import (
	"context"

	"github.com/vk/factbuild/internal/ctxlog"
	"github.com/vk/factbuild/internal/registry"
	"github.com/vk/factbuild/internal/table"
)

// FactName is the fact table this package produces.
const FactName = "sales_b2c"

// requiredColumns is the minimum schema a usable L_LPI export carries.
var requiredColumns = []string{"CODPF", "Qt", "Data", "PMerc_T", "PMerc_U"}

// Module implements registry.Module for this package.
type Module struct{}

// Register registers the builder with the app registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBuilder(&registry.Builder{Fact: FactName, Fn: Build})
}

// Build validates L_LPI and returns an independent copy of it.
func Build(ctx context.Context, dataRoot string, sources map[string]*table.Table) (*table.Table, error) {
	if err := registry.RequireSources(FactName, sources, "L_LPI"); err != nil {
		return nil, err
	}
	src := sources["L_LPI"]
	if err := registry.RequireNonEmpty(FactName, "L_LPI", src); err != nil {
		return nil, err
	}
	if err := registry.RequireColumns(FactName, "L_LPI", src, requiredColumns...); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("built fact table", "fact", FactName, "rows", src.NumRows())

	// Clone so later mutation of the fact can never touch the shared source.
	return src.Clone(), nil
}
