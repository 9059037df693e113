package salesb2c

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/factbuild/internal/registry"
	"github.com/vk/factbuild/internal/table"
)

func validSource() *table.Table {
	t := table.New("CODPF", "Qt", "Data", "PMerc_T", "PMerc_U")
	t.AppendRow(table.Row{"CODPF": "K001", "Qt": 2.0, "Data": "2025-11-03", "PMerc_T": 59.8, "PMerc_U": 29.9})
	return t
}

func TestBuildHappyPath(t *testing.T) {
	src := validSource()
	got, err := Build(context.Background(), "", map[string]*table.Table{"L_LPI": src})
	require.NoError(t, err)

	assert.Equal(t, 1, got.NumRows())
	assert.Equal(t, src.Columns(), got.Columns())

	// The fact is an independent copy of the shared source.
	got.Row(0)["Qt"] = 99.0
	assert.Equal(t, 2.0, src.Value(0, "Qt"))
}

func TestBuildMissingSource(t *testing.T) {
	_, err := Build(context.Background(), "", map[string]*table.Table{"O_NFCI": validSource()})
	var mse *registry.MissingSourceError
	require.ErrorAs(t, err, &mse)
	assert.Equal(t, []string{"L_LPI"}, mse.Missing)
	assert.Equal(t, []string{"O_NFCI"}, mse.Available)
}

func TestBuildEmptySource(t *testing.T) {
	empty := table.New("CODPF", "Qt", "Data", "PMerc_T", "PMerc_U")
	_, err := Build(context.Background(), "", map[string]*table.Table{"L_LPI": empty})
	var ese *registry.EmptySourceError
	require.ErrorAs(t, err, &ese)
	assert.Equal(t, "L_LPI", ese.Source)
}

func TestBuildMissingColumns(t *testing.T) {
	partial := table.New("CODPF", "Qt")
	partial.AppendRow(table.Row{"CODPF": "K001", "Qt": 1.0})

	_, err := Build(context.Background(), "", map[string]*table.Table{"L_LPI": partial})
	var mce *registry.MissingColumnError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, []string{"Data", "PMerc_T", "PMerc_U"}, mce.Missing)
	assert.Equal(t, []string{"CODPF", "Qt"}, mce.Available)
}

func TestModuleRegisters(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)

	b, err := r.Builder(FactName)
	require.NoError(t, err)
	assert.Equal(t, FactName, b.Fact)
}
