package cachestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/factbuild/internal/table"
)

func sampleTable() *table.Table {
	t := table.New("CODPF", "QT", "ATIVO")
	t.AppendRow(table.Row{"CODPF": "K001", "QT": 3.0, "ATIVO": true})
	t.AppendRow(table.Row{"CODPF": "K002", "QT": 1.5, "ATIVO": false})
	t.AppendRow(table.Row{"CODPF": "K003"}) // QT and ATIVO null
	return t
}

func TestRoundTrip(t *testing.T) {
	store := New(t.TempDir(), SourceDir)
	require.NoError(t, store.Write("O_NFCI", sampleTable()))

	got, err := store.Read("O_NFCI")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"CODPF", "QT", "ATIVO"}, got.Columns())
	require.Equal(t, 3, got.NumRows())
	assert.Equal(t, "K001", got.Value(0, "CODPF"))
	assert.Equal(t, 3.0, got.Value(0, "QT"))
	assert.Equal(t, true, got.Value(0, "ATIVO"))
	assert.Equal(t, 1.5, got.Value(1, "QT"))
	assert.Nil(t, got.Value(2, "QT"))
	assert.Nil(t, got.Value(2, "ATIVO"))
}

func TestExistsAndPath(t *testing.T) {
	root := t.TempDir()
	store := New(root, SourceDir)

	assert.False(t, store.Exists("O_NFCI"))
	require.NoError(t, store.Write("O_NFCI", sampleTable()))
	assert.True(t, store.Exists("O_NFCI"))
	assert.Equal(t, filepath.Join(root, "cache", "O_NFCI.parquet"), store.Path("O_NFCI"))
}

func TestReadMissingArtifact(t *testing.T) {
	store := New(t.TempDir(), FactDir)

	_, err := store.Read("sales_b2b")
	var miss *MissError
	require.ErrorAs(t, err, &miss)
	assert.Equal(t, "sales_b2b", miss.Name)
	assert.Contains(t, miss.Error(), "sales_b2b")
}

func TestWriteReplacesWholesale(t *testing.T) {
	store := New(t.TempDir(), SourceDir)
	require.NoError(t, store.Write("S", sampleTable()))

	small := table.New("ONLY")
	small.AppendRow(table.Row{"ONLY": "v"})
	require.NoError(t, store.Write("S", small))

	got, err := store.Read("S")
	require.NoError(t, err)
	assert.Equal(t, []string{"ONLY"}, got.Columns())
	assert.Equal(t, 1, got.NumRows())
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	root := t.TempDir()
	store := New(root, SourceDir)
	require.NoError(t, store.Write("S", sampleTable()))

	entries, err := os.ReadDir(filepath.Join(root, "cache"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "S.parquet", entries[0].Name())
}

func TestMixedColumnWidensToText(t *testing.T) {
	store := New(t.TempDir(), SourceDir)
	mixed := table.New("V")
	mixed.AppendRow(table.Row{"V": 12.5})
	mixed.AppendRow(table.Row{"V": "n/a"})
	require.NoError(t, store.Write("S", mixed))

	got, err := store.Read("S")
	require.NoError(t, err)
	assert.Equal(t, "12.5", got.Value(0, "V"))
	assert.Equal(t, "n/a", got.Value(1, "V"))
}

func TestEmptyTableRoundTrip(t *testing.T) {
	store := New(t.TempDir(), FactDir)
	require.NoError(t, store.Write("empty_fact", table.New()))

	got, err := store.Read("empty_fact")
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumRows())
	assert.Equal(t, 0, got.NumCols())
}

func TestRemove(t *testing.T) {
	store := New(t.TempDir(), SourceDir)
	require.NoError(t, store.Write("S", sampleTable()))
	require.NoError(t, store.Remove("S"))
	assert.False(t, store.Exists("S"))

	// Removing an absent artifact is not an error.
	require.NoError(t, store.Remove("S"))
}

func TestShape(t *testing.T) {
	store := New(t.TempDir(), SourceDir)
	require.NoError(t, store.Write("S", sampleTable()))

	rows, cols, err := store.Shape("S")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
	assert.Equal(t, 3, cols)

	_, _, err = store.Shape("missing")
	var miss *MissError
	assert.True(t, errors.As(err, &miss))
}
