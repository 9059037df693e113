package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestValidate(t *testing.T) {
	assert.Error(t, Spec{}.Validate())
	assert.Error(t, Spec{Pattern: "a/*.xlsx", Path: "a/b.xlsx"}.Validate())
	assert.NoError(t, Spec{Pattern: "a/*.xlsx"}.Validate())
	assert.NoError(t, Spec{Path: "a/b.xlsx"}.Validate())
}

func TestResolveFixedPath(t *testing.T) {
	root := t.TempDir()

	t.Run("missing file resolves to empty", func(t *testing.T) {
		files, err := Resolve(Spec{Path: "clean/O_NFCI.xlsx"}, root)
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("existing file resolves to itself", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "clean", "O_NFCI.xlsx"))
		files, err := Resolve(Spec{Path: "clean/O_NFCI.xlsx"}, root)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "clean", "O_NFCI.xlsx")}, files)
	})
}

func TestResolvePattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clean", "L_LPI_2025_11.xlsx"))
	writeFile(t, filepath.Join(root, "clean", "L_LPI_2025_10.xlsx"))
	writeFile(t, filepath.Join(root, "clean", "other.xlsx"))

	files, err := Resolve(Spec{Pattern: "clean/L_LPI_*.xlsx"}, root)
	require.NoError(t, err)

	// Sorted for deterministic freshness records and logs.
	assert.Equal(t, []string{
		filepath.Join(root, "clean", "L_LPI_2025_10.xlsx"),
		filepath.Join(root, "clean", "L_LPI_2025_11.xlsx"),
	}, files)
}

func TestResolveInvalidSpec(t *testing.T) {
	_, err := Resolve(Spec{}, t.TempDir())
	assert.Error(t, err)
}
