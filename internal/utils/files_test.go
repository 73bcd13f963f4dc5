package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datatidy-cli/internal/utils"
)

func TestSafeWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.csv")
	require.NoError(t, utils.SafeWriteFile(path, []byte("a,b\n")))
	require.NoError(t, utils.SafeWriteFile(path, []byte("c,d\n")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "c,d\n", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"rows": 3})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"rows\": 3\n}", string(b))
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.csv", "a.csv", "c.xlsx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x\n"), 0o644))
	}
	missing := filepath.Join(dir, "missing.csv")
	got, err := utils.ExpandInputs([]string{
		filepath.Join(dir, "*.csv"),
		filepath.Join(dir, "a.csv"),
		missing,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.csv"),
		filepath.Join(dir, "b.csv"),
		missing,
	}, got)
}
