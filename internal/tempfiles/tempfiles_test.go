package tempfiles

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateMakesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")

	f, err := Create(dir, "tempfiles-test-*")
	require.NoError(t, err)
	defer f.Close()

	rel, err := filepath.Rel(dir, f.Name())
	require.NoError(t, err)
	require.NotContains(t, rel, "..")
}

func TestWriteFileRenamesIntoPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.csv")

	n, err := WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	})
	require.NoError(t, err)
	require.EqualValues(t, 5, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteFileLeavesNothingOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	boom := errors.New("boom")

	_, err := WriteFile(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
