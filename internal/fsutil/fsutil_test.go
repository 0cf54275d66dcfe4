package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"b.hcl", "nested/a.hcl", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := FindFilesByExtension(dir, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.hcl"), filepath.Join(dir, "nested", "a.hcl")}, files)

	single, err := FindFilesByExtension(filepath.Join(dir, "b.hcl"), ".hcl")
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = FindFilesByExtension(filepath.Join(dir, "notes.txt"), ".hcl")
	require.Error(t, err)
}

func TestExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ok, err := Exists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Exists(dir)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteFileAtomic_FailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")

	err := WriteFileAtomic(target, 0o644, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "neither the target nor the temporary file should remain")
}

func TestWriteFileAtomic_ReplacesContent(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	err := WriteFileAtomic(target, 0o644, func(w io.Writer) error {
		_, err := io.WriteString(w, "new")
		return err
	})
	require.NoError(t, err)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}
