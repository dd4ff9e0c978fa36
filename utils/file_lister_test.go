package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0644))
	}
}

func TestListRasters(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b_2016.tif", "a_2015.TIF", "c_2015.tif", ".c_2015.tif.1234.tmp.tif", "notes.txt", "d.tiff")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.tif"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "c_2015.tif"), filepath.Join(dir, "e_2015.tif")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "absent.tif"), filepath.Join(dir, "f_2015.tif")))

	files, err := ListRasters(dir, ".tif", "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_2015.TIF"),
		filepath.Join(dir, "b_2016.tif"),
		filepath.Join(dir, "c_2015.tif"),
		filepath.Join(dir, "e_2015.tif"),
	}, files)

	files, err = ListRasters(dir, ".tif", `path =~ '_2015'`)
	require.NoError(t, err)
	assert.Len(t, files, 3)
	for _, f := range files {
		assert.Contains(t, f, "_2015")
	}
}

func TestListRastersErrors(t *testing.T) {
	_, err := ListRasters(filepath.Join(t.TempDir(), "missing"), ".tif", "")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	dir := t.TempDir()
	touch(t, dir, "a.tif")
	_, err = ListRasters(dir, ".tif", "name == 'a'")
	assert.Error(t, err)

	_, err = ListRasters(dir, ".tif", "path + 'x'")
	assert.Error(t, err)
}
