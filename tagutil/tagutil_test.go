package tagutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUnionsAndSortsAndDedupes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1, v2\nlatest v1"), 0o644))

	got, err := Resolve([]string{"zz", "latest"}, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"latest", "v1", "v2", "zz"}, got)
}

func TestResolveWithoutTagFile(t *testing.T) {
	got, err := Resolve([]string{"b", "a"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestResolveMissingTagFileErrors(t *testing.T) {
	_, err := Resolve(nil, "/nonexistent/path/tags.txt")
	assert.Error(t, err)
}
