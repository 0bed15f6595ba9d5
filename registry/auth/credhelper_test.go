package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHelperArg(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "helper1")
	p2 := filepath.Join(dir, "helper2")
	require.NoError(t, os.WriteFile(p1, []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(p2, []byte("#!/bin/sh\n"), 0o755))

	set, err := ParseHelperArg("foo.gcr.io:" + p1 + ",bar.gcr.io:" + p2)
	require.NoError(t, err)

	got, ok := set.Lookup("foo.gcr.io")
	require.True(t, ok)
	assert.Equal(t, p1, got)
}

func TestParseHelperArgMissingBinary(t *testing.T) {
	_, err := ParseHelperArg("foo.gcr.io:/no/such/path")
	assert.Error(t, err)
}

func TestParseHelperArgEmpty(t *testing.T) {
	set, err := ParseHelperArg("")
	require.NoError(t, err)
	assert.Empty(t, set)
}
