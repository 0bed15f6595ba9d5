package stamp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/minidock-tools/minidock/imagespec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStripsStablePrefixAndKeepsSpacesInValue(t *testing.T) {
	entries, err := Parse([]byte("STABLE_BUILD_USER alice\nBUILD_TIMESTAMP 2026 07 31\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"BUILD_USER=alice", "BUILD_TIMESTAMP=2026 07 31"}, entries)
}

func TestParseSkipsBlankAndKeylessLines(t *testing.T) {
	entries, err := Parse([]byte("\nNOVALUE\nKEY value\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"KEY=value"}, entries)
}

func TestApplyFileAppendsToEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stamp.txt")
	require.NoError(t, os.WriteFile(path, []byte("STABLE_VERSION 1.2.3\n"), 0o644))

	cfg := &imagespec.ConfigDelta{Config: &imagespec.ExecutionConfig{Env: []string{"EXISTING=1"}}}
	require.NoError(t, ApplyFile(cfg, path))
	assert.Equal(t, []string{"EXISTING=1", "VERSION=1.2.3"}, cfg.Config.Env)
}

func TestApplyFileCreatesConfigWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stamp.txt")
	require.NoError(t, os.WriteFile(path, []byte("KEY value\n"), 0o644))

	cfg := &imagespec.ConfigDelta{}
	require.NoError(t, ApplyFile(cfg, path))
	require.NotNil(t, cfg.Config)
	assert.Equal(t, []string{"KEY=value"}, cfg.Config.Env)
}
