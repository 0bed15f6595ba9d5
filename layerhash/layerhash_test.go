package layerhash

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGzipFixture(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	_, err = gw.Write(content)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return path
}

func TestDigestCompressedAndUncompressed(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello")
	path := writeGzipFixture(t, dir, "layer.tar.gz", content)

	compressedBytes, err := os.ReadFile(path)
	require.NoError(t, err)
	wantCompressed := sha256.Sum256(compressedBytes)

	gotCompressed, compressedSize, err := DigestCompressed(path)
	require.NoError(t, err)
	assert.Equal(t, "sha256:"+hex.EncodeToString(wantCompressed[:]), gotCompressed.String())
	assert.Equal(t, int64(len(compressedBytes)), compressedSize)

	wantUncompressed := sha256.Sum256(content)
	gotUncompressed, uncompressedSize, err := DigestUncompressed(path)
	require.NoError(t, err)
	assert.Equal(t, "sha256:"+hex.EncodeToString(wantUncompressed[:]), gotUncompressed.String())
	assert.Equal(t, int64(len(content)), uncompressedSize)
}

func TestDigestUncompressedRejectsMalformedData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("not a valid gzip stream"), 0o644))

	_, _, err := DigestUncompressed(path)
	assert.Error(t, err)
}

func TestDigestCompressedMissingFile(t *testing.T) {
	_, _, err := DigestCompressed(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
