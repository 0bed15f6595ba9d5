package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digestOf(content []byte) digest.Digest {
	sum := sha256.Sum256(content)
	return digest.NewDigestFromHex("sha256", hex.EncodeToString(sum[:]))
}

func newTestRegistry(t *testing.T, mux *http.ServeMux) (*Registry, *httptest.Server) {
	t.Helper()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("docker-distribution-api-version", "registry/2.0")
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	reg, err := New(context.Background(), srv.URL, "library/myimage", nil, nil)
	require.NoError(t, err)
	return reg, srv
}

func TestBlobExists(t *testing.T) {
	content := []byte("hello")
	d := digestOf(content)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/library/myimage/blobs/"+d.String(), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Fatalf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	})
	reg, srv := newTestRegistry(t, mux)
	defer srv.Close()

	exists, err := reg.BlobExists(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBlobExistsNotFound(t *testing.T) {
	d := digestOf([]byte("missing"))
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/library/myimage/blobs/"+d.String(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	reg, srv := newTestRegistry(t, mux)
	defer srv.Close()

	exists, err := reg.BlobExists(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDownloadBlobVerifiesDigest(t *testing.T) {
	content := []byte("hello world")
	d := digestOf(content)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/library/myimage/blobs/"+d.String(), func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	})
	reg, srv := newTestRegistry(t, mux)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "blob")
	err := reg.DownloadBlob(context.Background(), d, int64(len(content)), dest, nil)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDownloadBlobRejectsDigestMismatch(t *testing.T) {
	content := []byte("hello world")
	d := digestOf([]byte("something else"))

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/library/myimage/blobs/"+d.String(), func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	})
	reg, srv := newTestRegistry(t, mux)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "blob")
	err := reg.DownloadBlob(context.Background(), d, int64(len(content)), dest, nil)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestUploadBlob(t *testing.T) {
	content := []byte("upload me")
	d := digestOf(content)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/library/myimage/blobs/uploads/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/v2/library/myimage/blobs/uploads/xyz")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/v2/library/myimage/blobs/uploads/xyz", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, d.String(), r.URL.Query().Get("digest"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, content, body)
		w.Header().Set("Location", "/v2/library/myimage/blobs/"+d.String())
		w.WriteHeader(http.StatusCreated)
	})
	reg, srv := newTestRegistry(t, mux)
	defer srv.Close()

	src := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	err := reg.UploadBlob(context.Background(), d, int64(len(content)), src, nil)
	require.NoError(t, err)
}

func TestTryCopyFromUsesAmpersandJoin(t *testing.T) {
	d := digestOf([]byte("x"))
	var sawQuery string

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/library/myimage/blobs/uploads/", func(w http.ResponseWriter, r *http.Request) {
		sawQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusCreated)
	})
	reg, srv := newTestRegistry(t, mux)
	defer srv.Close()

	err := reg.TryCopyFrom(context.Background(), "library/source", d)
	require.NoError(t, err)
	q, err := url.ParseQuery(sawQuery)
	require.NoError(t, err)
	assert.Equal(t, d.String(), q.Get("mount"))
	assert.Equal(t, "library/source", q.Get("from"))
}

func TestTryCopyFromNonCreatedIsError(t *testing.T) {
	d := digestOf([]byte("x"))
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/library/myimage/blobs/uploads/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	reg, srv := newTestRegistry(t, mux)
	defer srv.Close()

	err := reg.TryCopyFrom(context.Background(), "library/source", d)
	assert.Error(t, err)
}
