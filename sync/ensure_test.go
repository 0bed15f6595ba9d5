package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/minidock-tools/minidock/imagespec"
	"github.com/minidock-tools/minidock/registry"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v2Server(t *testing.T, extra func(mux *http.ServeMux)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("docker-distribution-api-version", "registry/2.0")
		w.WriteHeader(http.StatusOK)
	})
	if extra != nil {
		extra(mux)
	}
	return httptest.NewServer(mux)
}

func newReg(t *testing.T, srv *httptest.Server, repo string) *registry.Registry {
	t.Helper()
	reg, err := registry.New(context.Background(), srv.URL, repo, nil, nil)
	require.NoError(t, err)
	return reg
}

func blobRef(content string, size int64) imagespec.BlobReference {
	return imagespec.BlobReference{Kind: imagespec.LayerGz, Spec: imagespec.OCI, Size: size, Digest: digest.FromString(content)}
}

func TestEnsurePresentAlreadyAtDestination(t *testing.T) {
	d := blobRef("hello", 5)
	destSrv := v2Server(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/v2/dest/repo/blobs/"+d.Digest.String(), func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	defer destSrv.Close()

	state := NewRequestState(nil, newReg(t, destSrv, "dest/repo"), nil, t.TempDir())
	taken, err := EnsurePresent(context.Background(), state, d, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, taken.AlreadyPresent)
}

func TestEnsurePresentMountsFromSource(t *testing.T) {
	d := blobRef("mountme", 7)
	var mounted bool

	destSrv := v2Server(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/v2/dest/repo/blobs/"+d.Digest.String(), func(w http.ResponseWriter, r *http.Request) {
			if mounted {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		})
		mux.HandleFunc("/v2/dest/repo/blobs/uploads/", func(w http.ResponseWriter, r *http.Request) {
			mounted = true
			w.WriteHeader(http.StatusCreated)
		})
	})
	defer destSrv.Close()
	srcSrv := v2Server(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/v2/source/repo/blobs/"+d.Digest.String(), func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	defer srcSrv.Close()

	state := NewRequestState(nil, newReg(t, destSrv, "dest/repo"), newReg(t, srcSrv, "source/repo"), t.TempDir())
	taken, err := EnsurePresent(context.Background(), state, d, nil)
	require.NoError(t, err)
	assert.True(t, mounted)
	assert.Equal(t, 1, taken.CopiedFromSourceRepository)
}

func TestEnsurePresentMountReportsSuccessButBlobAbsentFallsThrough(t *testing.T) {
	content := []byte("mount-lies")
	d := blobRef("mount-lies", int64(len(content)))

	var uploaded bool
	destSrv := v2Server(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/v2/dest/repo/blobs/"+d.Digest.String(), func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		mux.HandleFunc("/v2/dest/repo/blobs/uploads/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("mount") != "" {
				// The mount request itself reports success.
				w.WriteHeader(http.StatusCreated)
				return
			}
			w.Header().Set("Location", "/v2/dest/repo/blobs/uploads/xyz")
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("/v2/dest/repo/blobs/uploads/xyz", func(w http.ResponseWriter, r *http.Request) {
			uploaded = true
			w.Header().Set("Location", "/v2/dest/repo/blobs/"+d.Digest.String())
			w.WriteHeader(http.StatusCreated)
		})
	})
	defer destSrv.Close()

	srcSrv := v2Server(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/v2/source/repo/blobs/"+d.Digest.String(), func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	defer srcSrv.Close()

	local := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(local, content, 0o644))

	state := NewRequestState(map[digest.Digest]string{d.Digest: local}, newReg(t, destSrv, "dest/repo"), newReg(t, srcSrv, "source/repo"), t.TempDir())
	taken, err := EnsurePresent(context.Background(), state, d, nil)
	require.NoError(t, err)
	assert.True(t, uploaded)
	assert.Equal(t, 1, taken.UploadedFromLocal)
	assert.Equal(t, 0, taken.CopiedFromSourceRepository)
}

func TestEnsurePresentUploadsLocalFile(t *testing.T) {
	content := []byte("local-bytes")
	d := blobRef("local-bytes", int64(len(content)))

	var uploaded bool
	destSrv := v2Server(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/v2/dest/repo/blobs/"+d.Digest.String(), func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		mux.HandleFunc("/v2/dest/repo/blobs/uploads/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/v2/dest/repo/blobs/uploads/xyz")
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("/v2/dest/repo/blobs/uploads/xyz", func(w http.ResponseWriter, r *http.Request) {
			uploaded = true
			w.Header().Set("Location", "/v2/dest/repo/blobs/"+d.Digest.String())
			w.WriteHeader(http.StatusCreated)
		})
	})
	defer destSrv.Close()

	local := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(local, content, 0o644))

	state := NewRequestState(map[digest.Digest]string{d.Digest: local}, newReg(t, destSrv, "dest/repo"), nil, t.TempDir())
	taken, err := EnsurePresent(context.Background(), state, d, nil)
	require.NoError(t, err)
	assert.True(t, uploaded)
	assert.Equal(t, 1, taken.UploadedFromLocal)
}

func TestEnsurePresentDownloadsThenUploadsFromSource(t *testing.T) {
	content := []byte("from-source")
	d := blobRef("from-source", int64(len(content)))

	var uploaded bool
	destSrv := v2Server(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/v2/dest/repo/blobs/"+d.Digest.String(), func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		mux.HandleFunc("/v2/dest/repo/blobs/uploads/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/v2/dest/repo/blobs/uploads/xyz")
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("/v2/dest/repo/blobs/uploads/xyz", func(w http.ResponseWriter, r *http.Request) {
			uploaded = true
			w.Header().Set("Location", "/v2/dest/repo/blobs/"+d.Digest.String())
			w.WriteHeader(http.StatusCreated)
		})
	})
	defer destSrv.Close()

	srcSrv := v2Server(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/v2/source/repo/blobs/"+d.Digest.String(), func(w http.ResponseWriter, r *http.Request) {
			w.Write(content)
		})
	})
	defer srcSrv.Close()

	state := NewRequestState(nil, newReg(t, destSrv, "dest/repo"), newReg(t, srcSrv, "source/repo"), t.TempDir())
	taken, err := EnsurePresent(context.Background(), state, d, nil)
	require.NoError(t, err)
	assert.True(t, uploaded)
	assert.Equal(t, 1, taken.DownloadedFromSourceRepository)
	assert.Equal(t, 1, taken.UploadedDataFromSourceRepository)
}

func TestEnsurePresentFailsWhenUnavailable(t *testing.T) {
	d := blobRef("nowhere", 3)
	destSrv := v2Server(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/v2/dest/repo/blobs/"+d.Digest.String(), func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	})
	defer destSrv.Close()

	state := NewRequestState(nil, newReg(t, destSrv, "dest/repo"), nil, t.TempDir())
	_, err := EnsurePresent(context.Background(), state, d, nil)
	assert.ErrorIs(t, err, registry.ErrBlobUnavailable)
}

func TestActionsTakenMerge(t *testing.T) {
	a := ActionsTaken{AlreadyPresent: 1, AlreadyPresentSize: 10}
	b := ActionsTaken{AlreadyPresent: 2, AlreadyPresentSize: 20, UploadedFromLocal: 1}
	a.Merge(b)
	assert.Equal(t, 3, a.AlreadyPresent)
	assert.Equal(t, int64(30), a.AlreadyPresentSize)
	assert.Equal(t, 1, a.UploadedFromLocal)
}
