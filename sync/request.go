package sync

import (
	"os"
	"path/filepath"

	"github.com/minidock-tools/minidock/registry"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentTransfers bounds how many upload/download/mount calls may be
// in flight at once across the whole run. HEAD probes are not gated by this
// semaphore.
const maxConcurrentTransfers = 32

// RequestState carries everything the ensure-present decision tree needs for
// one synchronization run: where blobs already live locally, the
// destination registry, the optional source registry to mount/copy from,
// and the on-disk cache used when a blob must be downloaded before it can
// be re-uploaded.
type RequestState struct {
	LocalDigests map[digest.Digest]string
	Destination  *registry.Registry
	Source       *registry.Registry
	CachePath    string

	sem *semaphore.Weighted
}

// NewRequestState builds a RequestState with its transfer semaphore
// initialized.
func NewRequestState(localDigests map[digest.Digest]string, destination, source *registry.Registry, cachePath string) *RequestState {
	return &RequestState{
		LocalDigests: localDigests,
		Destination:  destination,
		Source:       source,
		CachePath:    cachePath,
		sem:          semaphore.NewWeighted(maxConcurrentTransfers),
	}
}

// cachedPath returns the path a downloaded blob would be cached at.
func (s *RequestState) cachedPath(d digest.Digest) string {
	return filepath.Join(s.CachePath, d.Encoded())
}

// cacheTmpFile creates an empty temp file inside <cache>/tmp, ready for a
// download to be streamed into, so that a later rename into place is atomic
// with respect to concurrent readers.
func (s *RequestState) cacheTmpFile() (*os.File, error) {
	tmpDir := filepath.Join(s.CachePath, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating cache tmp dir %s", tmpDir)
	}
	f, err := os.CreateTemp(tmpDir, "blob-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating cache temp file")
	}
	return f, nil
}

// commitToCache renames a completed temp download into its final,
// content-addressed cache location.
func (s *RequestState) commitToCache(tmpPath string, d digest.Digest) (string, error) {
	final := s.cachedPath(d)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return "", errors.Wrapf(err, "renaming into cache %s", final)
	}
	return final, nil
}
