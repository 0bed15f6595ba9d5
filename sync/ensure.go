package sync

import (
	"context"
	"os"

	"github.com/minidock-tools/minidock/imagespec"
	"github.com/minidock-tools/minidock/progress"
	"github.com/minidock-tools/minidock/registry"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// EnsurePresent runs the ensure-present decision tree for a single
// blob: it is already at the destination, it can be cross-repo mounted from
// the source repository, it exists locally and can be uploaded, or it must
// be downloaded from the source registry, cached, and re-uploaded.
func EnsurePresent(ctx context.Context, state *RequestState, blob imagespec.BlobReference, obs progress.Observer) (ActionsTaken, error) {
	if obs == nil {
		obs = progress.NopObserver
	}
	d := blob.Digest

	present, err := state.Destination.BlobExists(ctx, d)
	if err != nil {
		return ActionsTaken{}, errors.Wrapf(err, "checking destination for %s", d)
	}
	if present {
		return alreadyPresent(blob.Size), nil
	}

	sourcePresent := false
	if state.Source != nil {
		sourcePresent, err = state.Source.BlobExists(ctx, d)
		if err != nil {
			return ActionsTaken{}, errors.Wrapf(err, "checking source for %s", d)
		}
		if sourcePresent {
			if err := state.acquire(ctx); err != nil {
				return ActionsTaken{}, err
			}
			mountErr := state.Destination.TryCopyFrom(ctx, state.Source.Repository, d)
			state.release()
			if mountErr != nil {
				state.Destination.LogMountFailure(d, mountErr)
			} else {
				mounted, err := state.Destination.BlobExists(ctx, d)
				if err != nil {
					return ActionsTaken{}, errors.Wrapf(err, "checking destination for %s after mount", d)
				}
				if mounted {
					return copiedFromSource(blob.Size), nil
				}
				state.Destination.LogMountFailure(d, errors.New("mount reported success but blob is not present at destination"))
			}
		}
	}

	if localPath, ok := state.LocalDigests[d]; ok {
		if err := state.acquire(ctx); err != nil {
			return ActionsTaken{}, err
		}
		defer state.release()
		if err := state.Destination.UploadBlob(ctx, d, blob.Size, localPath, obs); err != nil {
			return ActionsTaken{}, errors.Wrapf(err, "uploading local blob %s", d)
		}
		return uploadedFromLocal(blob.Size), nil
	}

	if sourcePresent {
		return ensureViaSourceDownload(ctx, state, blob, obs)
	}

	return ActionsTaken{}, errors.Wrapf(registry.ErrBlobUnavailable, "%s", d)
}

// ensureViaSourceDownload downloads the blob from the source registry into
// the local cache (if it isn't cached already), then uploads the cached
// copy to the destination.
func ensureViaSourceDownload(ctx context.Context, state *RequestState, blob imagespec.BlobReference, obs progress.Observer) (ActionsTaken, error) {
	d := blob.Digest
	cached := state.cachedPath(d)
	downloaded := false

	if _, err := os.Stat(cached); err != nil {
		if err := state.acquire(ctx); err != nil {
			return ActionsTaken{}, err
		}
		dlErr := downloadIntoCache(ctx, state, d, blob.Size, obs)
		state.release()
		if dlErr != nil {
			return ActionsTaken{}, errors.Wrapf(dlErr, "downloading %s from source", d)
		}
		downloaded = true
	}

	if err := state.acquire(ctx); err != nil {
		return ActionsTaken{}, err
	}
	defer state.release()
	if err := state.Destination.UploadBlob(ctx, d, blob.Size, cached, obs); err != nil {
		return ActionsTaken{}, errors.Wrapf(err, "uploading cached blob %s", d)
	}
	return uploadedFromSource(blob.Size, downloaded), nil
}

// downloadIntoCache streams the blob from the source registry into a temp
// file beneath the cache directory, then renames it into place.
func downloadIntoCache(ctx context.Context, state *RequestState, d digest.Digest, size int64, obs progress.Observer) error {
	tmp, err := state.cacheTmpFile()
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := state.Source.DownloadBlob(ctx, d, size, tmpPath, obs); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if _, err := state.commitToCache(tmpPath, d); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *RequestState) acquire(ctx context.Context) error {
	return s.sem.Acquire(ctx, 1)
}

func (s *RequestState) release() {
	s.sem.Release(1)
}
