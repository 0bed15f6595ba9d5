package sync

import (
	"context"
	stdsync "sync"

	"github.com/minidock-tools/minidock/imagespec"
	"github.com/minidock-tools/minidock/progress"
	"github.com/minidock-tools/minidock/registry"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// EnsureManifestPresent runs EnsurePresent concurrently for every layer a
// manifest references. Once all layer workers have completed, the config
// blob is ensured present through a simpler, sequential exists-then-upload
// path (it is never mounted or downloaded from a source registry), and
// finally the manifest itself is uploaded to every tag in tags. Per-layer
// ensure-present calls are independent of each other, so they fan out
// through an errgroup; the semaphore inside RequestState is what actually
// bounds concurrency.
func EnsureManifestPresent(ctx context.Context, state *RequestState, m imagespec.Manifest, tags []string, pool *progress.Pool) (ActionsTaken, error) {
	var mu stdsync.Mutex
	total := ActionsTaken{}

	g, gctx := errgroup.WithContext(ctx)
	for _, blob := range m.Layers {
		blob := blob
		g.Go(func() error {
			var obs progress.Observer = progress.NopObserver
			if pool != nil {
				obs = pool.NewBar(blob.Size, blobKindLabel(blob.Kind), blob.Digest.String(), false)
			}
			taken, err := EnsurePresent(gctx, state, blob, obs)
			if err != nil {
				return err
			}
			mu.Lock()
			total.Merge(taken)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}

	var configObs progress.Observer = progress.NopObserver
	if pool != nil {
		configObs = pool.NewBar(m.Config.Size, blobKindLabel(m.Config.Kind), m.Config.Digest.String(), false)
	}
	configTaken, err := ensureConfigPresent(ctx, state, m.Config, configObs)
	if err != nil {
		return total, err
	}
	total.Merge(configTaken)

	for _, tag := range tags {
		if _, err := state.Destination.UploadManifest(ctx, tag, m); err != nil {
			return total, err
		}
	}
	return total, nil
}

// ensureConfigPresent runs the reduced decision path used for the config
// blob once every layer worker has finished: check whether it already
// exists at the destination and, if not, upload it from its local file.
// Unlike EnsurePresent, the config blob is never cross-repo mounted or
// downloaded from a source registry.
func ensureConfigPresent(ctx context.Context, state *RequestState, blob imagespec.BlobReference, obs progress.Observer) (ActionsTaken, error) {
	d := blob.Digest

	present, err := state.Destination.BlobExists(ctx, d)
	if err != nil {
		return ActionsTaken{}, errors.Wrapf(err, "checking destination for config %s", d)
	}
	if present {
		return alreadyPresent(blob.Size), nil
	}

	localPath, ok := state.LocalDigests[d]
	if !ok {
		return ActionsTaken{}, errors.Wrapf(registry.ErrBlobUnavailable, "config %s", d)
	}

	if err := state.acquire(ctx); err != nil {
		return ActionsTaken{}, err
	}
	defer state.release()
	if err := state.Destination.UploadBlob(ctx, d, blob.Size, localPath, obs); err != nil {
		return ActionsTaken{}, errors.Wrapf(err, "uploading config %s", d)
	}
	return uploadedFromLocal(blob.Size), nil
}

// Target pairs a destination registry with the set of tags to publish a
// manifest under; a synchronization run may push to several registries at
// once.
type Target struct {
	Destination *registry.Registry
	Tags        []string
}

// RunAll ensures m's blobs are present at every target's destination
// registry (each with its own source/cache RequestState) and uploads the
// manifest to each target's tags, merging the ActionsTaken across all of
// them.
func RunAll(ctx context.Context, states []*RequestState, targets []Target, m imagespec.Manifest, pool *progress.Pool) (ActionsTaken, error) {
	if len(states) != len(targets) {
		panic("sync: states and targets must have matching length")
	}
	total := ActionsTaken{}
	for i, target := range targets {
		taken, err := EnsureManifestPresent(ctx, states[i], m, target.Tags, pool)
		if err != nil {
			return total, err
		}
		total.Merge(taken)
	}
	return total, nil
}

func blobKindLabel(k imagespec.BlobKind) string {
	switch k {
	case imagespec.Config:
		return "config"
	case imagespec.LayerGz, imagespec.Layer:
		return "layer"
	default:
		return "layer"
	}
}
