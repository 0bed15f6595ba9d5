// Package merge implements a deterministic merge engine: it combines a
// MergeConfig's per-layer info list with an optional remote base image and
// optional external execution-config overrides into a ConfigDelta, a
// Manifest, and the list of LayerUploads that resulted from hashing each
// layer file.
package merge

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/minidock-tools/minidock/imagespec"
	"github.com/minidock-tools/minidock/layerhash"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Result is the output of Run.
type Result struct {
	Config   imagespec.ConfigDelta
	Manifest imagespec.Manifest
	Uploads  []imagespec.LayerUpload
}

type hashKey struct {
	path       string
	compressed bool
}

type digestResult struct {
	d    digest.Digest
	size int64
}

// Run executes the merge algorithm. relativeSearchPath, if non-empty, is
// prefixed onto every
// PathPair.Path before it is opened. externalConfigs are applied, in order,
// before the rules-based Infos, so the latter win on any field conflict.
func Run(mc imagespec.MergeConfig, relativeSearchPath string, externalConfigs []imagespec.ExecutionConfig) (Result, error) {
	cfg := imagespec.ConfigDelta{}
	manifest := imagespec.NewManifest()

	if mc.RemoteMetadata != nil && mc.RemoteMetadata.Config != nil {
		loaded, err := imagespec.ParseConfigDeltaFile(resolvePath(relativeSearchPath, mc.RemoteMetadata.Config.Path))
		if err != nil {
			return Result{}, errors.Wrap(err, "loading remote base config")
		}
		cfg = loaded
	}

	if mc.RemoteMetadata != nil && mc.RemoteMetadata.Manifest != nil {
		loaded, err := imagespec.ParseManifestFile(resolvePath(relativeSearchPath, mc.RemoteMetadata.Manifest.Path))
		if err != nil {
			return Result{}, errors.Wrap(err, "loading remote base manifest")
		}
		if len(manifest.Layers) > 0 && len(loaded.Layers) > 0 {
			return Result{}, imagespec.ErrBaseConflict
		}
		manifest = loaded
	}

	digests, err := hashAllLayers(mc.Infos, relativeSearchPath)
	if err != nil {
		return Result{}, err
	}

	for _, ec := range externalConfigs {
		cfg.UpdateWith(imagespec.ConfigDelta{Config: &ec})
	}

	var uploads []imagespec.LayerUpload
	for _, info := range mc.Infos {
		if info.Config != nil {
			cfg.UpdateWith(imagespec.ConfigDelta{Config: info.Config})
		}
		if info.Data != nil {
			path := resolvePath(relativeSearchPath, info.Data.Path)
			compressed, ok := digests[hashKey{path, true}]
			if !ok {
				return Result{}, errors.Wrapf(imagespec.ErrLayerNotFound, "%s", path)
			}
			uncompressed, ok := digests[hashKey{path, false}]
			if !ok {
				return Result{}, errors.Wrapf(imagespec.ErrLayerNotFound, "%s", path)
			}

			cfg.AddLayer(uncompressed.d)
			manifest.AddLayer(compressed.d, compressed.size, imagespec.LayerGz)
			uploads = append(uploads, imagespec.LayerUpload{
				Content:          *info.Data,
				CompressedSha:    compressed.d.String(),
				CompressedSize:   compressed.size,
				UncompressedSha:  uncompressed.d.String(),
				UncompressedSize: uncompressed.size,
			})
		}
	}

	return Result{Config: cfg, Manifest: manifest, Uploads: uploads}, nil
}

// hashAllLayers issues one compressed-hash and one uncompressed-hash task
// per info.Data path, concurrently.
func hashAllLayers(infos []imagespec.Info, relativeSearchPath string) (map[hashKey]digestResult, error) {
	results := make(map[hashKey]digestResult)
	var mu sync.Mutex

	g := new(errgroup.Group)
	for _, info := range infos {
		if info.Data == nil {
			continue
		}
		path := resolvePath(relativeSearchPath, info.Data.Path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, errors.Wrapf(imagespec.ErrLayerNotFound, "%s", path)
		}

		g.Go(func() error {
			d, size, err := layerhash.DigestCompressed(path)
			if err != nil {
				return err
			}
			mu.Lock()
			results[hashKey{path, true}] = digestResult{d, size}
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			d, size, err := layerhash.DigestUncompressed(path)
			if err != nil {
				return err
			}
			mu.Lock()
			results[hashKey{path, false}] = digestResult{d, size}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func resolvePath(relativeSearchPath, path string) string {
	if relativeSearchPath == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(relativeSearchPath, path)
}
