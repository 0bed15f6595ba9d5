// Command minidock-push reads a PusherConfig describing a merged image and
// a list of destination registries, ensures every blob is present at each
// destination (mounting, uploading, or downloading-then-uploading as
// needed), and publishes the manifest under the resolved tag set.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/minidock-tools/minidock/imagespec"
	"github.com/minidock-tools/minidock/layerhash"
	"github.com/minidock-tools/minidock/progress"
	"github.com/minidock-tools/minidock/pusherconfig"
	"github.com/minidock-tools/minidock/registry"
	"github.com/minidock-tools/minidock/registry/auth"
	"github.com/minidock-tools/minidock/stamp"
	"github.com/minidock-tools/minidock/sync"
	"github.com/minidock-tools/minidock/tagutil"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		pusherConfigPath = flag.String("pusher_config", "", "path to a PusherConfig JSON file")
		cachePath        = flag.String("cache_path", "", "local directory used to cache blobs downloaded from a source registry")
		sourceRegistry   = flag.String("source_registry", "", "optional source registry base URL to mount/copy blobs from")
		credHelpers      = flag.String("docker_authorization_helpers", "", "comma-separated service:path credential helper list")
		quiet            = flag.Bool("quiet", false, "suppress progress bars")
	)
	flag.Parse()

	log := logrus.StandardLogger()

	if err := run(log, *pusherConfigPath, *cachePath, *sourceRegistry, *credHelpers, *quiet); err != nil {
		log.WithError(err).Error("push failed")
		os.Exit(1)
	}
}

func run(log logrus.FieldLogger, pusherConfigPath, cachePath, sourceRegistryURL, credHelperArg string, quiet bool) error {
	if pusherConfigPath == "" {
		return errors.New("-pusher_config is required")
	}

	cfg, err := pusherconfig.Load(pusherConfigPath)
	if err != nil {
		return err
	}

	tags, err := tagutil.Resolve(cfg.ContainerTags, cfg.ContainerTagFile)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		return errors.New("no tags resolved from container_tags/container_tag_file")
	}

	m, err := imagespec.ParseManifestFile(cfg.ManifestPath)
	if err != nil {
		return err
	}
	spec, err := cfg.SpecificationType()
	if err != nil {
		return err
	}
	m.SetSpecificationType(spec)

	if cfg.StampToEnv && cfg.StampInfoFile != "" {
		configDelta, err := imagespec.ParseConfigDeltaFile(cfg.ConfigPath)
		if err != nil {
			return err
		}
		if err := stamp.ApplyFile(&configDelta, cfg.StampInfoFile); err != nil {
			return err
		}
		if err := configDelta.WriteFile(cfg.ConfigPath); err != nil {
			return err
		}
		sha, size, err := layerhash.DigestCompressed(cfg.ConfigPath)
		if err != nil {
			return errors.Wrap(err, "hashing stamped config")
		}
		m.UpdateConfig(sha, size)
	}

	um, err := imagespec.ParseUploadMetadataFile(cfg.UploadMetadataPath)
	if err != nil {
		return err
	}
	localDigests := map[digest.Digest]string{}
	for _, lc := range um.LayerConfigs {
		localDigests[digest.Digest(lc.OuterSha256)] = lc.LayerData.Path
	}
	localDigests[m.Config.Digest] = cfg.ConfigPath

	var helpers auth.HelperSet
	if credHelperArg != "" {
		helpers, err = auth.ParseHelperArg(credHelperArg)
		if err != nil {
			return err
		}
	}

	ctx := context.Background()
	var source *registry.Registry
	if sourceRegistryURL != "" && um.RemoteMetadata != nil && um.RemoteMetadata.Repository != nil {
		source, err = registry.New(ctx, sourceRegistryURL, *um.RemoteMetadata.Repository, helpers, log)
		if err != nil {
			return err
		}
	}

	var pool *progress.Pool
	if !quiet {
		pool = progress.NewPool(os.Stderr)
	}

	total := sync.ActionsTaken{}
	for _, registryURL := range cfg.RegistryList {
		dest, err := registry.New(ctx, registryURL, cfg.Repository, helpers, log)
		if err != nil {
			return err
		}
		state := sync.NewRequestState(localDigests, dest, source, cachePath)
		taken, err := sync.EnsureManifestPresent(ctx, state, m, tags, pool)
		if err != nil {
			return err
		}
		total.Merge(taken)
	}
	if pool != nil {
		pool.Wait()
	}

	log.WithField("summary", total.String()).Info("push complete")
	return nil
}
