// Command minidock-merge reads a MergeConfig describing layers and config
// fragments, merges them, and writes the resulting config.json, manifest.json,
// manifest_sha256, and upload_metadata.json files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minidock-tools/minidock/imagespec"
	"github.com/minidock-tools/minidock/layerhash"
	"github.com/minidock-tools/minidock/merge"
	"github.com/minidock-tools/minidock/stamp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		mergeConfigPath    = flag.String("merge_config", "", "path to a MergeConfig JSON file")
		externalConfigPath = flag.String("config", "", "optional config JSON file whose \"config\" object is applied before rules-based configs")
		searchPath         = flag.String("search_path", "", "prefix resolved onto relative PathPair.Path values")
		specFlag           = flag.String("spec", "oci", `output specification flavor: "oci" or "docker"`)
		manifestOut        = flag.String("manifest_out", "manifest.json", "output path for the merged manifest")
		configOut          = flag.String("config_out", "config.json", "output path for the merged config")
		uploadMetadataOut  = flag.String("upload_metadata_out", "upload_metadata.json", "output path for upload metadata")
		stampInfoFile      = flag.String("stamp_info_file", "", "optional build-stamp info file to apply to config.config.env")
		dump               = flag.Bool("dump", false, "round-trip and pretty-print an existing manifest/config pair instead of merging")
	)
	flag.Parse()

	log := logrus.StandardLogger()

	if *dump {
		if err := runDump(*manifestOut, *configOut); err != nil {
			log.WithError(err).Error("dump failed")
			os.Exit(1)
		}
		return
	}

	if err := runMerge(log, *mergeConfigPath, *externalConfigPath, *searchPath, *specFlag, *manifestOut, *configOut, *uploadMetadataOut, *stampInfoFile); err != nil {
		log.WithError(err).Error("merge failed")
		os.Exit(1)
	}
}

func runMerge(log logrus.FieldLogger, mergeConfigPath, externalConfigPath, searchPath, specFlag, manifestOut, configOut, uploadMetadataOut, stampInfoFile string) error {
	if mergeConfigPath == "" {
		return errors.New("-merge_config is required")
	}

	mc, err := imagespec.ParseMergeConfigFile(mergeConfigPath)
	if err != nil {
		return err
	}

	var externalConfigs []imagespec.ExecutionConfig
	if externalConfigPath != "" {
		data, err := os.ReadFile(externalConfigPath)
		if err != nil {
			return errors.Wrapf(err, "reading external config %s", externalConfigPath)
		}
		cd, err := imagespec.ParseConfigDelta(data)
		if err != nil {
			return err
		}
		if cd.Config != nil {
			externalConfigs = append(externalConfigs, *cd.Config)
		}
	}

	result, err := merge.Run(mc, searchPath, externalConfigs)
	if err != nil {
		return err
	}

	spec, err := imagespec.ParseSpecificationType(specFlag)
	if err != nil {
		return err
	}
	result.Manifest.SetSpecificationType(spec)

	if stampInfoFile != "" {
		if err := stamp.ApplyFile(&result.Config, stampInfoFile); err != nil {
			return err
		}
	}

	if err := result.Config.WriteFile(configOut); err != nil {
		return err
	}

	configSha, configSize, err := layerhash.DigestCompressed(configOut)
	if err != nil {
		return errors.Wrap(err, "hashing written config file")
	}
	result.Manifest.UpdateConfig(configSha, configSize)

	if err := result.Manifest.WriteFile(manifestOut); err != nil {
		return err
	}
	manifestSha, _, err := layerhash.DigestCompressed(manifestOut)
	if err != nil {
		return errors.Wrap(err, "hashing written manifest file")
	}
	shaOut := strings.TrimSuffix(manifestOut, filepath.Ext(manifestOut)) + "_sha256"
	if err := os.WriteFile(shaOut, []byte(manifestSha.Encoded()), 0o644); err != nil {
		return errors.Wrap(err, "writing manifest_sha256")
	}

	um := imagespec.UploadMetadata{RemoteMetadata: mc.RemoteMetadata}
	for _, u := range result.Uploads {
		um.LayerConfigs = append(um.LayerConfigs, imagespec.LayerConfig{
			LayerData:        u.Content,
			CompressedLength: u.CompressedSize,
			OuterSha256:      u.CompressedSha,
			InnerSha256:      u.UncompressedSha,
		})
	}
	if err := um.WriteFile(uploadMetadataOut); err != nil {
		return err
	}

	log.WithField("layers", len(result.Manifest.Layers)).Info("merge complete")
	return nil
}

func runDump(manifestPath, configPath string) error {
	m, err := imagespec.ParseManifestFile(manifestPath)
	if err != nil {
		return err
	}
	c, err := imagespec.ParseConfigDeltaFile(configPath)
	if err != nil {
		return err
	}
	mb, err := m.ToBytes()
	if err != nil {
		return err
	}
	cb, err := c.ToBytes()
	if err != nil {
		return err
	}
	fmt.Printf("=== %s ===\n%s\n\n=== %s ===\n%s\n", filepath.Base(manifestPath), mb, filepath.Base(configPath), cb)
	return nil
}
