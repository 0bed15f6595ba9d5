// Package pusherconfig parses the JSON configuration file that drives
// cmd/minidock-push: which manifest to publish, which registries and tags
// to publish it to, and how stamping/credential inputs are sourced.
package pusherconfig

import (
	"encoding/json"
	"os"

	"github.com/minidock-tools/minidock/imagespec"
	"github.com/pkg/errors"
)

// PusherConfig is the on-disk shape consumed by cmd/minidock-push.
type PusherConfig struct {
	ManifestPath       string   `json:"manifest_path"`
	ConfigPath         string   `json:"config_path"`
	UploadMetadataPath string   `json:"upload_metadata_path"`
	RegistryList       []string `json:"registry_list"`
	RegistryType       string   `json:"registry_type"`
	Repository         string   `json:"repository"`
	ContainerTags      []string `json:"container_tags,omitempty"`
	ContainerTagFile   string   `json:"container_tag_file,omitempty"`
	StampInfoFile      string   `json:"stamp_info_file"`
	StampToEnv         bool     `json:"stamp_to_env"`
}

// SpecificationType parses RegistryType ("oci"/"docker") into the shared
// imagespec enum, defaulting to the zero value's error behavior of
// ParseSpecificationType.
func (c PusherConfig) SpecificationType() (imagespec.SpecificationType, error) {
	return imagespec.ParseSpecificationType(c.RegistryType)
}

// Load reads and parses a PusherConfig from path.
func Load(path string) (PusherConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PusherConfig{}, errors.Wrapf(err, "reading pusher config %s", path)
	}
	var c PusherConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return PusherConfig{}, errors.Wrapf(err, "parsing pusher config %s", path)
	}
	if c.Repository == "" {
		return PusherConfig{}, errors.New("pusher config missing repository")
	}
	if len(c.RegistryList) == 0 {
		return PusherConfig{}, errors.New("pusher config missing registry_list")
	}
	return c, nil
}
