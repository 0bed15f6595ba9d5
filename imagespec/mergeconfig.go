package imagespec

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// PathPair is two views of the same file used by the build system:
// a runfiles-relative short path and the absolute filesystem path.
type PathPair struct {
	ShortPath string `json:"short_path"`
	Path      string `json:"path"`
}

// RemoteMetadata describes an optional base image to seed a merge from, or
// to push layer copies against.
type RemoteMetadata struct {
	Config     *PathPair `json:"config,omitempty"`
	Manifest   *PathPair `json:"manifest,omitempty"`
	Registry   *string   `json:"registry,omitempty"`
	Repository *string   `json:"repository,omitempty"`
	Digest     *string   `json:"digest,omitempty"`
}

// Info is a single merge input: an optional layer file plus an optional
// config delta fragment to apply.
type Info struct {
	Data   *PathPair        `json:"data,omitempty"`
	Config *ExecutionConfig `json:"config,omitempty"`
}

// MergeConfig is the top-level input to the merge engine.
type MergeConfig struct {
	Infos          []Info          `json:"infos"`
	RemoteMetadata *RemoteMetadata `json:"remote_metadata,omitempty"`
}

// WriteFile writes m as pretty-printed JSON to path.
func (m MergeConfig) WriteFile(path string) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling merge config")
	}
	return errors.Wrapf(os.WriteFile(path, raw, 0o644), "writing merge config to %s", path)
}

// ParseMergeConfigFile reads and parses a MergeConfig from path.
func ParseMergeConfigFile(path string) (MergeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MergeConfig{}, errors.Wrapf(err, "reading merge config file %s", path)
	}
	var m MergeConfig
	if err := json.Unmarshal(data, &m); err != nil {
		return MergeConfig{}, errors.Wrap(err, "parsing merge config")
	}
	return m, nil
}

// LayerUpload records the hashing results for one merged layer, bridging
// the merge step and the push step.
type LayerUpload struct {
	Content            PathPair `json:"content"`
	CompressedSha      string   `json:"compressed_sha"`
	CompressedSize     int64    `json:"compressed_size"`
	UncompressedSha    string   `json:"uncompressed_sha"`
	UncompressedSize   int64    `json:"uncompressed_size"`
}

// LayerConfig is the UploadMetadata entry describing one layer already
// produced by the merge step and awaiting registry upload.
type LayerConfig struct {
	LayerData        PathPair `json:"layer_data"`
	CompressedLength int64    `json:"compressed_length"`
	OuterSha256      string   `json:"outer_sha256"`
	InnerSha256      string   `json:"inner_sha256"`
}

// UploadMetadata is the persisted bridge between the merge step and the
// push step: which local files correspond to which blob digests, plus the
// optional remote base image this build was layered onto.
type UploadMetadata struct {
	LayerConfigs   []LayerConfig   `json:"layer_configs"`
	RemoteMetadata *RemoteMetadata `json:"remote_metadata,omitempty"`
}

// WriteFile writes u as pretty-printed JSON to path.
func (u UploadMetadata) WriteFile(path string) error {
	raw, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling upload metadata")
	}
	return errors.Wrapf(os.WriteFile(path, raw, 0o644), "writing upload metadata to %s", path)
}

// ParseUploadMetadataFile reads and parses UploadMetadata from path.
func ParseUploadMetadataFile(path string) (UploadMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return UploadMetadata{}, errors.Wrapf(err, "reading upload metadata file %s", path)
	}
	var u UploadMetadata
	if err := json.Unmarshal(data, &u); err != nil {
		return UploadMetadata{}, errors.Wrap(err, "parsing upload metadata")
	}
	return u, nil
}
