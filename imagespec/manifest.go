package imagespec

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// Manifest is a schema-version-2 OCI or Docker image manifest: a config
// blob reference plus an ordered list of layer blob references.
//
// Field declaration order below matches the wire order: mediaType,
// schemaVersion, config, layers.
type Manifest struct {
	MediaType     string          `json:"-"`
	SchemaVersion int             `json:"schemaVersion"`
	Config        BlobReference   `json:"config"`
	Layers        []BlobReference `json:"layers"`
	Spec          SpecificationType `json:"-"`
}

// manifestWire carries the exact wire field order; MediaType must be
// declared first so json.Marshal preserves it as the first key.
type manifestWire struct {
	MediaType     string          `json:"mediaType"`
	SchemaVersion int             `json:"schemaVersion"`
	Config        BlobReference   `json:"config"`
	Layers        []BlobReference `json:"layers"`
}

// NewManifest returns an empty, schema-version-2, OCI-flavored manifest.
func NewManifest() Manifest {
	return Manifest{SchemaVersion: 2, Spec: OCI, Layers: nil}
}

func (m Manifest) MarshalJSON() ([]byte, error) {
	mt, err := manifestMediaType(m.Spec)
	if err != nil {
		return nil, err
	}
	layers := m.Layers
	if layers == nil {
		layers = []BlobReference{}
	}
	return json.Marshal(manifestWire{
		MediaType:     mt,
		SchemaVersion: m.SchemaVersion,
		Config:        m.Config,
		Layers:        layers,
	})
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var wire manifestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	spec, err := parseManifestMediaType(wire.MediaType)
	if err != nil {
		return err
	}
	m.MediaType = wire.MediaType
	m.SchemaVersion = wire.SchemaVersion
	m.Config = wire.Config
	m.Layers = wire.Layers
	m.Spec = spec
	return nil
}

// SetSpecificationType rewrites m's flavor and propagates it into the
// config reference and every layer reference, so the same Manifest value
// can be re-serialized under either flavor.
func (m *Manifest) SetSpecificationType(spec SpecificationType) {
	m.Spec = spec
	m.Config = m.Config.WithSpecificationType(spec)
	for i := range m.Layers {
		m.Layers[i] = m.Layers[i].WithSpecificationType(spec)
	}
}

// UpdateConfig replaces the config BlobReference with one describing the
// bytes actually written to disk for the config file.
func (m *Manifest) UpdateConfig(sha digest.Digest, size int64) {
	m.Config = BlobReference{Kind: Config, Spec: m.Spec, Size: size, Digest: sha}
}

// AddLayer appends a new layer BlobReference using the manifest's current
// specification flavor.
func (m *Manifest) AddLayer(sha digest.Digest, size int64, kind BlobKind) {
	m.Layers = append(m.Layers, BlobReference{Kind: kind, Spec: m.Spec, Size: size, Digest: sha})
}

// ToBytes serializes m as pretty-printed (two-space indent) JSON.
func (m Manifest) ToBytes() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling manifest")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, errors.Wrap(err, "indenting manifest")
	}
	return buf.Bytes(), nil
}

// WriteFile writes m to path as pretty-printed JSON.
func (m Manifest) WriteFile(path string) error {
	data, err := m.ToBytes()
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing manifest to %s", path)
}

// ParseManifest parses a Manifest from raw JSON bytes.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrap(err, "parsing manifest")
	}
	return m, nil
}

// ParseManifestFile reads and parses a Manifest from path.
func ParseManifestFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "reading manifest file %s", path)
	}
	return ParseManifest(data)
}
