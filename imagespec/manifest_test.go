package imagespec

import (
	"encoding/json"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestFieldOrder(t *testing.T) {
	m := NewManifest()
	m.Config = BlobReference{Kind: Config, Spec: OCI, Size: 10, Digest: digest.FromString("cfg")}
	m.AddLayer(digest.FromString("layer"), 100, LayerGz)

	raw, err := m.ToBytes()
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "mediaType")

	// Confirm the declared key order by checking the raw byte offsets.
	s := string(raw)
	iMediaType := indexOf(s, `"mediaType"`)
	iSchema := indexOf(s, `"schemaVersion"`)
	iConfig := indexOf(s, `"config"`)
	iLayers := indexOf(s, `"layers"`)
	assert.True(t, iMediaType < iSchema)
	assert.True(t, iSchema < iConfig)
	assert.True(t, iConfig < iLayers)
}

func TestManifestByteStable(t *testing.T) {
	m := NewManifest()
	m.AddLayer(digest.FromString("layer"), 100, LayerGz)

	b1, err := m.ToBytes()
	require.NoError(t, err)
	b2, err := m.ToBytes()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestManifestSetSpecificationTypePropagates(t *testing.T) {
	m := NewManifest()
	m.Config = BlobReference{Kind: Config, Spec: OCI, Digest: digest.FromString("cfg")}
	m.AddLayer(digest.FromString("layer"), 1, LayerGz)

	m.SetSpecificationType(Docker)
	assert.Equal(t, Docker, m.Config.Spec)
	for _, l := range m.Layers {
		assert.Equal(t, Docker, l.Spec)
	}

	raw, err := m.ToBytes()
	require.NoError(t, err)
	reparsed, err := ParseManifest(raw)
	require.NoError(t, err)
	assert.Equal(t, Docker, reparsed.Spec)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
