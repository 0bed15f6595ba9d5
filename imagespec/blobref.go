package imagespec

import (
	"encoding/json"

	"github.com/opencontainers/go-digest"
)

// BlobReference identifies a single blob (a config or layer) inside a
// Manifest. On the wire it is written as blobReferenceWire, whose field
// declaration order gives the required key order mediaType, size, digest
// (Go's encoding/json emits struct fields in declaration order); the custom
// MarshalJSON exists to derive mediaType from Kind/Spec.
type BlobReference struct {
	Kind   BlobKind
	Spec   SpecificationType
	Size   int64
	Digest digest.Digest
}

// blobReferenceWire is the on-the-wire shape; Kind/Spec are folded into
// MediaType on write and recovered from it on read.
type blobReferenceWire struct {
	MediaType string        `json:"mediaType"`
	Size      int64         `json:"size"`
	Digest    digest.Digest `json:"digest"`
}

func (b BlobReference) MarshalJSON() ([]byte, error) {
	mt, err := mediaTypeFor(b.Spec, b.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(blobReferenceWire{MediaType: mt, Size: b.Size, Digest: b.Digest})
}

func (b *BlobReference) UnmarshalJSON(data []byte) error {
	var wire blobReferenceWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	spec, kind, err := parseBlobMediaType(wire.MediaType)
	if err != nil {
		return err
	}
	b.Kind = kind
	b.Spec = spec
	b.Size = wire.Size
	b.Digest = wire.Digest
	return nil
}

// WithSpecificationType returns a copy of b with its Spec field set to spec;
// used by Manifest.SetSpecificationType to propagate a new flavor into every
// contained BlobReference.
func (b BlobReference) WithSpecificationType(spec SpecificationType) BlobReference {
	b.Spec = spec
	return b
}
