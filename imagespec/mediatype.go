// Package imagespec defines the on-disk and wire JSON shapes for container
// image manifests and configuration deltas, and the OCI/Docker media-type
// mapping between them.
package imagespec

import (
	"github.com/docker/distribution/manifest/schema2"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
)

// SpecificationType selects which of the two supported manifest/config
// flavors a BlobReference or Manifest belongs to.
type SpecificationType int

const (
	// OCI is the default specification flavor.
	OCI SpecificationType = iota
	Docker
)

func (s SpecificationType) String() string {
	switch s {
	case OCI:
		return "oci"
	case Docker:
		return "docker"
	default:
		return "unknown"
	}
}

// ParseSpecificationType accepts the "oci"/"docker" strings used in Pusher
// configuration files.
func ParseSpecificationType(s string) (SpecificationType, error) {
	switch s {
	case "oci":
		return OCI, nil
	case "docker":
		return Docker, nil
	default:
		return OCI, errors.Errorf("unknown registry_type %q", s)
	}
}

// BlobKind is the role a blob plays within a manifest.
type BlobKind int

const (
	Config BlobKind = iota
	LayerGz
	Layer
)

// Media-type strings are taken directly from the upstream image-spec and
// docker/distribution packages rather than retyped as literals, so a change
// in either wire format can't silently diverge from what this package emits.
// The one exception is the uncompressed Docker layer type, spelled out below.
const (
	mtOCIConfig  = imgspecv1.MediaTypeImageConfig
	mtOCILayerGz = imgspecv1.MediaTypeImageLayerGzip
	mtOCILayer   = imgspecv1.MediaTypeImageLayer

	mtDockerConfig  = schema2.MediaTypeImageConfig
	mtDockerLayerGz = schema2.MediaTypeLayer
	mtDockerLayer   = "application/vnd.docker.image.rootfs.diff.tar"

	MediaTypeOCIManifest    = imgspecv1.MediaTypeImageManifest
	MediaTypeDockerManifest = schema2.MediaTypeManifest
)

// blobMediaType is the closed 6-entry bijection table between (spec, kind)
// and the wire media-type string. It is the single source of truth for both
// directions of the mapping.
var blobMediaType = [2][3]string{
	OCI:    {Config: mtOCIConfig, LayerGz: mtOCILayerGz, Layer: mtOCILayer},
	Docker: {Config: mtDockerConfig, LayerGz: mtDockerLayerGz, Layer: mtDockerLayer},
}

func mediaTypeFor(spec SpecificationType, kind BlobKind) (string, error) {
	if spec != OCI && spec != Docker {
		return "", errors.Errorf("unknown specification type %d", spec)
	}
	if kind != Config && kind != LayerGz && kind != Layer {
		return "", errors.Errorf("unknown blob kind %d", kind)
	}
	return blobMediaType[spec][kind], nil
}

// parseBlobMediaType reverses mediaTypeFor. Unrecognized media types are
// reported via ErrUnknownMediaType.
func parseBlobMediaType(mt string) (SpecificationType, BlobKind, error) {
	for spec := range blobMediaType {
		for kind, candidate := range blobMediaType[spec] {
			if candidate == mt {
				return SpecificationType(spec), BlobKind(kind), nil
			}
		}
	}
	return OCI, Config, errors.Wrapf(ErrUnknownMediaType, "media type %q", mt)
}

// manifestMediaType returns the top-level manifest mediaType for spec.
func manifestMediaType(spec SpecificationType) (string, error) {
	switch spec {
	case OCI:
		return MediaTypeOCIManifest, nil
	case Docker:
		return MediaTypeDockerManifest, nil
	default:
		return "", errors.Errorf("unknown specification type %d", spec)
	}
}

// parseManifestMediaType reverses manifestMediaType.
func parseManifestMediaType(mt string) (SpecificationType, error) {
	switch mt {
	case MediaTypeOCIManifest:
		return OCI, nil
	case MediaTypeDockerManifest:
		return Docker, nil
	default:
		return OCI, errors.Wrapf(ErrUnknownMediaType, "manifest media type %q", mt)
	}
}
