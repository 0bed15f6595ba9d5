package imagespec

import (
	"encoding/json"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobReferenceRoundTrip(t *testing.T) {
	d := digest.FromString("hello")
	for _, tc := range []struct {
		spec SpecificationType
		kind BlobKind
	}{
		{OCI, Config}, {OCI, LayerGz}, {OCI, Layer},
		{Docker, Config}, {Docker, LayerGz}, {Docker, Layer},
	} {
		b := BlobReference{Kind: tc.kind, Spec: tc.spec, Size: 42, Digest: d}
		raw, err := json.Marshal(b)
		require.NoError(t, err)

		var got BlobReference
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, b, got)
	}
}

func TestBlobReferenceUnknownMediaType(t *testing.T) {
	var b BlobReference
	err := json.Unmarshal([]byte(`{"mediaType":"application/x-bogus","size":1,"digest":"sha256:aa"}`), &b)
	assert.ErrorIs(t, err, ErrUnknownMediaType)
}

func TestBlobReferenceMediaTypeStrings(t *testing.T) {
	cases := []struct {
		spec SpecificationType
		kind BlobKind
		want string
	}{
		{OCI, Config, "application/vnd.oci.image.config.v1+json"},
		{Docker, Config, "application/vnd.docker.container.image.v1+json"},
		{OCI, LayerGz, "application/vnd.oci.image.layer.v1.tar+gzip"},
		{OCI, Layer, "application/vnd.oci.image.layer.v1.tar"},
		{Docker, LayerGz, "application/vnd.docker.image.rootfs.diff.tar.gzip"},
		{Docker, Layer, "application/vnd.docker.image.rootfs.diff.tar"},
	}
	for _, c := range cases {
		got, err := mediaTypeFor(c.spec, c.kind)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}
