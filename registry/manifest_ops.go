package registry

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/minidock-tools/minidock/imagespec"
	"github.com/pkg/errors"
)

const dockerV2ManifestAccept = imagespec.MediaTypeDockerManifest + ", " + imagespec.MediaTypeOCIManifest

// FetchManifest implements GET /manifests/<ref>, returning the raw body and
// its Content-Type.
func (r *Registry) FetchManifest(ctx context.Context, ref string) ([]byte, string, error) {
	u := r.repositoryURL("/manifests/" + ref)
	resp, err := r.client.Do(ctx, u, func(req *http.Request) (*http.Request, error) {
		req.Header.Set("Accept", dockerV2ManifestAccept)
		return req, nil
	}, retries)
	if err != nil {
		return nil, "", errors.Wrapf(err, "fetching manifest %s", ref)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", httpResponseToError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "reading manifest body")
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// UploadManifest implements the idempotent PUT /manifests/<tag> operation:
// the existing tag is fetched first, and the PUT is skipped if its bytes
// already match byte-for-byte.
func (r *Registry) UploadManifest(ctx context.Context, tag string, m imagespec.Manifest) (string, error) {
	body, err := m.ToBytes()
	if err != nil {
		return "", err
	}

	if existing, _, err := r.FetchManifest(ctx, tag); err == nil && bytes.Equal(existing, body) {
		r.log.WithField("tag", tag).Debug("manifest already up to date, skipping upload")
		return "", nil
	}

	mediaType := imagespec.MediaTypeOCIManifest
	if m.Spec == imagespec.Docker {
		mediaType = imagespec.MediaTypeDockerManifest
	}

	u := r.repositoryURL("/manifests/" + tag)
	resp, err := r.client.Do(ctx, u, func(req *http.Request) (*http.Request, error) {
		req.Method = http.MethodPut
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
		req.Header.Set("Content-Type", mediaType)
		return req, nil
	}, retries)
	if err != nil {
		return "", errors.Wrapf(err, "uploading manifest for tag %s", tag)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", httpResponseToError(resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New("manifest upload response missing Location header")
	}
	return location, nil
}
