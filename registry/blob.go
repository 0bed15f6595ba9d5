package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/minidock-tools/minidock/progress"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

const retries = 3

// BlobExists implements the BlobExists operation: HEAD /blobs/<d>.
func (r *Registry) BlobExists(ctx context.Context, d digest.Digest) (bool, error) {
	u := r.repositoryURL("/blobs/" + d.String())
	resp, err := r.client.Do(ctx, u, func(req *http.Request) (*http.Request, error) {
		req.Method = http.MethodHead
		return req, nil
	}, retries)
	if err != nil {
		return false, errors.Wrapf(err, "checking blob %s", d)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, httpResponseToError(resp)
	}
}

// DownloadBlob implements the DownloadBlob operation: GET /blobs/<d>,
// streaming into destPath and re-verifying the digest of the downloaded
// bytes before returning success.
func (r *Registry) DownloadBlob(ctx context.Context, d digest.Digest, size int64, destPath string, obs progress.Observer) error {
	if obs == nil {
		obs = progress.NopObserver
	}
	u := r.repositoryURL("/blobs/" + d.String())
	resp, err := r.client.Do(ctx, u, nil, retries)
	if err != nil {
		return errors.Wrapf(err, "downloading blob %s", d)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpResponseToError(resp)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", destPath)
	}
	defer out.Close()

	h := sha256.New()
	n, err := streamWithProgress(io.MultiWriter(out, h), resp.Body, obs)
	if err != nil {
		return errors.Wrapf(err, "streaming blob %s", d)
	}

	got := digest.NewDigestFromHex("sha256", hex.EncodeToString(h.Sum(nil)))
	if got != d || (size > 0 && n != size) {
		return errors.Wrapf(ErrDigestMismatch, "expected %s (%d bytes), got %s (%d bytes)", d, size, got, n)
	}
	return nil
}

// UploadBlob implements the UploadBlob operation: POST to obtain an upload
// location, then PUT the blob body with digest appended to the location's
// query string.
func (r *Registry) UploadBlob(ctx context.Context, d digest.Digest, size int64, srcPath string, obs progress.Observer) error {
	if obs == nil {
		obs = progress.NopObserver
	}
	postURL := r.repositoryURL("/blobs/uploads/")
	resp, err := r.client.Do(ctx, postURL, func(req *http.Request) (*http.Request, error) {
		req.Method = http.MethodPost
		return req, nil
	}, retries)
	if err != nil {
		return errors.Wrapf(err, "initiating blob upload for %s", d)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return httpResponseToError(resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return errors.New("upload initiation response missing Location header")
	}

	putURL, err := appendDigest(postURL, location, d)
	if err != nil {
		return err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", srcPath)
	}
	defer f.Close()

	finalResp, err := r.client.Do(ctx, putURL, func(req *http.Request) (*http.Request, error) {
		req.Method = http.MethodPut
		req.Body = io.NopCloser(&progressReader{r: f, obs: obs})
		req.ContentLength = size
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	}, retries)
	if err != nil {
		return errors.Wrapf(err, "uploading blob %s", d)
	}
	defer finalResp.Body.Close()

	if finalResp.StatusCode != http.StatusCreated && finalResp.StatusCode != http.StatusOK {
		return httpResponseToError(finalResp)
	}
	if finalResp.Header.Get("Location") == "" {
		return errors.New("upload completion response missing Location header")
	}
	return nil
}

// TryCopyFrom implements the cross-repo mount operation: POST
// /blobs/uploads/?mount=<d>&from=<sourceRepository>. A non-201 response is
// reported as an error; callers treat this failure as non-fatal and fall
// through to the local/source paths.
func (r *Registry) TryCopyFrom(ctx context.Context, sourceRepository string, d digest.Digest) error {
	q := url.Values{}
	q.Set("mount", d.String())
	q.Set("from", sourceRepository)
	u := r.repositoryURL("/blobs/uploads/") + "?" + q.Encode()

	resp, err := r.client.Do(ctx, u, func(req *http.Request) (*http.Request, error) {
		req.Method = http.MethodPost
		return req, nil
	}, retries)
	if err != nil {
		return errors.Wrapf(err, "mounting blob %s from %s", d, sourceRepository)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return errors.Errorf("mount of %s from %s failed: status %d", d, sourceRepository, resp.StatusCode)
	}
	return nil
}

// appendDigest resolves location (which may be host-relative) against
// postURL and appends a digest query parameter using net/url.Values so the
// "?" vs "&" join is handled structurally.
func appendDigest(postURL, location string, d digest.Digest) (string, error) {
	base, err := url.Parse(postURL)
	if err != nil {
		return "", errors.Wrapf(err, "parsing %s", postURL)
	}
	loc, err := url.Parse(location)
	if err != nil {
		return "", errors.Wrapf(err, "parsing Location %s", location)
	}
	if loc.Host == "" {
		loc.Scheme = base.Scheme
		loc.Host = base.Host
	}
	q := loc.Query()
	q.Set("digest", d.String())
	loc.RawQuery = q.Encode()
	return loc.String(), nil
}

type progressReader struct {
	r   io.Reader
	obs progress.Observer
	n   int64
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.n += int64(n)
		p.obs.SetPosition(p.n / (1024 * 1024))
	}
	return n, err
}

func streamWithProgress(dst io.Writer, src io.Reader, obs progress.Observer) (int64, error) {
	buf := make([]byte, 64*1024)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
			obs.SetPosition(total / (1024 * 1024))
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
