package registry

import (
	"errors"
	"net/http"

	perrors "github.com/pkg/errors"
)

// Sentinel errors callers can branch on with errors.Is.
var (
	ErrUnauthorized        = errors.New("unable to retrieve auth token: invalid username/password")
	ErrTooManyRequests     = errors.New("too many requests to registry")
	ErrRegistryProbeFailed = errors.New("registry did not respond with a docker-distribution-api-version header")
	ErrDigestMismatch      = errors.New("downloaded blob digest does not match expected digest")
	ErrBlobUnavailable     = errors.New("blob is not present in any configured source")
)

// httpResponseToError translates a non-2xx response into an error; it
// returns nil for 2xx.
func httpResponseToError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrTooManyRequests
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return perrors.Errorf("unexpected status code from registry: %d (%s)", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
}
