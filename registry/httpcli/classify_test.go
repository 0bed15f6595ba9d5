package httpcli

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRedirectRequiresLocationHeader(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusFound, Header: http.Header{}}
	out := classify(resp, nil)
	assert.Equal(t, outcomeOK, out.kind)
}

func TestClassifyServerError(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}}
	out := classify(resp, nil)
	assert.Equal(t, outcomeServerError, out.kind)
}

func TestClassifyAuthFailureRequiresWellFormedChallenge(t *testing.T) {
	h := http.Header{}
	h.Set("WWW-Authenticate", `Bearer realm="https://x/token",service="x"`)
	resp := &http.Response{StatusCode: http.StatusUnauthorized, Header: h}
	out := classify(resp, nil)
	assert.Equal(t, outcomeAuthFailure, out.kind)
	assert.Equal(t, "x", out.bearer.Service)
}
