package httpcli

import (
	"errors"
	"net"
	"net/http"

	"github.com/minidock-tools/minidock/registry/auth"
	perrors "github.com/pkg/errors"
)

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeRedirect
	outcomeConnectError
	outcomeTransportError
	outcomeAuthFailure
	outcomeServerError
)

type outcome struct {
	kind     outcomeKind
	location string
	bearer   auth.BearerConfig
	err      error
}

// classify maps a single HTTP round-trip's (response, error) pair onto one
// of five outcomes: success, a retryable server/connection error, an
// auth challenge, a redirect, or a terminal error.
func classify(resp *http.Response, err error) outcome {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return outcome{kind: outcomeConnectError, err: perrors.Wrap(err, "connecting to registry")}
		}
		return outcome{kind: outcomeTransportError, err: perrors.Wrap(err, "dispatching request")}
	}

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		if loc := resp.Header.Get("Location"); loc != "" {
			return outcome{kind: outcomeRedirect, location: loc}
		}
	case resp.StatusCode == http.StatusUnauthorized:
		if challenge := resp.Header.Get("WWW-Authenticate"); challenge != "" {
			if bearer, ok := stripBearerScheme(challenge); ok {
				cfg, parseErr := auth.ParseBearerChallenge(bearer)
				if parseErr == nil {
					return outcome{kind: outcomeAuthFailure, bearer: cfg}
				}
			}
		}
	case resp.StatusCode >= 500:
		return outcome{kind: outcomeServerError, err: perrors.Errorf("server error %d", resp.StatusCode)}
	}
	return outcome{kind: outcomeOK}
}

const bearerScheme = "Bearer "

func stripBearerScheme(header string) (string, bool) {
	if len(header) < len(bearerScheme) || header[:len(bearerScheme)] != bearerScheme {
		return "", false
	}
	return header[len(bearerScheme):], true
}
