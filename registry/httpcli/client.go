// Package httpcli implements a shared HTTP client state machine: retry,
// redirect-rebase, and bearer-challenge handling around a single
// *http.Client, with a mutex-guarded shared bearer token.
package httpcli

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/minidock-tools/minidock/registry/auth"
	"github.com/pkg/errors"
)

// BuildFunc customizes a bare *http.Request (method, body, extra headers)
// before it is dispatched. It is how callers attach streaming upload
// bodies.
type BuildFunc func(req *http.Request) (*http.Request, error)

// Client is a shared, goroutine-safe facility wrapping a *http.Client with
// the retry/redirect/bearer-auth state machine.
type Client struct {
	http    *http.Client
	helpers auth.HelperSet

	mu    sync.Mutex
	token string
}

// New returns a Client using helpers for credential-helper lookups during
// bearer-challenge handling.
func New(helpers auth.HelperSet) *Client {
	return &Client{http: &http.Client{CheckRedirect: noFollowRedirects}, helpers: helpers}
}

// noFollowRedirects disables net/http's own redirect following: the state
// machine classifies 3xx itself so it can drop the bearer token on rebase.
func noFollowRedirects(req *http.Request, via []*http.Request) error {
	return http.ErrUseLastResponse
}

// Do dispatches a request to rawURL, retrying per the outcome classification
// rules in classify.go. retries is the number of *extra* attempts allowed
// after the first.
func (c *Client) Do(ctx context.Context, rawURL string, build BuildFunc, retries int) (*http.Response, error) {
	currentURL := rawURL
	authRetries := retries
	if authRetries < 3 {
		authRetries = 3
	}

	var lastErr error
	attempt, authAttempt := 0, 0
	for attempt <= retries && authAttempt <= authRetries {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, currentURL, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "building request for %s", currentURL)
		}
		if build != nil {
			req, err = build(req)
			if err != nil {
				return nil, err
			}
		}

		c.mu.Lock()
		token := c.token
		c.mu.Unlock()
		if token != "" && req.Header.Get("Authorization") == "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, doErr := c.http.Do(req)
		outcome := classify(resp, doErr)

		switch outcome.kind {
		case outcomeOK:
			return resp, nil

		case outcomeRedirect:
			currentURL, err = rebaseURL(currentURL, outcome.location)
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
			attempt++

		case outcomeConnectError, outcomeServerError:
			lastErr = outcome.err
			attempt++

		case outcomeAuthFailure:
			// Refreshes are serialized under mu. If another request already
			// replaced the token this attempt was sent with, retry with that
			// token instead of issuing a second refresh.
			c.mu.Lock()
			if c.token == token {
				tr, authErr := auth.Authenticate(c.http, outcome.bearer, c.helpers)
				if authErr != nil {
					lastErr = authErr
				} else if tok, ok := tr.Bearer(); ok {
					c.token = tok
				}
			}
			c.mu.Unlock()
			// The auth round-trip does not consume the main retry budget.
			authAttempt++

		case outcomeTransportError:
			return nil, outcome.err
		}
	}
	if lastErr == nil {
		lastErr = errors.New("request retries exhausted")
	}
	return nil, lastErr
}

// rebaseURL applies a 3xx Location onto currentURL: if location has no
// host, the previous scheme/authority is kept and only path+query are
// substituted.
func rebaseURL(currentURL, location string) (string, error) {
	base, err := url.Parse(currentURL)
	if err != nil {
		return "", errors.Wrapf(err, "parsing current URL %s", currentURL)
	}
	loc, err := url.Parse(location)
	if err != nil {
		return "", errors.Wrapf(err, "parsing redirect location %s", location)
	}
	if loc.Host == "" {
		loc.Scheme = base.Scheme
		loc.Host = base.Host
	}
	return loc.String(), nil
}
