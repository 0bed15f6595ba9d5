// Package registry implements blob existence/upload/download, cross-repo
// mount, and manifest fetch/upload, all built on top of the
// retry/redirect/auth state machine in registry/httpcli.
package registry

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/distribution/reference"
	"github.com/minidock-tools/minidock/registry/auth"
	"github.com/minidock-tools/minidock/registry/httpcli"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// probeTimeout bounds the initial /v2/ probe; it is the only operation in
// this package with an explicit hard timeout.
const probeTimeout = 4 * time.Second

// Registry is a client for a single (registry, repository) pair. It
// composes three capabilities: manifest fetch/upload, blob exists/get/put,
// and cross-repo mount.
type Registry struct {
	Name       string
	Repository string

	base   *url.URL
	client *httpcli.Client
	log    logrus.FieldLogger
}

// New builds a Registry, defaulting the scheme to https and probing
// HEAD /v2/ to confirm the remote speaks the v2 distribution API.
func New(ctx context.Context, baseURL, repository string, helpers auth.HelperSet, log logrus.FieldLogger) (*Registry, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if _, err := reference.ParseNormalizedNamed(repository); err != nil {
		return nil, errors.Wrapf(err, "invalid repository name %q", repository)
	}

	u, err := url.Parse(ensureScheme(baseURL))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing registry URL %q", baseURL)
	}

	r := &Registry{
		Name:       u.Host,
		Repository: repository,
		base:       u,
		client:     httpcli.New(helpers),
		log:        log.WithField("registry", u.Host).WithField("repository", repository),
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := r.probe(probeCtx); err != nil {
		return nil, err
	}
	return r, nil
}

func ensureScheme(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		return raw
	}
	return "https://" + raw
}

func (r *Registry) probe(ctx context.Context) error {
	u := r.urlFor("/v2/")
	resp, err := r.client.Do(ctx, u, func(req *http.Request) (*http.Request, error) {
		req.Method = http.MethodHead
		return req, nil
	}, 0)
	if err != nil {
		return errors.Wrapf(ErrRegistryProbeFailed, "%s: %v", u, err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("docker-distribution-api-version") == "" {
		return errors.Wrapf(ErrRegistryProbeFailed, "%s: missing docker-distribution-api-version header", u)
	}
	return nil
}

// LogMountFailure records a non-fatal cross-repo mount failure at Warn
// level; a failed mount falls through to the local/source upload paths
// rather than aborting the sync.
func (r *Registry) LogMountFailure(d digest.Digest, err error) {
	r.log.WithField("digest", d.String()).WithError(err).Warn("blob mount failed, falling back")
}

// repositoryURL builds a URL beneath /v2/<repository>/<path>.
func (r *Registry) repositoryURL(path string) string {
	return r.urlFor("/v2/" + r.Repository + path)
}

func (r *Registry) urlFor(path string) string {
	u := *r.base
	u.Path = path
	return u.String()
}
