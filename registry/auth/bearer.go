// Package auth implements the bearer-challenge token flow: parsing a
// WWW-Authenticate header, invoking an external credential helper, and
// exchanging credentials for a bearer token.
package auth

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// BearerConfig is the parsed content of a "WWW-Authenticate: Bearer ..."
// challenge header.
type BearerConfig struct {
	Realm   string
	Service string
	Scope   string
}

var tokenPattern = regexp.MustCompile(`(".*?"|[^",\s]+)`)

// ParseBearerChallenge tokenizes and pairs a Bearer challenge header value
// (the part after the leading "Bearer " scheme token has been stripped).
// realm and service are mandatory; scope is optional. Odd token counts are
// rejected.
func ParseBearerChallenge(value string) (BearerConfig, error) {
	tokens := tokenPattern.FindAllString(value, -1)
	if len(tokens)%2 != 0 {
		return BearerConfig{}, errors.Errorf("malformed auth header %q: odd token count", value)
	}

	var cfg BearerConfig
	for i := 0; i < len(tokens); i += 2 {
		key := strings.TrimSuffix(tokens[i], "=")
		val := unquote(tokens[i+1])
		switch key {
		case "realm":
			cfg.Realm = val
		case "service":
			cfg.Service = val
		case "scope":
			cfg.Scope = val
		default:
			// unknown keys are ignored
		}
	}
	if cfg.Realm == "" {
		return BearerConfig{}, errors.New("malformed auth header: missing realm")
	}
	if cfg.Service == "" {
		return BearerConfig{}, errors.New("malformed auth header: missing service")
	}
	return cfg, nil
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// AuthURL builds the token-service request URL by appending service (and,
// if present, scope) query parameters onto the realm, using net/url.Values
// so the "?" vs "&" join is handled structurally rather than by manual
// string concatenation.
func (c BearerConfig) AuthURL() (string, error) {
	u, err := url.Parse(c.Realm)
	if err != nil {
		return "", errors.Wrapf(err, "parsing realm %q", c.Realm)
	}
	q := u.Query()
	q.Set("service", c.Service)
	if c.Scope != "" {
		q.Set("scope", c.Scope)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
