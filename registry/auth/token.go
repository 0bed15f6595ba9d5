package auth

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// TokenResponse is the JSON body returned by the token service; all fields
// are optional.
type TokenResponse struct {
	Token       *string `json:"token,omitempty"`
	AccessToken *string `json:"access_token,omitempty"`
	ExpiresIn   *int    `json:"expires_in,omitempty"`
	IssuedAt    *string `json:"issued_at,omitempty"`
}

// Bearer returns the first of Token or AccessToken that is present.
func (t TokenResponse) Bearer() (string, bool) {
	if t.Token != nil {
		return *t.Token, true
	}
	if t.AccessToken != nil {
		return *t.AccessToken, true
	}
	return "", false
}

// Authenticate runs the full token-acquisition flow: look up a credential
// helper for cfg.Service, run it if found, then issue the auth request
// (basic-auth'd if credentials were obtained, anonymous otherwise) and parse
// the token response.
func Authenticate(client *http.Client, cfg BearerConfig, helpers HelperSet) (TokenResponse, error) {
	authURL, err := cfg.AuthURL()
	if err != nil {
		return TokenResponse{}, err
	}

	req, err := http.NewRequest(http.MethodGet, authURL, nil)
	if err != nil {
		return TokenResponse{}, errors.Wrap(err, "building auth request")
	}

	if path, ok := helpers.Lookup(cfg.Service); ok {
		creds, err := RunHelper(path, cfg.Service)
		if err != nil {
			return TokenResponse{}, err
		}
		req.SetBasicAuth(creds.Username, creds.Secret)
	}

	resp, err := client.Do(req)
	if err != nil {
		return TokenResponse{}, errors.Wrapf(err, "requesting token from %s", authURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenResponse{}, errors.Wrap(err, "reading token response")
	}
	if resp.StatusCode != http.StatusOK {
		return TokenResponse{}, errors.Errorf("token service %s returned %d", authURL, resp.StatusCode)
	}

	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return TokenResponse{}, errors.Wrap(err, "parsing token response")
	}
	return tr, nil
}
