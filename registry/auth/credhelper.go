package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/docker/docker-credential-helpers/credentials"
	"github.com/pkg/errors"
)

// HelperSet maps a registry service name to the path of an external
// credential-helper binary, parsed from the
// "--docker_authorization_helpers foo.gcr.io:/path1,bar.gcr.io:/path2" CLI
// argument format.
type HelperSet map[string]string

// ParseHelperArg parses the comma-separated "service:path" list and
// validates that every referenced path exists.
func ParseHelperArg(arg string) (HelperSet, error) {
	set := make(HelperSet)
	if arg == "" {
		return set, nil
	}
	for _, entry := range strings.Split(arg, ",") {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("malformed credential helper entry %q, expected service:path", entry)
		}
		service, path := parts[0], parts[1]
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "credential helper for %s", service)
		}
		set[service] = path
	}
	return set, nil
}

// Lookup returns the helper path registered for service, if any.
func (h HelperSet) Lookup(service string) (string, bool) {
	path, ok := h[service]
	return path, ok
}

// ErrAuthHelperFailed is returned when the external helper exits non-zero
// or emits output that cannot be parsed as credential JSON.
var ErrAuthHelperFailed = errors.New("credential helper failed")

// RunHelper spawns the binary at path, writes "GET <service>\n" to its
// stdin, closes stdin, and parses its stdout as
// credentials.Credentials{ServerURL,Username,Secret} JSON.
func RunHelper(path, service string) (credentials.Credentials, error) {
	cmd := exec.Command(path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return credentials.Credentials{}, errors.Wrap(err, "opening credential helper stdin")
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return credentials.Credentials{}, errors.Wrapf(err, "starting credential helper %s", path)
	}
	if _, err := fmt.Fprintf(stdin, "GET %s\n", service); err != nil {
		stdin.Close()
		return credentials.Credentials{}, errors.Wrap(err, "writing to credential helper stdin")
	}
	if err := stdin.Close(); err != nil {
		return credentials.Credentials{}, errors.Wrap(err, "closing credential helper stdin")
	}
	if err := cmd.Wait(); err != nil {
		return credentials.Credentials{}, errors.Wrapf(ErrAuthHelperFailed, "%s: %v: %s", path, err, stderr.String())
	}

	var creds credentials.Credentials
	if err := json.Unmarshal(stdout.Bytes(), &creds); err != nil {
		return credentials.Credentials{}, errors.Wrapf(ErrAuthHelperFailed, "%s: parsing output: %v", path, err)
	}
	return creds, nil
}
