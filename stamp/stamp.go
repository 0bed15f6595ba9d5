// Package stamp applies build-stamp information (Bazel-style STABLE_ key
// value lines) to a ConfigDelta's environment.
package stamp

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"github.com/minidock-tools/minidock/imagespec"
	"github.com/pkg/errors"
)

// ApplyFile reads path and, for each whitespace-separated "KEY VALUE" line,
// appends an "KEY=VALUE" entry to cfg.Config.Env. Only the first space
// separates key from value; everything after it is the value verbatim, so
// values may themselves contain spaces. A "STABLE_" key prefix is stripped.
func ApplyFile(cfg *imagespec.ConfigDelta, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading stamp info file %s", path)
	}
	entries, err := Parse(data)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if cfg.Config == nil {
		cfg.Config = &imagespec.ExecutionConfig{}
	}
	cfg.Config.Env = append(cfg.Config.Env, entries...)
	return nil
}

// Parse extracts "KEY=VALUE" entries from the stamp info file contents.
func Parse(data []byte) ([]string, error) {
	var entries []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ' ')
		if idx < 0 {
			continue
		}
		key := strings.TrimPrefix(line[:idx], "STABLE_")
		value := line[idx+1:]
		entries = append(entries, key+"="+value)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning stamp info file")
	}
	return entries, nil
}
