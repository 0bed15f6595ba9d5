// Package tagutil resolves the set of tags a merged image should be
// published under, combining an explicit list with an optional file of
// whitespace/comma-separated tokens.
package tagutil

import (
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Resolve returns the union of tags and the non-empty tokens found in
// tagFile (split on whitespace and commas), sorted ascending with
// duplicates removed. tagFile may be empty, in which case only tags
// contributes.
func Resolve(tags []string, tagFile string) ([]string, error) {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}

	if tagFile != "" {
		data, err := os.ReadFile(tagFile)
		if err != nil {
			return nil, errors.Wrapf(err, "reading container tag file %s", tagFile)
		}
		for _, tok := range strings.FieldsFunc(string(data), func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		}) {
			if tok = strings.TrimSpace(tok); tok != "" {
				set[tok] = struct{}{}
			}
		}
	}

	resolved := make([]string, 0, len(set))
	for t := range set {
		resolved = append(resolved, t)
	}
	sort.Strings(resolved)
	return resolved, nil
}
