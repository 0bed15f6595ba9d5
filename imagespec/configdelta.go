package imagespec

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// ConfigDelta is the monoidal delta type merged across a MergeConfig's
// Infos: every field is optional, and UpdateWith defines how a later delta
// combines with an earlier (base) value.
type ConfigDelta struct {
	Created     *string          `json:"created,omitempty"`
	Author      *string          `json:"author,omitempty"`
	Architecture *string         `json:"architecture,omitempty"`
	OS          *string          `json:"os,omitempty"`
	OSVersion   *string          `json:"os.version,omitempty"`
	OSFeatures  []string         `json:"os.features,omitempty"`
	Variant     *string          `json:"variant,omitempty"`
	Config      *ExecutionConfig `json:"config,omitempty"`
	RootFs      *RootFs          `json:"rootfs,omitempty"`
	History     []HistoryItem    `json:"history,omitempty"`
}

// UpdateWith applies delta onto c in place. Scalars replace on Some; Config
// and RootFs recursively merge if already present (else are cloned in);
// History appends.
func (c *ConfigDelta) UpdateWith(delta ConfigDelta) {
	if delta.Created != nil {
		c.Created = delta.Created
	}
	if delta.Author != nil {
		c.Author = delta.Author
	}
	if delta.Architecture != nil {
		c.Architecture = delta.Architecture
	}
	if delta.OS != nil {
		c.OS = delta.OS
	}
	if delta.OSVersion != nil {
		c.OSVersion = delta.OSVersion
	}
	if delta.OSFeatures != nil {
		c.OSFeatures = delta.OSFeatures
	}
	if delta.Variant != nil {
		c.Variant = delta.Variant
	}
	if delta.Config != nil {
		if c.Config != nil {
			c.Config.UpdateWith(*delta.Config)
		} else {
			cp := *delta.Config
			c.Config = &cp
		}
	}
	if delta.RootFs != nil {
		if c.RootFs != nil {
			c.RootFs.UpdateWith(*delta.RootFs)
		} else {
			cp := *delta.RootFs
			c.RootFs = &cp
		}
	}
	if len(delta.History) > 0 {
		c.History = append(c.History, delta.History...)
	}
}

// AddLayer records a newly merged layer's uncompressed digest, creating the
// RootFs if it is not yet present.
func (c *ConfigDelta) AddLayer(d digest.Digest) {
	if c.RootFs == nil {
		rf := NewRootFs()
		c.RootFs = &rf
	}
	c.RootFs.AddLayer(d)
}

// ToBytes serializes c as pretty-printed JSON, omitting every absent field.
func (c ConfigDelta) ToBytes() ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling config")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, errors.Wrap(err, "indenting config")
	}
	return buf.Bytes(), nil
}

// WriteFile writes c to path as pretty-printed JSON.
func (c ConfigDelta) WriteFile(path string) error {
	data, err := c.ToBytes()
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing config to %s", path)
}

// ParseConfigDelta parses a ConfigDelta from raw JSON bytes.
func ParseConfigDelta(data []byte) (ConfigDelta, error) {
	var c ConfigDelta
	if err := json.Unmarshal(data, &c); err != nil {
		return ConfigDelta{}, errors.Wrap(err, "parsing config")
	}
	return c, nil
}

// ParseConfigDeltaFile reads and parses a ConfigDelta from path.
func ParseConfigDeltaFile(path string) (ConfigDelta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ConfigDelta{}, errors.Wrapf(err, "reading config file %s", path)
	}
	return ParseConfigDelta(data)
}
