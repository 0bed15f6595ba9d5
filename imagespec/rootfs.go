package imagespec

import "github.com/opencontainers/go-digest"

// RootFs describes the layer diff_ids that compose an image's filesystem.
type RootFs struct {
	Type    string   `json:"type"`
	DiffIDs []string `json:"diff_ids,omitempty"`
}

// NewRootFs returns a RootFs with the required constant Type.
func NewRootFs() RootFs {
	return RootFs{Type: "layers"}
}

// AddLayer appends the uncompressed digest of a newly merged layer.
func (r *RootFs) AddLayer(d digest.Digest) {
	if r.Type == "" {
		r.Type = "layers"
	}
	r.DiffIDs = append(r.DiffIDs, d.String())
}

// UpdateWith applies delta field-wise (not wholesale replace): each field is
// replaced only if delta supplies a non-empty value, preserving existing
// DiffIDs unless delta supplies a non-empty one.
func (r *RootFs) UpdateWith(delta RootFs) {
	if delta.Type != "" {
		r.Type = delta.Type
	}
	if len(delta.DiffIDs) > 0 {
		r.DiffIDs = delta.DiffIDs
	}
}

// HistoryItem is a single entry in a config's history array.
type HistoryItem struct {
	Created    *string `json:"created,omitempty"`
	Author     *string `json:"author,omitempty"`
	CreatedBy  *string `json:"created_by,omitempty"`
	Comment    *string `json:"comment,omitempty"`
	EmptyLayer *bool   `json:"empty_layer,omitempty"`
}
