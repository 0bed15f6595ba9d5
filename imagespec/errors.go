package imagespec

import "errors"

// Sentinel errors callers branch on, following the pattern of docker/errors.go
// in the containers/image tree: exported, comparable with errors.Is, and
// wrapped with context at the call site rather than at the point of
// declaration.
var (
	ErrUnknownMediaType = errors.New("unknown media type")
	ErrBaseConflict     = errors.New("base manifest and incoming manifest both already have layers")
	ErrLayerNotFound    = errors.New("layer path not found")
)
