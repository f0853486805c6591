package ai

import "errors"

// Sentinel errors shared by every optimization provider. Implementations wrap
// these so the runner can classify failures with errors.Is regardless of which
// backend produced them.
var (
	ErrProviderUnavailable = errors.New("optimization provider unreachable")
	ErrInferenceTimeout    = errors.New("optimization inference timed out")
	ErrInvalidResponse     = errors.New("optimization provider returned an unparseable completion")
)
