package feed

import "errors"

// Error kinds exposed at the engine boundary. Callers test with errors.Is;
// the underlying cause stays wrapped.
var (
	// ErrNotFound reports an absent viewer or post.
	ErrNotFound = errors.New("feed: not found")
	// ErrInvalidArgument reports a rejected input, e.g. a non-positive limit.
	ErrInvalidArgument = errors.New("feed: invalid argument")
	// ErrUnavailable reports an unreachable post store. Cache unavailability
	// is never surfaced; reads fail open to the store instead.
	ErrUnavailable = errors.New("feed: store unavailable")
)
