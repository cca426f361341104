package bridge

import "errors"

// Domain-specific errors for bridge operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnroutableTopic is returned when an inbound topic does not match
	// the property state scheme.
	ErrUnroutableTopic = errors.New("bridge: topic does not match state scheme")

	// ErrUnknownThing is returned when a state update names a thing the
	// bridge does not manage.
	ErrUnknownThing = errors.New("bridge: unknown thing")

	// ErrUnknownProperty is returned when a state update names a property
	// the thing does not have.
	ErrUnknownProperty = errors.New("bridge: unknown property")
)
