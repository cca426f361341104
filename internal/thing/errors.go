package thing

import "errors"

// Domain errors for the thing package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, thing.ErrPropertyNotFound) {
//	    // handle not found case
//	}
var (
	// ErrThingNotFound is returned when an identifier does not resolve
	// to a registered thing.
	ErrThingNotFound = errors.New("thing: not found")

	// ErrPropertyNotFound is returned when a property name does not
	// exist on a thing.
	ErrPropertyNotFound = errors.New("thing: property not found")

	// ErrActionNotFound is returned when an action name is not a
	// registered kind, or an action id does not match a live record.
	ErrActionNotFound = errors.New("thing: action not found")

	// ErrEventNotFound is returned when an event name is not a
	// registered kind.
	ErrEventNotFound = errors.New("thing: event not found")

	// ErrReadOnlyProperty is returned when a write targets a property
	// flagged read-only.
	ErrReadOnlyProperty = errors.New("thing: property is read-only")

	// ErrInvalidValue is returned when a property write fails type,
	// range, or enum validation. The cell is left unchanged.
	ErrInvalidValue = errors.New("thing: invalid property value")

	// ErrInvalidActionInput is returned when action input fails the
	// kind's declared input schema. No action record is created.
	ErrInvalidActionInput = errors.New("thing: invalid action input")

	// ErrForwarderFailed is returned when a property's value forwarder
	// rejects a commanded value. The cached value is left unchanged.
	ErrForwarderFailed = errors.New("thing: value forwarder failed")
)
