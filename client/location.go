package client

import (
	"context"
	"errors"
	"fmt"
)

// LocationErrorKind classifies why a position could not be resolved.
type LocationErrorKind int

const (
	LocationUnknown LocationErrorKind = iota
	LocationPermissionDenied
	LocationUnavailable
	LocationTimeout
)

// LocationError wraps a position-resolution failure with a kind the UI can
// turn into a specific message.
type LocationError struct {
	Kind LocationErrorKind
	Err  error
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("location: %s", e.Message())
}

func (e *LocationError) Unwrap() error { return e.Err }

// Message returns a user-facing explanation, distinct per kind.
func (e *LocationError) Message() string {
	switch e.Kind {
	case LocationPermissionDenied:
		return "location access was denied; allow location services and try again"
	case LocationUnavailable:
		return "your position could not be determined"
	case LocationTimeout:
		return "finding your position took too long"
	default:
		if e.Err != nil {
			return fmt.Sprintf("an unknown location error occurred: %v", e.Err)
		}
		return "an unknown location error occurred"
	}
}

// LocationSource resolves the caller's current coordinates. Implementations
// should return a *LocationError so failures stay distinguishable.
type LocationSource interface {
	Current(ctx context.Context) (Coordinates, error)
}

// LocationFunc adapts a function to a LocationSource.
type LocationFunc func(ctx context.Context) (Coordinates, error)

func (f LocationFunc) Current(ctx context.Context) (Coordinates, error) {
	return f(ctx)
}

// FixedLocation is a LocationSource pinned to one point, useful for tools
// and tests.
func FixedLocation(at Coordinates) LocationSource {
	return LocationFunc(func(context.Context) (Coordinates, error) {
		return at, nil
	})
}

// AsLocationError extracts a *LocationError from err, mapping context
// cancellation and deadline errors to the timeout kind.
func AsLocationError(err error) *LocationError {
	var le *LocationError
	if errors.As(err, &le) {
		return le
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &LocationError{Kind: LocationTimeout, Err: err}
	}
	return &LocationError{Kind: LocationUnknown, Err: err}
}
