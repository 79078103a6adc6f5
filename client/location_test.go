package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationErrorMessagesAreDistinct(t *testing.T) {
	kinds := []LocationErrorKind{
		LocationPermissionDenied,
		LocationUnavailable,
		LocationTimeout,
		LocationUnknown,
	}

	seen := make(map[string]LocationErrorKind)
	for _, k := range kinds {
		msg := (&LocationError{Kind: k}).Message()
		if prev, dup := seen[msg]; dup {
			t.Fatalf("kinds %v and %v share the message %q", prev, k, msg)
		}
		seen[msg] = k
	}
}

func TestAsLocationErrorPassesThrough(t *testing.T) {
	orig := &LocationError{Kind: LocationUnavailable}
	assert.Same(t, orig, AsLocationError(orig))
}

func TestAsLocationErrorMapsDeadline(t *testing.T) {
	le := AsLocationError(context.DeadlineExceeded)
	assert.Equal(t, LocationTimeout, le.Kind)
}

func TestAsLocationErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("gps hardware on fire")
	le := AsLocationError(cause)

	assert.Equal(t, LocationUnknown, le.Kind)
	assert.ErrorIs(t, le, cause)
	assert.Contains(t, le.Message(), "gps hardware on fire")
}

func TestFixedLocation(t *testing.T) {
	src := FixedLocation(Coordinates{Latitude: 1, Longitude: 2})
	at, err := src.Current(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, Coordinates{Latitude: 1, Longitude: 2}, at)
}
