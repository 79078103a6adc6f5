package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestFinder(search searchFunc) *Finder {
	return &Finder{
		search:   search,
		location: FixedLocation(Coordinates{Latitude: 40.7, Longitude: -74.0}),
	}
}

func TestSearchReturnsResults(t *testing.T) {
	want := []Pharmacy{{ID: uuid.New(), Name: "Main St Pharmacy", Distance: 1.2}}
	f := newTestFinder(func(ctx context.Context, id uuid.UUID, at Coordinates, radiusKm float64) ([]Pharmacy, error) {
		assert.InDelta(t, 40.7, at.Latitude, 1e-9)
		return want, nil
	})

	got, err := f.Search(context.Background(), uuid.New(), 10)

	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewerSearchSupersedesOlder(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})

	calls := 0
	var mu sync.Mutex
	f := newTestFinder(func(ctx context.Context, id uuid.UUID, at Coordinates, radiusKm float64) ([]Pharmacy, error) {
		mu.Lock()
		calls++
		mine := calls
		mu.Unlock()

		if mine == 1 {
			close(firstStarted)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return []Pharmacy{{Name: "stale"}}, nil
		}
		return []Pharmacy{{Name: "fresh"}}, nil
	})

	rxID := uuid.New()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.Search(context.Background(), rxID, 10)
	}()

	<-firstStarted
	fresh, err := f.Search(context.Background(), rxID, 10)
	close(release)
	wg.Wait()

	assert.NoError(t, err)
	assert.Equal(t, "fresh", fresh[0].Name)
	assert.ErrorIs(t, firstErr, ErrSearchSuperseded,
		"the overtaken search must not surface its results")
}

func TestNewerSearchCancelsInFlightRequest(t *testing.T) {
	firstStarted := make(chan struct{})
	firstCancelled := make(chan struct{})

	calls := 0
	var mu sync.Mutex
	f := newTestFinder(func(ctx context.Context, id uuid.UUID, at Coordinates, radiusKm float64) ([]Pharmacy, error) {
		mu.Lock()
		calls++
		mine := calls
		mu.Unlock()

		if mine == 1 {
			close(firstStarted)
			<-ctx.Done()
			close(firstCancelled)
			return nil, ctx.Err()
		}
		return nil, nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = f.Search(context.Background(), uuid.New(), 10)
	}()

	<-firstStarted
	_, err := f.Search(context.Background(), uuid.New(), 10)
	assert.NoError(t, err)

	<-firstCancelled // would hang here if the old request were not cancelled
	wg.Wait()
}

func TestSearchSurfacesLocationFailure(t *testing.T) {
	f := &Finder{
		search: func(ctx context.Context, id uuid.UUID, at Coordinates, radiusKm float64) ([]Pharmacy, error) {
			t.Fatal("search must not run without a position")
			return nil, nil
		},
		location: LocationFunc(func(ctx context.Context) (Coordinates, error) {
			return Coordinates{}, &LocationError{Kind: LocationPermissionDenied}
		}),
	}

	_, err := f.Search(context.Background(), uuid.New(), 10)

	var le *LocationError
	assert.ErrorAs(t, err, &le)
	assert.Equal(t, LocationPermissionDenied, le.Kind)
}

func TestSearchPassesThroughAPIError(t *testing.T) {
	wantErr := errors.New("boom")
	f := newTestFinder(func(ctx context.Context, id uuid.UUID, at Coordinates, radiusKm float64) ([]Pharmacy, error) {
		return nil, wantErr
	})

	_, err := f.Search(context.Background(), uuid.New(), 10)
	assert.ErrorIs(t, err, wantErr)
}
