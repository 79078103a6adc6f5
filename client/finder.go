package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSearchSuperseded is returned when a newer search started before this
// one finished; its results must not be shown.
var ErrSearchSuperseded = errors.New("search superseded by a newer one")

type searchFunc func(ctx context.Context, prescriptionID uuid.UUID, at Coordinates, radiusKm float64) ([]Pharmacy, error)

// Finder runs pharmacy searches with latest-wins semantics: starting a new
// search cancels the in-flight one, and a search that was overtaken while
// waiting reports ErrSearchSuperseded instead of stale results.
type Finder struct {
	search   searchFunc
	location LocationSource

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewFinder(c *Client, loc LocationSource) *Finder {
	return &Finder{
		search:   c.FindPharmacies,
		location: loc,
	}
}

// Search resolves the current position and queries pharmacies for the
// prescription. Safe to call concurrently; only the newest call's results
// survive.
func (f *Finder) Search(ctx context.Context, prescriptionID uuid.UUID, radiusKm float64) ([]Pharmacy, error) {
	ctx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.cancel = cancel
	f.seq++
	mySeq := f.seq
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		if f.seq == mySeq {
			f.cancel = nil
		}
		f.mu.Unlock()
		cancel()
	}()

	at, err := f.location.Current(ctx)
	if err != nil {
		if f.stale(mySeq) {
			return nil, ErrSearchSuperseded
		}
		return nil, AsLocationError(err)
	}

	results, err := f.search(ctx, prescriptionID, at, radiusKm)
	if f.stale(mySeq) {
		return nil, ErrSearchSuperseded
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (f *Finder) stale(seq uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq != seq
}
