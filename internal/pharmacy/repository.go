package pharmacy

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPharmacyNotFound = errors.New("pharmacy not found")
)

// Repository contains all DB interactions needed by the finder and the
// order flow.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Pharmacy, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Pharmacy, error)
	ListAll(ctx context.Context, limit int) ([]Pharmacy, error)

	// FilterWithStock returns the subset of candidates whose stock covers
	// every requirement.
	FilterWithStock(ctx context.Context, candidates []uuid.UUID, reqs []StockRequirement) ([]uuid.UUID, error)

	// DecrementStock reduces on-hand quantities when an order is dispensed.
	DecrementStock(ctx context.Context, pharmacyID uuid.UUID, reqs []StockRequirement) error
}
