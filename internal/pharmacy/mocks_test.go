package pharmacy

import (
	"context"

	"github.com/google/uuid"

	"github.com/careport/prescription-fulfillment/internal/prescription"
	redisclient "github.com/careport/prescription-fulfillment/internal/redis"
)

type mockRepository struct {
	getByIDFn         func(ctx context.Context, id uuid.UUID) (*Pharmacy, error)
	getByIDsFn        func(ctx context.Context, ids []uuid.UUID) ([]Pharmacy, error)
	listAllFn         func(ctx context.Context, limit int) ([]Pharmacy, error)
	filterWithStockFn func(ctx context.Context, candidates []uuid.UUID, reqs []StockRequirement) ([]uuid.UUID, error)
	decrementStockFn  func(ctx context.Context, pharmacyID uuid.UUID, reqs []StockRequirement) error
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Pharmacy, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &Pharmacy{ID: id}, nil
}

func (m *mockRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Pharmacy, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	out := make([]Pharmacy, len(ids))
	for i, id := range ids {
		out[i] = Pharmacy{ID: id}
	}
	return out, nil
}

func (m *mockRepository) ListAll(ctx context.Context, limit int) ([]Pharmacy, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockRepository) FilterWithStock(ctx context.Context, candidates []uuid.UUID, reqs []StockRequirement) ([]uuid.UUID, error) {
	if m.filterWithStockFn != nil {
		return m.filterWithStockFn(ctx, candidates, reqs)
	}
	return candidates, nil
}

func (m *mockRepository) DecrementStock(ctx context.Context, pharmacyID uuid.UUID, reqs []StockRequirement) error {
	if m.decrementStockFn != nil {
		return m.decrementStockFn(ctx, pharmacyID, reqs)
	}
	return nil
}

type mockGeoIndex struct {
	addFn    func(ctx context.Context, pharmacyID uuid.UUID, latitude, longitude float64) error
	removeFn func(ctx context.Context, pharmacyID uuid.UUID) error
	nearbyFn func(ctx context.Context, latitude, longitude, radiusKm float64, limit int) ([]redisclient.GeoHit, error)
}

func (m *mockGeoIndex) Add(ctx context.Context, pharmacyID uuid.UUID, latitude, longitude float64) error {
	if m.addFn != nil {
		return m.addFn(ctx, pharmacyID, latitude, longitude)
	}
	return nil
}

func (m *mockGeoIndex) Remove(ctx context.Context, pharmacyID uuid.UUID) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, pharmacyID)
	}
	return nil
}

func (m *mockGeoIndex) Nearby(ctx context.Context, latitude, longitude, radiusKm float64, limit int) ([]redisclient.GeoHit, error) {
	if m.nearbyFn != nil {
		return m.nearbyFn(ctx, latitude, longitude, radiusKm, limit)
	}
	return nil, nil
}

type mockPrescriptionSource struct {
	getFn func(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error)
}

func (m *mockPrescriptionSource) Get(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, prescription.ErrPrescriptionNotFound
}
