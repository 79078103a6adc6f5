package pharmacy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/careport/prescription-fulfillment/internal/config"
	"github.com/careport/prescription-fulfillment/internal/prescription"
	redisclient "github.com/careport/prescription-fulfillment/internal/redis"
)

func finderConfig() config.Config {
	return config.Config{
		SearchRadiusKm: 10,
		MaxRadiusKm:    50,
	}
}

func activeDetail(patientID uuid.UUID, meds ...prescription.PrescriptionMedicine) *prescription.PrescriptionDetail {
	return &prescription.PrescriptionDetail{
		Prescription: prescription.Prescription{
			ID:         uuid.New(),
			PatientID:  patientID,
			Status:     prescription.StatusActive,
			ValidUntil: time.Now().Add(24 * time.Hour),
		},
		Medicines: meds,
	}
}

func TestFindRejectsBadCoordinates(t *testing.T) {
	f := NewFinder(&mockRepository{}, &mockGeoIndex{}, &mockPrescriptionSource{}, finderConfig())

	_, err := f.FindForPrescription(context.Background(), uuid.New(), 91, 0, 5)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)

	_, err = f.FindForPrescription(context.Background(), uuid.New(), 0, -181, 5)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestFindRequiresActivePrescription(t *testing.T) {
	rx := &mockPrescriptionSource{
		getFn: func(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error) {
			d := activeDetail(uuid.New(), prescription.PrescriptionMedicine{MedicineID: uuid.New(), TotalQuantity: "10 tabs"})
			d.Status = prescription.StatusCancelled
			return d, nil
		},
	}
	f := NewFinder(&mockRepository{}, &mockGeoIndex{}, rx, finderConfig())

	_, err := f.FindForPrescription(context.Background(), uuid.New(), 40.7, -74.0, 5)
	assert.ErrorIs(t, err, prescription.ErrPrescriptionNotActive)
}

func TestFindRejectsFullyDispensedPrescription(t *testing.T) {
	rx := &mockPrescriptionSource{
		getFn: func(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error) {
			return activeDetail(uuid.New(),
				prescription.PrescriptionMedicine{MedicineID: uuid.New(), TotalQuantity: "10 tabs", Dispensed: true},
			), nil
		},
	}
	f := NewFinder(&mockRepository{}, &mockGeoIndex{}, rx, finderConfig())

	_, err := f.FindForPrescription(context.Background(), uuid.New(), 40.7, -74.0, 5)
	assert.ErrorIs(t, err, ErrNothingToDispense)
}

func TestFindFiltersOnStockAndSortsByDistance(t *testing.T) {
	near := uuid.New()
	far := uuid.New()
	noStock := uuid.New()

	rx := &mockPrescriptionSource{
		getFn: func(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error) {
			return activeDetail(uuid.New(),
				prescription.PrescriptionMedicine{MedicineID: uuid.New(), TotalQuantity: "10 tabs"},
			), nil
		},
	}
	geo := &mockGeoIndex{
		nearbyFn: func(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]redisclient.GeoHit, error) {
			return []redisclient.GeoHit{
				{PharmacyID: far, DistanceKm: 7.5},
				{PharmacyID: near, DistanceKm: 1.2},
				{PharmacyID: noStock, DistanceKm: 0.4},
			}, nil
		},
	}
	repo := &mockRepository{
		filterWithStockFn: func(ctx context.Context, candidates []uuid.UUID, reqs []StockRequirement) ([]uuid.UUID, error) {
			assert.Len(t, candidates, 3)
			assert.Len(t, reqs, 1)
			assert.Equal(t, 10, reqs[0].Quantity)
			return []uuid.UUID{far, near}, nil
		},
		getByIDsFn: func(ctx context.Context, ids []uuid.UUID) ([]Pharmacy, error) {
			out := make([]Pharmacy, len(ids))
			for i, id := range ids {
				out[i] = Pharmacy{ID: id, Name: "P-" + id.String()[:8]}
			}
			return out, nil
		},
	}

	f := NewFinder(repo, geo, rx, finderConfig())

	got, err := f.FindForPrescription(context.Background(), uuid.New(), 40.7, -74.0, 10)

	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, near, got[0].ID)
	assert.InDelta(t, 1.2, got[0].DistanceKm, 1e-9)
	assert.Equal(t, far, got[1].ID)
}

func TestFindFallsBackToDatabaseWhenGeoIndexDown(t *testing.T) {
	inRange := uuid.New()
	outOfRange := uuid.New()

	rx := &mockPrescriptionSource{
		getFn: func(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error) {
			return activeDetail(uuid.New(),
				prescription.PrescriptionMedicine{MedicineID: uuid.New(), TotalQuantity: "5 tabs"},
			), nil
		},
	}
	geo := &mockGeoIndex{
		nearbyFn: func(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]redisclient.GeoHit, error) {
			return nil, errors.New("redis: connection refused")
		},
	}
	repo := &mockRepository{
		listAllFn: func(ctx context.Context, limit int) ([]Pharmacy, error) {
			return []Pharmacy{
				{ID: inRange, Latitude: 40.71, Longitude: -74.0},
				{ID: outOfRange, Latitude: 41.5, Longitude: -74.0},
			}, nil
		},
	}

	f := NewFinder(repo, geo, rx, finderConfig())

	got, err := f.FindForPrescription(context.Background(), uuid.New(), 40.7, -74.0, 10)

	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, inRange, got[0].ID)
}

func TestFindClampsRadius(t *testing.T) {
	var gotRadius float64
	rx := &mockPrescriptionSource{
		getFn: func(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error) {
			return activeDetail(uuid.New(),
				prescription.PrescriptionMedicine{MedicineID: uuid.New(), TotalQuantity: "5 tabs"},
			), nil
		},
	}
	geo := &mockGeoIndex{
		nearbyFn: func(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]redisclient.GeoHit, error) {
			gotRadius = radiusKm
			return nil, nil
		},
	}

	f := NewFinder(&mockRepository{}, geo, rx, finderConfig())

	_, err := f.FindForPrescription(context.Background(), uuid.New(), 40.7, -74.0, 9999)
	assert.NoError(t, err)
	assert.Equal(t, 50.0, gotRadius)

	_, err = f.FindForPrescription(context.Background(), uuid.New(), 40.7, -74.0, 0)
	assert.NoError(t, err)
	assert.Equal(t, 10.0, gotRadius)
}

func TestRequirementsForSkipsDispensed(t *testing.T) {
	qty := 3
	meds := []prescription.PrescriptionMedicine{
		{MedicineID: uuid.New(), TotalQuantity: "10 tabs"},
		{MedicineID: uuid.New(), TotalQuantity: "20 tabs", Dispensed: true},
		{MedicineID: uuid.New(), TotalQuantity: "garbage", Quantity: &qty},
	}

	reqs := RequirementsFor(meds)

	assert.Len(t, reqs, 2)
	assert.Equal(t, 10, reqs[0].Quantity)
	assert.Equal(t, 3, reqs[1].Quantity)
}
