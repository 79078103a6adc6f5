package pharmacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careport/prescription-fulfillment/internal/config"
	"github.com/careport/prescription-fulfillment/internal/prescription"
	redisclient "github.com/careport/prescription-fulfillment/internal/redis"
)

var (
	ErrInvalidCoordinates = errors.New("latitude or longitude out of range")
	ErrNothingToDispense  = errors.New("prescription has no undispensed medicines")
)

// candidateLimit caps how many geo hits are considered before the stock
// filter runs.
const candidateLimit = 100

// PrescriptionSource is the slice of the prescription service the finder
// needs.
type PrescriptionSource interface {
	Get(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error)
}

// Finder answers "which pharmacies near this point can fill this
// prescription". Candidates come from the Redis geo index (with a
// database haversine fallback) and are then filtered on stock coverage.
type Finder struct {
	repo Repository
	geo  redisclient.GeoIndex
	rx   PrescriptionSource
	cfg  config.Config
}

func NewFinder(repo Repository, geo redisclient.GeoIndex, rx PrescriptionSource, cfg config.Config) *Finder {
	return &Finder{
		repo: repo,
		geo:  geo,
		rx:   rx,
		cfg:  cfg,
	}
}

// RequirementsFor derives the stock a pharmacy must carry for the
// undispensed line items of a prescription.
func RequirementsFor(meds []prescription.PrescriptionMedicine) []StockRequirement {
	var reqs []StockRequirement
	for _, m := range meds {
		if m.Dispensed {
			continue
		}
		reqs = append(reqs, StockRequirement{
			MedicineID: m.MedicineID,
			Quantity:   prescription.QuantityFor(m),
		})
	}
	return reqs
}

// FindForPrescription returns stock-covered pharmacies within radiusKm of
// the point, each with its distance, sorted ascending by distance. A zero
// radius uses the configured default; radii above the cap are clamped.
func (f *Finder) FindForPrescription(ctx context.Context, prescriptionID uuid.UUID, lat, lng, radiusKm float64) ([]Result, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, ErrInvalidCoordinates
	}

	if radiusKm <= 0 {
		radiusKm = f.cfg.SearchRadiusKm
	}
	if radiusKm > f.cfg.MaxRadiusKm {
		radiusKm = f.cfg.MaxRadiusKm
	}

	detail, err := f.rx.Get(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	if detail.Status != prescription.StatusActive {
		return nil, prescription.ErrPrescriptionNotActive
	}

	reqs := RequirementsFor(detail.Medicines)
	if len(reqs) == 0 {
		return nil, ErrNothingToDispense
	}

	hits, err := f.geo.Nearby(ctx, lat, lng, radiusKm, candidateLimit)
	if err != nil {
		log.Warn().Err(err).Msg("geo index unavailable, falling back to database scan")
		hits, err = f.nearbyFromDB(ctx, lat, lng, radiusKm)
		if err != nil {
			return nil, fmt.Errorf("pharmacy lookup: %w", err)
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	candidateIDs := make([]uuid.UUID, len(hits))
	distance := make(map[uuid.UUID]float64, len(hits))
	for i, h := range hits {
		candidateIDs[i] = h.PharmacyID
		distance[h.PharmacyID] = h.DistanceKm
	}

	covered, err := f.repo.FilterWithStock(ctx, candidateIDs, reqs)
	if err != nil {
		return nil, err
	}
	if len(covered) == 0 {
		return nil, nil
	}

	pharmacies, err := f.repo.GetByIDs(ctx, covered)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(pharmacies))
	for _, p := range pharmacies {
		results = append(results, Result{
			Pharmacy:   p,
			DistanceKm: distance[p.ID],
		})
	}

	Sort(results, SortByDistance)

	return results, nil
}

// nearbyFromDB is the degraded path: scan pharmacies from Postgres and
// filter on haversine distance.
func (f *Finder) nearbyFromDB(ctx context.Context, lat, lng, radiusKm float64) ([]redisclient.GeoHit, error) {
	pharmacies, err := f.repo.ListAll(ctx, 500)
	if err != nil {
		return nil, err
	}

	var hits []redisclient.GeoHit
	for _, p := range pharmacies {
		d := HaversineKm(lat, lng, p.Latitude, p.Longitude)
		if d > radiusKm {
			continue
		}
		hits = append(hits, redisclient.GeoHit{
			PharmacyID: p.ID,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			DistanceKm: d,
		})
		if len(hits) == candidateLimit {
			break
		}
	}

	return hits, nil
}
