package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/careport/prescription-fulfillment/internal/auth"
	"github.com/careport/prescription-fulfillment/internal/config"
	"github.com/careport/prescription-fulfillment/internal/pharmacy"
	"github.com/careport/prescription-fulfillment/internal/prescription"
	redisclient "github.com/careport/prescription-fulfillment/internal/redis"
)

func testIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer("handler-test-secret", time.Hour)
}

func bearerFor(t *testing.T, issuer *auth.TokenIssuer, role auth.Role, patientID *uuid.UUID) string {
	t.Helper()
	token, err := issuer.Issue(&auth.User{ID: uuid.New(), Role: role, PatientID: patientID})
	assert.NoError(t, err)
	return "Bearer " + token
}

type stubRxSource struct {
	detail *prescription.PrescriptionDetail
	err    error
}

func (s *stubRxSource) Get(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

type stubGeo struct {
	hits []redisclient.GeoHit
}

func (s *stubGeo) Add(ctx context.Context, id uuid.UUID, lat, lng float64) error { return nil }
func (s *stubGeo) Remove(ctx context.Context, id uuid.UUID) error                { return nil }
func (s *stubGeo) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]redisclient.GeoHit, error) {
	return s.hits, nil
}

type stubPharmacyRepo struct {
	pharmacies map[uuid.UUID]pharmacy.Pharmacy
}

func (s *stubPharmacyRepo) GetByID(ctx context.Context, id uuid.UUID) (*pharmacy.Pharmacy, error) {
	p, ok := s.pharmacies[id]
	if !ok {
		return nil, pharmacy.ErrPharmacyNotFound
	}
	return &p, nil
}

func (s *stubPharmacyRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]pharmacy.Pharmacy, error) {
	out := make([]pharmacy.Pharmacy, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.pharmacies[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPharmacyRepo) ListAll(ctx context.Context, limit int) ([]pharmacy.Pharmacy, error) {
	out := make([]pharmacy.Pharmacy, 0, len(s.pharmacies))
	for _, p := range s.pharmacies {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubPharmacyRepo) FilterWithStock(ctx context.Context, candidates []uuid.UUID, reqs []pharmacy.StockRequirement) ([]uuid.UUID, error) {
	return candidates, nil
}

func (s *stubPharmacyRepo) DecrementStock(ctx context.Context, pharmacyID uuid.UUID, reqs []pharmacy.StockRequirement) error {
	return nil
}

func newFindRouter(finder *pharmacy.Finder, issuer *auth.TokenIssuer) http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(issuer))
		r.Get("/prescriptions/{id}/find-pharmacies", findPharmaciesHandler(finder))
	})
	return r
}

func findTestFinder() *pharmacy.Finder {
	near := uuid.New()
	far := uuid.New()

	repo := &stubPharmacyRepo{pharmacies: map[uuid.UUID]pharmacy.Pharmacy{
		near: {ID: near, Name: "Bodega Pharmacy", Latitude: 40.71, Longitude: -74.0},
		far:  {ID: far, Name: "Avenue Drugs", Latitude: 40.75, Longitude: -74.0},
	}}
	geo := &stubGeo{hits: []redisclient.GeoHit{
		{PharmacyID: far, DistanceKm: 5.5},
		{PharmacyID: near, DistanceKm: 1.1},
	}}
	rx := &stubRxSource{detail: &prescription.PrescriptionDetail{
		Prescription: prescription.Prescription{
			ID:     uuid.New(),
			Status: prescription.StatusActive,
		},
		Medicines: []prescription.PrescriptionMedicine{
			{MedicineID: uuid.New(), TotalQuantity: "10 tabs"},
		},
	}}

	cfg := config.Config{SearchRadiusKm: 10, MaxRadiusKm: 50}
	return pharmacy.NewFinder(repo, geo, rx, cfg)
}

func TestFindPharmaciesRequiresToken(t *testing.T) {
	router := newFindRouter(findTestFinder(), testIssuer())

	req := httptest.NewRequest(http.MethodGet, "/prescriptions/"+uuid.NewString()+"/find-pharmacies?latitude=40.7&longitude=-74", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFindPharmaciesReturnsSortedResults(t *testing.T) {
	issuer := testIssuer()
	router := newFindRouter(findTestFinder(), issuer)

	patientID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/prescriptions/"+uuid.NewString()+"/find-pharmacies?latitude=40.7&longitude=-74", nil)
	req.Header.Set("Authorization", bearerFor(t, issuer, auth.RolePatient, &patientID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Success bool               `json:"success"`
		Data    []PharmacyResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Len(t, env.Data, 2)
	assert.Equal(t, "Bodega Pharmacy", env.Data[0].Name)
	assert.InDelta(t, 1.1, env.Data[0].Distance, 1e-9)
	assert.Equal(t, "Avenue Drugs", env.Data[1].Name)
}

func TestFindPharmaciesSortByName(t *testing.T) {
	issuer := testIssuer()
	router := newFindRouter(findTestFinder(), issuer)

	patientID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/prescriptions/"+uuid.NewString()+"/find-pharmacies?latitude=40.7&longitude=-74&sort=name", nil)
	req.Header.Set("Authorization", bearerFor(t, issuer, auth.RolePatient, &patientID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data []PharmacyResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "Avenue Drugs", env.Data[0].Name)
	assert.Equal(t, "Bodega Pharmacy", env.Data[1].Name)
}

func TestFindPharmaciesRejectsMissingCoordinates(t *testing.T) {
	issuer := testIssuer()
	router := newFindRouter(findTestFinder(), issuer)

	patientID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/prescriptions/"+uuid.NewString()+"/find-pharmacies", nil)
	req.Header.Set("Authorization", bearerFor(t, issuer, auth.RolePatient, &patientID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_latitude", body.Error)
}

func TestFindPharmaciesInactivePrescriptionConflicts(t *testing.T) {
	issuer := testIssuer()

	rx := &stubRxSource{detail: &prescription.PrescriptionDetail{
		Prescription: prescription.Prescription{
			ID:     uuid.New(),
			Status: prescription.StatusFulfilled,
		},
	}}
	finder := pharmacy.NewFinder(&stubPharmacyRepo{}, &stubGeo{}, rx, config.Config{SearchRadiusKm: 10, MaxRadiusKm: 50})
	router := newFindRouter(finder, issuer)

	patientID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/prescriptions/"+uuid.NewString()+"/find-pharmacies?latitude=40.7&longitude=-74", nil)
	req.Header.Set("Authorization", bearerFor(t, issuer, auth.RolePatient, &patientID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var body ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "prescription_not_active", body.Error)
}

func TestResolvePatientIDPinsPatients(t *testing.T) {
	issuer := testIssuer()
	ownID := uuid.New()
	otherID := uuid.New()

	var resolved uuid.UUID
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(issuer))
		r.Get("/prescriptions", func(w http.ResponseWriter, req *http.Request) {
			id, ok := resolvePatientID(w, req)
			if !ok {
				return
			}
			resolved = id
			w.WriteHeader(http.StatusOK)
		})
	})

	// A patient asking for someone else's data still gets their own scope
	req := httptest.NewRequest(http.MethodGet, "/prescriptions?patient_id="+otherID.String(), nil)
	req.Header.Set("Authorization", bearerFor(t, issuer, auth.RolePatient, &ownID))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ownID, resolved)

	// Admins must name a patient explicitly
	req = httptest.NewRequest(http.MethodGet, "/prescriptions", nil)
	req.Header.Set("Authorization", bearerFor(t, issuer, auth.RoleAdmin, nil))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/prescriptions?patient_id="+otherID.String(), nil)
	req.Header.Set("Authorization", bearerFor(t, issuer, auth.RoleAdmin, nil))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, otherID, resolved)
}
