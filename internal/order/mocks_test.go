package order

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careport/prescription-fulfillment/internal/pharmacy"
	"github.com/careport/prescription-fulfillment/internal/prescription"
)

type mockRepository struct {
	createOrderFn        func(ctx context.Context, o Order, items []Item) (*Order, error)
	getByIDFn            func(ctx context.Context, id uuid.UUID) (*Order, error)
	getDetailFn          func(ctx context.Context, id uuid.UUID) (*Detail, error)
	getItemsFn           func(ctx context.Context, orderID uuid.UUID) ([]Item, error)
	findOpenFn           func(ctx context.Context, prescriptionID uuid.UUID) (*Order, error)
	updateStatusFn       func(ctx context.Context, id uuid.UUID, from, to Status) (*Order, error)
	listByPatientFn      func(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Summary, error)
	findExpiredPendingFn func(ctx context.Context, now time.Time) ([]Order, error)
	insertEventFn        func(ctx context.Context, ev EventLog) error
}

func (m *mockRepository) CreateOrder(ctx context.Context, o Order, items []Item) (*Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, o, items)
	}
	o.ID = uuid.New()
	o.Status = StatusPending
	return &o, nil
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ErrOrderNotFound
}

func (m *mockRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	if m.getDetailFn != nil {
		return m.getDetailFn(ctx, id)
	}
	return nil, ErrOrderNotFound
}

func (m *mockRepository) GetItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	if m.getItemsFn != nil {
		return m.getItemsFn(ctx, orderID)
	}
	return nil, nil
}

func (m *mockRepository) FindOpenForPrescription(ctx context.Context, prescriptionID uuid.UUID) (*Order, error) {
	if m.findOpenFn != nil {
		return m.findOpenFn(ctx, prescriptionID)
	}
	return nil, ErrOrderNotFound
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Order, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, from, to)
	}
	return &Order{ID: id, Status: to}, nil
}

func (m *mockRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Summary, error) {
	if m.listByPatientFn != nil {
		return m.listByPatientFn(ctx, patientID, limit, offset)
	}
	return nil, nil
}

func (m *mockRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Order, error) {
	if m.findExpiredPendingFn != nil {
		return m.findExpiredPendingFn(ctx, now)
	}
	return nil, nil
}

func (m *mockRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	if m.insertEventFn != nil {
		return m.insertEventFn(ctx, ev)
	}
	return nil
}

type mockPrescriptionOps struct {
	getFn      func(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error)
	dispenseFn func(ctx context.Context, id uuid.UUID, medicineIDs []uuid.UUID) (bool, error)
}

func (m *mockPrescriptionOps) Get(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, prescription.ErrPrescriptionNotFound
}

func (m *mockPrescriptionOps) Dispense(ctx context.Context, id uuid.UUID, medicineIDs []uuid.UUID) (bool, error) {
	if m.dispenseFn != nil {
		return m.dispenseFn(ctx, id, medicineIDs)
	}
	return false, nil
}

type mockPharmacyOps struct {
	getByIDFn         func(ctx context.Context, id uuid.UUID) (*pharmacy.Pharmacy, error)
	filterWithStockFn func(ctx context.Context, candidates []uuid.UUID, reqs []pharmacy.StockRequirement) ([]uuid.UUID, error)
	decrementStockFn  func(ctx context.Context, pharmacyID uuid.UUID, reqs []pharmacy.StockRequirement) error
}

func (m *mockPharmacyOps) GetByID(ctx context.Context, id uuid.UUID) (*pharmacy.Pharmacy, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &pharmacy.Pharmacy{ID: id}, nil
}

func (m *mockPharmacyOps) FilterWithStock(ctx context.Context, candidates []uuid.UUID, reqs []pharmacy.StockRequirement) ([]uuid.UUID, error) {
	if m.filterWithStockFn != nil {
		return m.filterWithStockFn(ctx, candidates, reqs)
	}
	return candidates, nil
}

func (m *mockPharmacyOps) DecrementStock(ctx context.Context, pharmacyID uuid.UUID, reqs []pharmacy.StockRequirement) error {
	if m.decrementStockFn != nil {
		return m.decrementStockFn(ctx, pharmacyID, reqs)
	}
	return nil
}

// inlineLocker runs the critical section directly, serialized per process.
type inlineLocker struct {
	mu sync.Mutex
}

func (l *inlineLocker) WithPrescriptionLock(ctx context.Context, prescriptionID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

// memoryIdempotencyStore is a map-backed IdempotencyStore.
type memoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]uuid.UUID
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{entries: make(map[string]uuid.UUID)}
}

func (s *memoryIdempotencyStore) Lookup(ctx context.Context, userID uuid.UUID, key string) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[userID.String()+":"+key]
	return id, ok, nil
}

func (s *memoryIdempotencyStore) Record(ctx context.Context, userID uuid.UUID, key string, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID.String() + ":" + key
	if _, ok := s.entries[k]; !ok {
		s.entries[k] = orderID
	}
	return nil
}
