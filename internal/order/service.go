package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careport/prescription-fulfillment/internal/config"
	"github.com/careport/prescription-fulfillment/internal/pharmacy"
	"github.com/careport/prescription-fulfillment/internal/prescription"
	redisclient "github.com/careport/prescription-fulfillment/internal/redis"
)

const (
	EventOrderCreated   = "ORDER_CREATED"
	EventOrderConfirmed = "ORDER_CONFIRMED"
	EventOrderCancelled = "ORDER_CANCELLED"
	EventOrderRejected  = "ORDER_REJECTED"
	EventOrderFulfilled = "ORDER_FULFILLED"
	EventOrderExpired   = "ORDER_EXPIRED"
)

var (
	ErrDuplicateOrder          = errors.New("prescription already has an open order")
	ErrOrderBeingPlaced        = errors.New("an order for this prescription is currently being placed, please retry")
	ErrOrderExpiredState       = errors.New("order is already expired")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotPrescriptionOwner    = errors.New("prescription belongs to a different patient")
	ErrItemNotInPrescription   = errors.New("order item does not match an undispensed prescription medicine")
	ErrDuplicateOrderItem      = errors.New("order items reference the same medicine more than once")
	ErrInvalidItemQuantity     = errors.New("order item quantity must be positive")
	ErrInsufficientStock       = errors.New("pharmacy cannot cover the requested medicines")
)

// PrescriptionOps is the slice of the prescription service the order flow
// needs.
type PrescriptionOps interface {
	Get(ctx context.Context, id uuid.UUID) (*prescription.PrescriptionDetail, error)
	Dispense(ctx context.Context, id uuid.UUID, medicineIDs []uuid.UUID) (bool, error)
}

// PharmacyOps is the slice of the pharmacy repository the order flow needs.
type PharmacyOps interface {
	GetByID(ctx context.Context, id uuid.UUID) (*pharmacy.Pharmacy, error)
	FilterWithStock(ctx context.Context, candidates []uuid.UUID, reqs []pharmacy.StockRequirement) ([]uuid.UUID, error)
	DecrementStock(ctx context.Context, pharmacyID uuid.UUID, reqs []pharmacy.StockRequirement) error
}

type Service struct {
	repo       Repository
	rx         PrescriptionOps
	pharmacies PharmacyOps
	locker     redisclient.Locker
	idem       redisclient.IdempotencyStore
	cfg        config.Config
}

func NewService(repo Repository, rx PrescriptionOps, pharmacies PharmacyOps, locker redisclient.Locker, idem redisclient.IdempotencyStore, cfg config.Config) *Service {
	return &Service{
		repo:       repo,
		rx:         rx,
		pharmacies: pharmacies,
		locker:     locker,
		idem:       idem,
		cfg:        cfg,
	}
}

type ItemInput struct {
	MedicineID uuid.UUID
	Quantity   int
}

type PlaceInput struct {
	PrescriptionID uuid.UUID
	PharmacyID     uuid.UUID
	// PatientID is the caller's patient identity (uuid.Nil for admins,
	// which skips the ownership check).
	PatientID uuid.UUID
	// CallerID is the authenticated user ID; it scopes the idempotency key
	// so callers without a patient record do not share a namespace.
	CallerID uuid.UUID
	// Items may be empty, in which case they are derived from the
	// prescription's undispensed medicines.
	Items []ItemInput
	// IdempotencyKey, when set, makes a replayed submission return the
	// order created by the first one.
	IdempotencyKey string
}

// Place sends a prescription to a pharmacy as a pending order. A
// distributed lock per prescription plus an open-order check guarantee a
// prescription is only ever being filled at one pharmacy at a time, and the
// idempotency key absorbs duplicate submissions of the same confirm.
func (s *Service) Place(ctx context.Context, in PlaceInput) (*Order, error) {
	if in.IdempotencyKey != "" {
		existingID, found, err := s.idem.Lookup(ctx, in.CallerID, in.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if found {
			return s.repo.GetByID(ctx, existingID)
		}
	}

	detail, err := s.rx.Get(ctx, in.PrescriptionID)
	if err != nil {
		return nil, err
	}
	if detail.Status != prescription.StatusActive {
		return nil, prescription.ErrPrescriptionNotActive
	}
	if in.PatientID != uuid.Nil && in.PatientID != detail.PatientID {
		return nil, ErrNotPrescriptionOwner
	}

	if _, err := s.pharmacies.GetByID(ctx, in.PharmacyID); err != nil {
		return nil, err
	}

	items, err := deriveItems(detail, in.Items)
	if err != nil {
		return nil, err
	}

	reqs := make([]pharmacy.StockRequirement, len(items))
	for i, it := range items {
		reqs[i] = pharmacy.StockRequirement{MedicineID: it.MedicineID, Quantity: it.Quantity}
	}

	covered, err := s.pharmacies.FilterWithStock(ctx, []uuid.UUID{in.PharmacyID}, reqs)
	if err != nil {
		return nil, fmt.Errorf("check pharmacy stock: %w", err)
	}
	if len(covered) == 0 {
		return nil, ErrInsufficientStock
	}

	var created *Order

	err = s.locker.WithPrescriptionLock(ctx, in.PrescriptionID, func(lockCtx context.Context) error {
		// Inside the critical section re-check for an open order
		existing, err := s.repo.FindOpenForPrescription(lockCtx, in.PrescriptionID)
		if err != nil && !errors.Is(err, ErrOrderNotFound) {
			return fmt.Errorf("check open order: %w", err)
		}
		if existing != nil {
			return ErrDuplicateOrder
		}

		expiresAt := time.Now().Add(s.cfg.OrderTTL)
		o, err := s.repo.CreateOrder(lockCtx, Order{
			PrescriptionID: in.PrescriptionID,
			PatientID:      detail.PatientID,
			PharmacyID:     in.PharmacyID,
			ExpiresAt:      &expiresAt,
		}, items)
		if err != nil {
			return fmt.Errorf("create pending order: %w", err)
		}

		created = o

		payload := map[string]any{
			"prescription_id": in.PrescriptionID.String(),
			"pharmacy_id":     in.PharmacyID.String(),
			"items":           len(items),
			"expires_at":      expiresAt,
		}
		s.logEvent(lockCtx, o.ID, EventOrderCreated, payload)

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrOrderBeingPlaced
		}
		return nil, err
	}

	if in.IdempotencyKey != "" {
		if err := s.idem.Record(ctx, in.CallerID, in.IdempotencyKey, created.ID); err != nil {
			log.Error().Err(err).Str("order_id", created.ID.String()).Msg("failed to record idempotency key")
		}
	}

	return created, nil
}

// deriveItems maps prescription medicines into order line items. Explicit
// items must reference undispensed prescription medicines; absent items
// fall back to the full undispensed set with quantities resolved per line.
func deriveItems(detail *prescription.PrescriptionDetail, explicit []ItemInput) ([]Item, error) {
	undispensed := make(map[uuid.UUID]prescription.PrescriptionMedicine)
	for _, m := range detail.Medicines {
		if !m.Dispensed {
			undispensed[m.MedicineID] = m
		}
	}

	if len(explicit) == 0 {
		if len(undispensed) == 0 {
			return nil, pharmacy.ErrNothingToDispense
		}
		items := make([]Item, 0, len(undispensed))
		for _, m := range detail.Medicines {
			if m.Dispensed {
				continue
			}
			items = append(items, Item{
				MedicineID: m.MedicineID,
				Quantity:   prescription.QuantityFor(m),
			})
		}
		return items, nil
	}

	items := make([]Item, 0, len(explicit))
	seen := make(map[uuid.UUID]bool, len(explicit))
	for _, in := range explicit {
		if _, ok := undispensed[in.MedicineID]; !ok {
			return nil, ErrItemNotInPrescription
		}
		// One line per prescription medicine; the stock check sums nothing,
		// so split lines would slip past it.
		if seen[in.MedicineID] {
			return nil, ErrDuplicateOrderItem
		}
		seen[in.MedicineID] = true
		if in.Quantity <= 0 {
			return nil, ErrInvalidItemQuantity
		}
		items = append(items, Item{
			MedicineID: in.MedicineID,
			Quantity:   in.Quantity,
		})
	}
	return items, nil
}

// Confirm moves a pending order to confirmed
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	now := time.Now()

	if o.Status == StatusExpired {
		return nil, ErrOrderExpiredState
	}

	if o.ExpiresAt != nil && o.ExpiresAt.Before(now) {
		// Try to mark it as expired if still pending
		_, updErr := s.repo.UpdateStatus(ctx, o.ID, StatusPending, StatusExpired)
		if updErr != nil && !errors.Is(updErr, ErrOrderNotFound) {
			log.Error().Err(updErr).Str("order_id", o.ID.String()).Msg("failed to mark order expired during confirm")
		}
		s.logEvent(ctx, o.ID, EventOrderExpired, map[string]any{
			"reason": "confirm_after_expiry",
		})
		return nil, ErrOrderExpiredState
	}

	if o.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, o.ID, StatusPending, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm order: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventOrderConfirmed, map[string]any{})

	return updated, nil
}

// Cancel moves an open order to cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.closeOrder(ctx, id, StatusCancelled, EventOrderCancelled)
}

// Reject is the pharmacy-side refusal of an open order.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.closeOrder(ctx, id, StatusRejected, EventOrderRejected)
}

func (s *Service) closeOrder(ctx context.Context, id uuid.UUID, to Status, event string) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	if o.Status != StatusPending && o.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, o.ID, o.Status, to)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			// Lost the race against another transition
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("close order: %w", err)
	}

	s.logEvent(ctx, updated.ID, event, map[string]any{"from": string(o.Status)})

	return updated, nil
}

// Dispense fulfills a confirmed order: decrements pharmacy stock, marks the
// prescription medicines dispensed, and completes the prescription when the
// last line item is handed over. The confirmed→fulfilled swap runs before any
// side effects, so a retry of a half-done dispense loses the swap and cannot
// decrement stock a second time.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	if o.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	items, err := s.repo.GetItems(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}

	reqs := make([]pharmacy.StockRequirement, len(items))
	medicineIDs := make([]uuid.UUID, len(items))
	for i, it := range items {
		reqs[i] = pharmacy.StockRequirement{MedicineID: it.MedicineID, Quantity: it.Quantity}
		medicineIDs[i] = it.MedicineID
	}

	updated, err := s.repo.UpdateStatus(ctx, o.ID, StatusConfirmed, StatusFulfilled)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("fulfill order: %w", err)
	}

	if err := s.pharmacies.DecrementStock(ctx, o.PharmacyID, reqs); err != nil {
		// Nothing left the shelf yet; hand the order back so the
		// pharmacist can retry.
		if _, revertErr := s.repo.UpdateStatus(ctx, o.ID, StatusFulfilled, StatusConfirmed); revertErr != nil {
			log.Error().Err(revertErr).Str("order_id", o.ID.String()).Msg("failed to revert order after stock decrement failure")
		}
		return nil, fmt.Errorf("decrement stock: %w", err)
	}

	rxFulfilled, err := s.rx.Dispense(ctx, o.PrescriptionID, medicineIDs)
	if err != nil {
		// Stock is already handed over, so the order stays fulfilled; the
		// prescription lines need a manual fix.
		log.Error().Err(err).Str("order_id", o.ID.String()).Str("prescription_id", o.PrescriptionID.String()).Msg("order fulfilled but prescription medicines not marked dispensed")
		return nil, fmt.Errorf("mark prescription dispensed: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventOrderFulfilled, map[string]any{
		"prescription_fulfilled": rxFulfilled,
	})

	return updated, nil
}

// Get retrieves a fully hydrated order by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return detail, nil
}

// ListByPatient retrieves orders for a specific patient
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders by patient: %w", err)
	}
	return orders, nil
}

// ExpirePendingOrders is intended to be called by the worker periodically
func (s *Service) ExpirePendingOrders(ctx context.Context) error {
	now := time.Now()
	candidates, err := s.repo.FindExpiredPending(ctx, now)
	if err != nil {
		return fmt.Errorf("find expired pending orders: %w", err)
	}

	for _, o := range candidates {
		_, err := s.repo.UpdateStatus(ctx, o.ID, StatusPending, StatusExpired)
		if err != nil && !errors.Is(err, ErrOrderNotFound) {
			log.Error().Err(err).Str("order_id", o.ID.String()).Msg("failed to expire order")
			continue
		}
		s.logEvent(ctx, o.ID, EventOrderExpired, map[string]any{
			"reason": "worker",
		})
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, orderID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	oid := orderID

	ev := EventLog{
		EventType: eventType,
		OrderID:   &oid,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Str("order_id", orderID.String()).Msg("failed to insert event log")
	}
}
