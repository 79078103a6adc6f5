package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	CreateOrder(ctx context.Context, o Order, items []Item) (*Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	GetItems(ctx context.Context, orderID uuid.UUID) ([]Item, error)

	// For duplicate checks: an open order is pending or confirmed.
	FindOpenForPrescription(ctx context.Context, prescriptionID uuid.UUID) (*Order, error)

	// Compare-and-swap status transition
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Order, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Summary, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Order, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
