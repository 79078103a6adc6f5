package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFulfilled Status = "fulfilled"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

type Order struct {
	ID             uuid.UUID
	PrescriptionID uuid.UUID
	PatientID      uuid.UUID
	PharmacyID     uuid.UUID
	Status         Status
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Item struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MedicineID uuid.UUID
	Quantity   int

	// Hydrated for detail reads
	MedicineName string
}

type Detail struct {
	Order
	Items        []Item
	PharmacyName string
}

// Summary is the list-view shape: the order plus the pharmacy name and how
// many line items it carries.
type Summary struct {
	Order
	PharmacyName string
	ItemCount    int
}

type EventLog struct {
	ID        int64
	EventType string
	OrderID   *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
