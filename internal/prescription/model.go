package prescription

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusFulfilled Status = "FULFILLED"
	StatusExpired   Status = "EXPIRED"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID         uuid.UUID
	Name       string
	Specialty  *string
	HospitalID *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Medicine struct {
	ID             uuid.UUID
	BrandName      string
	GenericName    string
	Manufacturer   string
	UnitPriceCents int64
	CreatedAt      time.Time
}

type Prescription struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	HospitalID      *uuid.UUID
	ChiefComplaints string
	Findings        string
	Advice          string
	FollowUpDate    *time.Time
	ValidUntil      time.Time
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PrescriptionMedicine is one line item of a prescription. TotalQuantity is
// the legacy free-text field ("15 tabs"); Quantity is the structured count
// and wins when set.
type PrescriptionMedicine struct {
	ID              uuid.UUID
	PrescriptionID  uuid.UUID
	MedicineID      uuid.UUID
	Route           string
	Form            string
	QuantityPerDose int
	Frequency       string
	DurationDays    int
	Instruction     string
	TotalQuantity   string
	Quantity        *int
	Dispensed       bool

	// Hydrated for detail reads
	Medicine *Medicine
}

type PrescriptionDetail struct {
	Prescription
	Medicines []PrescriptionMedicine
	Patient   *Patient
	Doctor    *Doctor
}
