package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrMedicineNotFound     = errors.New("medicine not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetMedicineByID(ctx context.Context, id uuid.UUID) (*Medicine, error)

	CreatePrescription(ctx context.Context, p Prescription, meds []PrescriptionMedicine) (*Prescription, error)
	GetPrescriptionByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetPrescriptionDetail(ctx context.Context, id uuid.UUID) (*PrescriptionDetail, error)
	ListMedicines(ctx context.Context, prescriptionID uuid.UUID) ([]PrescriptionMedicine, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Prescription, error)

	// Compare-and-swap status transition
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Prescription, error)

	// Expiry worker
	FindExpiredActive(ctx context.Context, now time.Time) ([]Prescription, error)

	// Dispensing
	MarkDispensed(ctx context.Context, prescriptionID uuid.UUID, medicineIDs []uuid.UUID) error
	CountUndispensed(ctx context.Context, prescriptionID uuid.UUID) (int, error)
}
