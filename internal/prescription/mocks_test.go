package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// mockRepository implements Repository with overridable functions so each
// test only stubs what it touches.
type mockRepository struct {
	getPatientFn         func(ctx context.Context, id uuid.UUID) (*Patient, error)
	getDoctorFn          func(ctx context.Context, id uuid.UUID) (*Doctor, error)
	getMedicineFn        func(ctx context.Context, id uuid.UUID) (*Medicine, error)
	createFn             func(ctx context.Context, p Prescription, meds []PrescriptionMedicine) (*Prescription, error)
	getByIDFn            func(ctx context.Context, id uuid.UUID) (*Prescription, error)
	getDetailFn          func(ctx context.Context, id uuid.UUID) (*PrescriptionDetail, error)
	listMedicinesFn      func(ctx context.Context, prescriptionID uuid.UUID) ([]PrescriptionMedicine, error)
	listByPatientFn      func(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Prescription, error)
	updateStatusFn       func(ctx context.Context, id uuid.UUID, from, to Status) (*Prescription, error)
	findExpiredActiveFn  func(ctx context.Context, now time.Time) ([]Prescription, error)
	markDispensedFn      func(ctx context.Context, prescriptionID uuid.UUID, medicineIDs []uuid.UUID) error
	countUndispensedFn   func(ctx context.Context, prescriptionID uuid.UUID) (int, error)
}

func (m *mockRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	if m.getPatientFn != nil {
		return m.getPatientFn(ctx, id)
	}
	return &Patient{ID: id}, nil
}

func (m *mockRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	if m.getDoctorFn != nil {
		return m.getDoctorFn(ctx, id)
	}
	return &Doctor{ID: id}, nil
}

func (m *mockRepository) GetMedicineByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	if m.getMedicineFn != nil {
		return m.getMedicineFn(ctx, id)
	}
	return &Medicine{ID: id}, nil
}

func (m *mockRepository) CreatePrescription(ctx context.Context, p Prescription, meds []PrescriptionMedicine) (*Prescription, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p, meds)
	}
	p.ID = uuid.New()
	p.Status = StatusActive
	return &p, nil
}

func (m *mockRepository) GetPrescriptionByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ErrPrescriptionNotFound
}

func (m *mockRepository) GetPrescriptionDetail(ctx context.Context, id uuid.UUID) (*PrescriptionDetail, error) {
	if m.getDetailFn != nil {
		return m.getDetailFn(ctx, id)
	}
	return nil, ErrPrescriptionNotFound
}

func (m *mockRepository) ListMedicines(ctx context.Context, prescriptionID uuid.UUID) ([]PrescriptionMedicine, error) {
	if m.listMedicinesFn != nil {
		return m.listMedicinesFn(ctx, prescriptionID)
	}
	return nil, nil
}

func (m *mockRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Prescription, error) {
	if m.listByPatientFn != nil {
		return m.listByPatientFn(ctx, patientID, limit, offset)
	}
	return nil, nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Prescription, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, from, to)
	}
	return &Prescription{ID: id, Status: to}, nil
}

func (m *mockRepository) FindExpiredActive(ctx context.Context, now time.Time) ([]Prescription, error) {
	if m.findExpiredActiveFn != nil {
		return m.findExpiredActiveFn(ctx, now)
	}
	return nil, nil
}

func (m *mockRepository) MarkDispensed(ctx context.Context, prescriptionID uuid.UUID, medicineIDs []uuid.UUID) error {
	if m.markDispensedFn != nil {
		return m.markDispensedFn(ctx, prescriptionID, medicineIDs)
	}
	return nil
}

func (m *mockRepository) CountUndispensed(ctx context.Context, prescriptionID uuid.UUID) (int, error) {
	if m.countUndispensedFn != nil {
		return m.countUndispensedFn(ctx, prescriptionID)
	}
	return 0, nil
}
