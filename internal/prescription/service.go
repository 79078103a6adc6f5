package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careport/prescription-fulfillment/internal/config"
)

var (
	ErrNoMedicines             = errors.New("prescription must contain at least one medicine")
	ErrPrescriptionNotActive   = errors.New("prescription is not active")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

type Service struct {
	repo Repository
	cfg  config.Config
}

func NewService(repo Repository, cfg config.Config) *Service {
	return &Service{
		repo: repo,
		cfg:  cfg,
	}
}

type CreateMedicineInput struct {
	MedicineID      uuid.UUID
	Route           string
	Form            string
	QuantityPerDose int
	Frequency       string
	DurationDays    int
	Instruction     string
	TotalQuantity   string
	Quantity        *int
}

type CreateInput struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	HospitalID      *uuid.UUID
	ChiefComplaints string
	Findings        string
	Advice          string
	FollowUpDate    *time.Time
	ValidUntil      *time.Time
	Medicines       []CreateMedicineInput
}

// Create issues a new ACTIVE prescription. Validity defaults to the
// configured window when the caller does not set one.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Prescription, error) {
	if len(in.Medicines) == 0 {
		return nil, ErrNoMedicines
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if _, err := s.repo.GetDoctorByID(ctx, in.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	meds := make([]PrescriptionMedicine, 0, len(in.Medicines))
	for _, m := range in.Medicines {
		if _, err := s.repo.GetMedicineByID(ctx, m.MedicineID); err != nil {
			if errors.Is(err, ErrMedicineNotFound) {
				return nil, fmt.Errorf("medicine %s: %w", m.MedicineID, err)
			}
			return nil, fmt.Errorf("load medicine: %w", err)
		}

		meds = append(meds, PrescriptionMedicine{
			MedicineID:      m.MedicineID,
			Route:           m.Route,
			Form:            m.Form,
			QuantityPerDose: m.QuantityPerDose,
			Frequency:       m.Frequency,
			DurationDays:    m.DurationDays,
			Instruction:     m.Instruction,
			TotalQuantity:   m.TotalQuantity,
			Quantity:        m.Quantity,
		})
	}

	validUntil := time.Now().Add(s.cfg.ValidityPeriod)
	if in.ValidUntil != nil {
		validUntil = *in.ValidUntil
	}

	p := Prescription{
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		HospitalID:      in.HospitalID,
		ChiefComplaints: in.ChiefComplaints,
		Findings:        in.Findings,
		Advice:          in.Advice,
		FollowUpDate:    in.FollowUpDate,
		ValidUntil:      validUntil,
	}

	created, err := s.repo.CreatePrescription(ctx, p, meds)
	if err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}

	log.Info().
		Str("prescription_id", created.ID.String()).
		Str("patient_id", created.PatientID.String()).
		Int("medicines", len(meds)).
		Msg("prescription created")

	return created, nil
}

// Get retrieves a fully hydrated prescription by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*PrescriptionDetail, error) {
	detail, err := s.repo.GetPrescriptionDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get prescription: %w", err)
	}
	return detail, nil
}

// ListByPatient retrieves prescriptions for a specific patient
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Prescription, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	prescriptions, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions by patient: %w", err)
	}
	return prescriptions, nil
}

// Cancel moves an active prescription to cancelled
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetPrescriptionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load prescription: %w", err)
	}

	if p.Status != StatusActive {
		return nil, ErrPrescriptionNotActive
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusActive, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) {
			// Lost the race against another transition
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("cancel prescription: %w", err)
	}

	log.Info().Str("prescription_id", id.String()).Msg("prescription cancelled")

	return updated, nil
}

// MarkFulfilledIfComplete flips an active prescription to fulfilled once all
// of its line items have been dispensed. Returns true when the transition
// happened on this call.
func (s *Service) MarkFulfilledIfComplete(ctx context.Context, id uuid.UUID) (bool, error) {
	remaining, err := s.repo.CountUndispensed(ctx, id)
	if err != nil {
		return false, err
	}
	if remaining > 0 {
		return false, nil
	}

	_, err = s.repo.UpdateStatus(ctx, id, StatusActive, StatusFulfilled)
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) {
			// Already cancelled, expired, or fulfilled elsewhere
			return false, nil
		}
		return false, fmt.Errorf("mark prescription fulfilled: %w", err)
	}

	log.Info().Str("prescription_id", id.String()).Msg("prescription fulfilled")

	return true, nil
}

// Dispense marks the given medicines of a prescription as dispensed and
// fulfills the prescription when nothing is left. Returns whether this call
// completed the prescription.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID, medicineIDs []uuid.UUID) (bool, error) {
	if err := s.repo.MarkDispensed(ctx, id, medicineIDs); err != nil {
		return false, err
	}
	return s.MarkFulfilledIfComplete(ctx, id)
}

// ExpireActivePrescriptions is intended to be called by the worker periodically
func (s *Service) ExpireActivePrescriptions(ctx context.Context) error {
	now := time.Now()
	candidates, err := s.repo.FindExpiredActive(ctx, now)
	if err != nil {
		return fmt.Errorf("find expired active prescriptions: %w", err)
	}

	for _, p := range candidates {
		_, err := s.repo.UpdateStatus(ctx, p.ID, StatusActive, StatusExpired)
		if err != nil && !errors.Is(err, ErrPrescriptionNotFound) {
			log.Error().Err(err).Str("prescription_id", p.ID.String()).Msg("failed to expire prescription")
			continue
		}
		log.Info().Str("prescription_id", p.ID.String()).Msg("prescription expired")
	}

	return nil
}
