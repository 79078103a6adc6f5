package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.HospitalID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine

	err := row.Scan(
		&m.ID,
		&m.BrandName,
		&m.GenericName,
		&m.Manufacturer,
		&m.UnitPriceCents,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMedicineNotFound
		}
		return nil, err
	}

	return &m, nil
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription

	err := row.Scan(
		&p.ID,
		&p.PatientID,
		&p.DoctorID,
		&p.HospitalID,
		&p.ChiefComplaints,
		&p.Findings,
		&p.Advice,
		&p.FollowUpDate,
		&p.ValidUntil,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}

	return &p, nil
}

const prescriptionColumns = `id, patient_id, doctor_id, hospital_id, chief_complaints, findings,
	advice, follow_up_date, valid_until, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, hospital_id, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetMedicineByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, brand_name, generic_name, manufacturer, unit_price_cents, created_at
		FROM medicines
		WHERE id = $1
	`, id)
	return scanMedicine(row)
}

func (r *PgRepository) CreatePrescription(ctx context.Context, p Prescription, meds []PrescriptionMedicine) (*Prescription, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create prescription: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New()

	row := tx.QueryRow(ctx, `
		INSERT INTO prescriptions (id, patient_id, doctor_id, hospital_id, chief_complaints,
			findings, advice, follow_up_date, valid_until, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'ACTIVE', now(), now())
		RETURNING `+prescriptionColumns+`
	`, id, p.PatientID, p.DoctorID, p.HospitalID, p.ChiefComplaints,
		p.Findings, p.Advice, p.FollowUpDate, p.ValidUntil)

	created, err := scanPrescription(row)
	if err != nil {
		return nil, err
	}

	for _, m := range meds {
		_, err := tx.Exec(ctx, `
			INSERT INTO prescription_medicines (id, prescription_id, medicine_id, route, form,
				quantity_per_dose, frequency, duration_days, instruction, total_quantity, quantity, dispensed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false)
		`, uuid.New(), created.ID, m.MedicineID, m.Route, m.Form,
			m.QuantityPerDose, m.Frequency, m.DurationDays, m.Instruction, m.TotalQuantity, m.Quantity)
		if err != nil {
			return nil, fmt.Errorf("insert prescription medicine: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create prescription: %w", err)
	}

	return created, nil
}

func (r *PgRepository) GetPrescriptionByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE id = $1
	`, id)
	return scanPrescription(row)
}

func (r *PgRepository) GetPrescriptionDetail(ctx context.Context, id uuid.UUID) (*PrescriptionDetail, error) {
	p, err := r.GetPrescriptionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &PrescriptionDetail{Prescription: *p}

	if patient, err := r.GetPatientByID(ctx, p.PatientID); err == nil {
		detail.Patient = patient
	}
	if doctor, err := r.GetDoctorByID(ctx, p.DoctorID); err == nil {
		detail.Doctor = doctor
	}

	meds, err := r.ListMedicines(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Medicines = meds

	return detail, nil
}

func (r *PgRepository) ListMedicines(ctx context.Context, prescriptionID uuid.UUID) ([]PrescriptionMedicine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pm.id, pm.prescription_id, pm.medicine_id, pm.route, pm.form,
		       pm.quantity_per_dose, pm.frequency, pm.duration_days, pm.instruction,
		       pm.total_quantity, pm.quantity, pm.dispensed,
		       m.id, m.brand_name, m.generic_name, m.manufacturer, m.unit_price_cents, m.created_at
		FROM prescription_medicines pm
		JOIN medicines m ON m.id = pm.medicine_id
		WHERE pm.prescription_id = $1
		ORDER BY m.brand_name
	`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PrescriptionMedicine
	for rows.Next() {
		var pm PrescriptionMedicine
		var m Medicine

		err := rows.Scan(
			&pm.ID,
			&pm.PrescriptionID,
			&pm.MedicineID,
			&pm.Route,
			&pm.Form,
			&pm.QuantityPerDose,
			&pm.Frequency,
			&pm.DurationDays,
			&pm.Instruction,
			&pm.TotalQuantity,
			&pm.Quantity,
			&pm.Dispensed,
			&m.ID,
			&m.BrandName,
			&m.GenericName,
			&m.Manufacturer,
			&m.UnitPriceCents,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		pm.Medicine = &m
		result = append(result, pm)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Prescription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE prescriptions
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+prescriptionColumns+`
	`, id, to, from)

	return scanPrescription(row)
}

func (r *PgRepository) FindExpiredActive(ctx context.Context, now time.Time) ([]Prescription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE status = 'ACTIVE'
		  AND valid_until < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MarkDispensed(ctx context.Context, prescriptionID uuid.UUID, medicineIDs []uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE prescription_medicines
		SET dispensed = true
		WHERE prescription_id = $1
		  AND medicine_id = ANY($2)
	`, prescriptionID, medicineIDs)
	if err != nil {
		return fmt.Errorf("mark dispensed: %w", err)
	}
	return nil
}

func (r *PgRepository) CountUndispensed(ctx context.Context, prescriptionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM prescription_medicines
		WHERE prescription_id = $1
		  AND dispensed = false
	`, prescriptionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count undispensed: %w", err)
	}
	return n, nil
}
