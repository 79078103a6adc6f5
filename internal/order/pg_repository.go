package order

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

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var expiresAt *time.Time

	err := row.Scan(
		&o.ID,
		&o.PrescriptionID,
		&o.PatientID,
		&o.PharmacyID,
		&o.Status,
		&expiresAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	o.ExpiresAt = expiresAt
	return &o, nil
}

const orderColumns = `id, prescription_id, patient_id, pharmacy_id, status, expires_at, created_at, updated_at`

func (r *PgRepository) CreateOrder(ctx context.Context, o Order, items []Item) (*Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New()

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (id, prescription_id, patient_id, pharmacy_id, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, now(), now())
		RETURNING `+orderColumns+`
	`, id, o.PrescriptionID, o.PatientID, o.PharmacyID, o.ExpiresAt)

	created, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, medicine_id, quantity)
			VALUES ($1, $2, $3, $4)
		`, uuid.New(), created.ID, it.MedicineID, it.Quantity)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create order: %w", err)
	}

	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)
	return scanOrder(row)
}

func (r *PgRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT o.id, o.prescription_id, o.patient_id, o.pharmacy_id, o.status,
		       o.expires_at, o.created_at, o.updated_at, p.name
		FROM orders o
		JOIN pharmacies p ON p.id = o.pharmacy_id
		WHERE o.id = $1
	`, id)

	var d Detail
	var expiresAt *time.Time

	err := row.Scan(
		&d.ID,
		&d.PrescriptionID,
		&d.PatientID,
		&d.PharmacyID,
		&d.Status,
		&expiresAt,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PharmacyName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	d.ExpiresAt = expiresAt

	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Items = items

	return &d, nil
}

func (r *PgRepository) GetItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.order_id, i.medicine_id, i.quantity, m.brand_name
		FROM order_items i
		JOIN medicines m ON m.id = i.medicine_id
		WHERE i.order_id = $1
		ORDER BY m.brand_name
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MedicineID, &it.Quantity, &it.MedicineName); err != nil {
			return nil, err
		}
		result = append(result, it)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) FindOpenForPrescription(ctx context.Context, prescriptionID uuid.UUID) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE prescription_id = $1
		  AND status IN ('pending', 'confirmed')
		ORDER BY created_at DESC
		LIMIT 1
	`, prescriptionID)
	return scanOrder(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+orderColumns+`
	`, id, to, from)

	return scanOrder(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.prescription_id, o.patient_id, o.pharmacy_id, o.status,
		       o.expires_at, o.created_at, o.updated_at, p.name,
		       (SELECT count(*) FROM order_items i WHERE i.order_id = o.id) AS item_count
		FROM orders o
		JOIN pharmacies p ON p.id = o.pharmacy_id
		WHERE o.patient_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Summary
	for rows.Next() {
		var s Summary
		var expiresAt *time.Time

		err := rows.Scan(
			&s.ID,
			&s.PrescriptionID,
			&s.PatientID,
			&s.PharmacyID,
			&s.Status,
			&expiresAt,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.PharmacyName,
			&s.ItemCount,
		)
		if err != nil {
			return nil, err
		}

		s.ExpiresAt = expiresAt
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, order_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.OrderID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
