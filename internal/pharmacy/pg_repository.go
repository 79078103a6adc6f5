package pharmacy

import (
	"context"
	"errors"
	"fmt"

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

func scanPharmacy(row pgx.Row) (*Pharmacy, error) {
	var p Pharmacy

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Address,
		&p.Latitude,
		&p.Longitude,
		&p.LicenseNo,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPharmacyNotFound
		}
		return nil, err
	}

	return &p, nil
}

const pharmacyColumns = `id, name, address, latitude, longitude, license_no, phone, created_at, updated_at`

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Pharmacy, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+pharmacyColumns+`
		FROM pharmacies
		WHERE id = $1
	`, id)
	return scanPharmacy(row)
}

func (r *PgRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Pharmacy, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+pharmacyColumns+`
		FROM pharmacies
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPharmacies(rows)
}

func (r *PgRepository) ListAll(ctx context.Context, limit int) ([]Pharmacy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pharmacyColumns+`
		FROM pharmacies
		ORDER BY name
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPharmacies(rows)
}

func collectPharmacies(rows pgx.Rows) ([]Pharmacy, error) {
	var result []Pharmacy
	for rows.Next() {
		p, err := scanPharmacy(rows)
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

func (r *PgRepository) FilterWithStock(ctx context.Context, candidates []uuid.UUID, reqs []StockRequirement) ([]uuid.UUID, error) {
	if len(candidates) == 0 || len(reqs) == 0 {
		return nil, nil
	}

	medicineIDs := make([]uuid.UUID, len(reqs))
	minQty := make([]int, len(reqs))
	for i, req := range reqs {
		medicineIDs[i] = req.MedicineID
		minQty[i] = req.Quantity
	}

	rows, err := r.pool.Query(ctx, `
		SELECT s.pharmacy_id
		FROM pharmacy_stock s
		JOIN unnest($2::uuid[], $3::int[]) AS req(medicine_id, min_qty)
		  ON s.medicine_id = req.medicine_id
		WHERE s.pharmacy_id = ANY($1)
		  AND s.quantity >= req.min_qty
		GROUP BY s.pharmacy_id
		HAVING count(*) = $4
	`, candidates, medicineIDs, minQty, len(reqs))
	if err != nil {
		return nil, fmt.Errorf("filter pharmacies by stock: %w", err)
	}
	defer rows.Close()

	var result []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) DecrementStock(ctx context.Context, pharmacyID uuid.UUID, reqs []StockRequirement) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin decrement stock: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, req := range reqs {
		tag, err := tx.Exec(ctx, `
			UPDATE pharmacy_stock
			SET quantity = quantity - $3,
			    updated_at = now()
			WHERE pharmacy_id = $1
			  AND medicine_id = $2
			  AND quantity >= $3
		`, pharmacyID, req.MedicineID, req.Quantity)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("insufficient stock for medicine %s at pharmacy %s", req.MedicineID, pharmacyID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit decrement stock: %w", err)
	}

	return nil
}
