package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied as one batch by the seed tool. Statements are idempotent
// so re-running the seeder against an existing database is safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS hospitals (
		id          uuid PRIMARY KEY,
		name        text NOT NULL,
		address     text NOT NULL DEFAULT '',
		phone       text NOT NULL DEFAULT '',
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id          uuid PRIMARY KEY,
		name        text NOT NULL,
		email       text,
		phone       text,
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id          uuid PRIMARY KEY,
		name        text NOT NULL,
		specialty   text,
		hospital_id uuid REFERENCES hospitals(id),
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS medicines (
		id               uuid PRIMARY KEY,
		brand_name       text NOT NULL,
		generic_name     text NOT NULL,
		manufacturer     text NOT NULL DEFAULT '',
		unit_price_cents bigint NOT NULL DEFAULT 0,
		created_at       timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pharmacies (
		id          uuid PRIMARY KEY,
		name        text NOT NULL,
		address     text NOT NULL DEFAULT '',
		latitude    double precision NOT NULL,
		longitude   double precision NOT NULL,
		license_no  text,
		phone       text,
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pharmacy_stock (
		pharmacy_id uuid NOT NULL REFERENCES pharmacies(id),
		medicine_id uuid NOT NULL REFERENCES medicines(id),
		quantity    int NOT NULL DEFAULT 0,
		updated_at  timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (pharmacy_id, medicine_id)
	)`,
	`CREATE TABLE IF NOT EXISTS prescriptions (
		id               uuid PRIMARY KEY,
		patient_id       uuid NOT NULL REFERENCES patients(id),
		doctor_id        uuid NOT NULL REFERENCES doctors(id),
		hospital_id      uuid REFERENCES hospitals(id),
		chief_complaints text NOT NULL DEFAULT '',
		findings         text NOT NULL DEFAULT '',
		advice           text NOT NULL DEFAULT '',
		follow_up_date   timestamptz,
		valid_until      timestamptz NOT NULL,
		status           text NOT NULL DEFAULT 'ACTIVE',
		created_at       timestamptz NOT NULL DEFAULT now(),
		updated_at       timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS prescription_medicines (
		id                uuid PRIMARY KEY,
		prescription_id   uuid NOT NULL REFERENCES prescriptions(id),
		medicine_id       uuid NOT NULL REFERENCES medicines(id),
		route             text NOT NULL DEFAULT '',
		form              text NOT NULL DEFAULT '',
		quantity_per_dose int NOT NULL DEFAULT 1,
		frequency         text NOT NULL DEFAULT '',
		duration_days     int NOT NULL DEFAULT 0,
		instruction       text NOT NULL DEFAULT '',
		total_quantity    text NOT NULL DEFAULT '',
		quantity          int,
		dispensed         boolean NOT NULL DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id              uuid PRIMARY KEY,
		prescription_id uuid NOT NULL REFERENCES prescriptions(id),
		patient_id      uuid NOT NULL REFERENCES patients(id),
		pharmacy_id     uuid NOT NULL REFERENCES pharmacies(id),
		status          text NOT NULL DEFAULT 'pending',
		expires_at      timestamptz,
		created_at      timestamptz NOT NULL DEFAULT now(),
		updated_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id          uuid PRIMARY KEY,
		order_id    uuid NOT NULL REFERENCES orders(id),
		medicine_id uuid NOT NULL REFERENCES medicines(id),
		quantity    int NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            uuid PRIMARY KEY,
		name          text NOT NULL,
		email         text NOT NULL UNIQUE,
		password_hash text NOT NULL,
		role          text NOT NULL,
		patient_id    uuid REFERENCES patients(id),
		pharmacy_id   uuid REFERENCES pharmacies(id),
		created_at    timestamptz NOT NULL DEFAULT now(),
		updated_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id         bigserial PRIMARY KEY,
		event_type text NOT NULL,
		order_id   uuid,
		payload    jsonb,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_prescription ON orders(prescription_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_patient ON orders(patient_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_pending_expiry ON orders(expires_at) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_prescriptions_patient ON prescriptions(patient_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_prescription_medicines_rx ON prescription_medicines(prescription_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_medicine ON pharmacy_stock(medicine_id)`,
}

// ApplySchema creates all tables and indexes used by the service.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
