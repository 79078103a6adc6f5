package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/careport/prescription-fulfillment/internal/auth"
	"github.com/careport/prescription-fulfillment/internal/config"
	"github.com/careport/prescription-fulfillment/internal/db"
	redisclient "github.com/careport/prescription-fulfillment/internal/redis"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	log.Info().Msg("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	if err := db.ApplySchema(context.Background(), pool); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}
	log.Info().Msg("schema applied")

	gofakeit.Seed(time.Now().UnixNano())

	s := &seeder{pool: pool, geo: redisclient.NewRedisGeoIndex(rdb)}

	if err := s.run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	log.Info().Msg("seed complete")
}

type seeder struct {
	pool *pgxpool.Pool
	geo  redisclient.GeoIndex

	hospitalIDs []uuid.UUID
	doctorIDs   []uuid.UUID
	patientIDs  []uuid.UUID
	medicineIDs []uuid.UUID
	pharmacyIDs []uuid.UUID
}

func (s *seeder) run(ctx context.Context) error {
	if err := s.seedHospitals(ctx, 10); err != nil {
		return fmt.Errorf("seed hospitals: %w", err)
	}
	if err := s.seedDoctors(ctx, 100); err != nil {
		return fmt.Errorf("seed doctors: %w", err)
	}
	if err := s.seedPatients(ctx, 2000); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}
	if err := s.seedMedicines(ctx, 300); err != nil {
		return fmt.Errorf("seed medicines: %w", err)
	}
	if err := s.seedPharmacies(ctx, 150); err != nil {
		return fmt.Errorf("seed pharmacies: %w", err)
	}
	if err := s.seedStock(ctx); err != nil {
		return fmt.Errorf("seed stock: %w", err)
	}
	if err := s.seedPrescriptions(ctx, 500); err != nil {
		return fmt.Errorf("seed prescriptions: %w", err)
	}
	if err := s.seedDemoUsers(ctx); err != nil {
		return fmt.Errorf("seed demo users: %w", err)
	}
	return nil
}

func (s *seeder) seedHospitals(ctx context.Context, count int) error {
	log.Info().Int("count", count).Msg("seeding hospitals")

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO hospitals (id, name, address, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, gofakeit.Company()+" Hospital", gofakeit.Address().Address, gofakeit.Phone())
		if err != nil {
			return err
		}
		s.hospitalIDs = append(s.hospitalIDs, id)
	}

	return tx.Commit(ctx)
}

func (s *seeder) seedDoctors(ctx context.Context, count int) error {
	log.Info().Int("count", count).Msg("seeding doctors")

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		hospital := s.hospitalIDs[gofakeit.Number(0, len(s.hospitalIDs)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, hospital_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, "Dr. "+gofakeit.Name(), spec, hospital)
		if err != nil {
			return err
		}
		s.doctorIDs = append(s.doctorIDs, id)
	}

	return tx.Commit(ctx)
}

func (s *seeder) seedPatients(ctx context.Context, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
			s.patientIDs = append(s.patientIDs, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

func (s *seeder) seedMedicines(ctx context.Context, count int) error {
	log.Info().Int("count", count).Msg("seeding medicines")

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		generic := gofakeit.BeerName() // stands in for a generic name, unique enough
		brand := gofakeit.Word() + generic
		price := int64(gofakeit.Number(50, 20000))

		_, err := tx.Exec(ctx, `
			INSERT INTO medicines (id, brand_name, generic_name, manufacturer, unit_price_cents, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, id, brand, generic, gofakeit.Company(), price)
		if err != nil {
			return err
		}
		s.medicineIDs = append(s.medicineIDs, id)
	}

	return tx.Commit(ctx)
}

func (s *seeder) seedPharmacies(ctx context.Context, count int) error {
	centerLat := envFloat("SEED_CENTER_LAT", 40.7128)
	centerLng := envFloat("SEED_CENTER_LNG", -74.0060)

	log.Info().Int("count", count).Float64("lat", centerLat).Float64("lng", centerLng).Msg("seeding pharmacies")

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		// Scatter within roughly a 30km box around the center
		lat := centerLat + gofakeit.Float64Range(-0.25, 0.25)
		lng := centerLng + gofakeit.Float64Range(-0.3, 0.3)

		_, err := tx.Exec(ctx, `
			INSERT INTO pharmacies (id, name, address, latitude, longitude, license_no, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		`, id, gofakeit.LastName()+" Pharmacy", gofakeit.Address().Address, lat, lng,
			fmt.Sprintf("PH-%06d", gofakeit.Number(1, 999999)), gofakeit.Phone())
		if err != nil {
			return err
		}

		if err := s.geo.Add(ctx, id, lat, lng); err != nil {
			return err
		}

		s.pharmacyIDs = append(s.pharmacyIDs, id)
	}

	return tx.Commit(ctx)
}

func (s *seeder) seedStock(ctx context.Context) error {
	log.Info().Msg("seeding pharmacy stock")

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, pharmacyID := range s.pharmacyIDs {
		// Each pharmacy carries a random two-thirds of the catalogue
		for _, medicineID := range s.medicineIDs {
			if gofakeit.Number(0, 2) == 0 {
				continue
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO pharmacy_stock (pharmacy_id, medicine_id, quantity, updated_at)
				VALUES ($1, $2, $3, now())
				ON CONFLICT (pharmacy_id, medicine_id) DO UPDATE SET quantity = EXCLUDED.quantity
			`, pharmacyID, medicineID, gofakeit.Number(10, 500))
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func (s *seeder) seedPrescriptions(ctx context.Context, count int) error {
	log.Info().Int("count", count).Msg("seeding prescriptions")

	forms := []string{"tablet", "capsule", "syrup", "ointment"}
	routes := []string{"oral", "topical", "sublingual"}
	frequencies := []string{"1+0+1", "1+1+1", "0+0+1", "1+0+0"}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		patient := s.patientIDs[gofakeit.Number(0, len(s.patientIDs)-1)]
		doctor := s.doctorIDs[gofakeit.Number(0, len(s.doctorIDs)-1)]
		hospital := s.hospitalIDs[gofakeit.Number(0, len(s.hospitalIDs)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO prescriptions (id, patient_id, doctor_id, hospital_id, chief_complaints,
				findings, advice, follow_up_date, valid_until, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now() + interval '14 days', now() + interval '30 days', 'ACTIVE', now(), now())
		`, id, patient, doctor, hospital,
			gofakeit.Sentence(6), gofakeit.Sentence(8), gofakeit.Sentence(5))
		if err != nil {
			return err
		}

		nMeds := gofakeit.Number(1, 5)
		for j := 0; j < nMeds; j++ {
			medicine := s.medicineIDs[gofakeit.Number(0, len(s.medicineIDs)-1)]
			qty := gofakeit.Number(5, 60)
			form := forms[gofakeit.Number(0, len(forms)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO prescription_medicines (id, prescription_id, medicine_id, route, form,
					quantity_per_dose, frequency, duration_days, instruction, total_quantity, quantity, dispensed)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false)
				ON CONFLICT DO NOTHING
			`, uuid.New(), id, medicine,
				routes[gofakeit.Number(0, len(routes)-1)], form,
				gofakeit.Number(1, 2), frequencies[gofakeit.Number(0, len(frequencies)-1)],
				gofakeit.Number(3, 30), "after meals",
				fmt.Sprintf("%d %ss", qty, form), qty)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

// seedDemoUsers creates one login per role so the API is usable right after
// seeding. Passwords are all "password123".
func (s *seeder) seedDemoUsers(ctx context.Context) error {
	log.Info().Msg("seeding demo users")

	hash, err := auth.HashPassword("password123")
	if err != nil {
		return err
	}

	patient := s.patientIDs[0]
	pharmacy := s.pharmacyIDs[0]

	users := []struct {
		name       string
		email      string
		role       auth.Role
		patientID  *uuid.UUID
		pharmacyID *uuid.UUID
	}{
		{"Demo Patient", "patient@example.com", auth.RolePatient, &patient, nil},
		{"Demo Doctor", "doctor@example.com", auth.RoleDoctor, nil, nil},
		{"Demo Pharmacist", "pharmacist@example.com", auth.RolePharmacist, nil, &pharmacy},
		{"Demo Admin", "admin@example.com", auth.RoleAdmin, nil, nil},
	}

	for _, u := range users {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO users (id, name, email, password_hash, role, patient_id, pharmacy_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (email) DO NOTHING
		`, uuid.New(), u.name, u.email, hash, u.role, u.patientID, u.pharmacyID)
		if err != nil {
			return err
		}
	}

	return nil
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return def
}
