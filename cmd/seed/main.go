package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mintos48/dental-clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	branchIDs, err := seedBranches(context.Background(), pool, 3)
	if err != nil {
		log.Fatalf("seed branches: %v", err)
	}
	if err := seedTreatments(context.Background(), pool, branchIDs); err != nil {
		log.Fatalf("seed treatments: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedBranches(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d branches", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.City() + " Dental Clinic"
		address := gofakeit.Address().Address

		_, err := tx.Exec(ctx, `
			INSERT INTO branches (id, name, address, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, address)
		if err != nil {
			return nil, err
		}

		// Mon-Fri 09:00-17:00, Sat 09:00-13:00, closed Sunday.
		for weekday := 1; weekday <= 6; weekday++ {
			closeMinute := 17 * 60
			if weekday == 6 {
				closeMinute = 13 * 60
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO branch_hours (branch_id, weekday, is_open, open_minute, close_minute)
				VALUES ($1, $2, true, $3, $4)
			`, id, weekday, 9*60, closeMinute)
			if err != nil {
				return nil, err
			}
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("branches seeded")
	return ids, nil
}

func seedTreatments(ctx context.Context, pool *pgxpool.Pool, branchIDs []uuid.UUID) error {
	log.Printf("seeding treatments for %d branches", len(branchIDs))

	treatments := []struct {
		name    string
		price   float64
		minutes int
	}{
		{"Checkup & Cleaning", 80, 30},
		{"Tooth Extraction", 150, 60},
		{"Root Canal", 450, 90},
		{"Dental Crown", 700, 60},
		{"Teeth Whitening", 250, 60},
		{"Orthodontic Consultation", 120, 30},
		{"Dental Implant", 1800, 120},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, branchID := range branchIDs {
		// Each branch offers a random subset so referrals have a reason to exist.
		offered := gofakeit.Number(4, len(treatments))
		for i := 0; i < offered; i++ {
			t := treatments[i]
			_, err := tx.Exec(ctx, `
				INSERT INTO treatment_types (id, branch_id, name, price, duration_minutes, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, true, now(), now())
			`, uuid.New(), branchID, t.name, t.price, t.minutes)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("treatments seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			phone := gofakeit.Phone()
			email := gofakeit.Email()
			birthdate := gofakeit.DateRange(
				time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2010, 12, 31, 0, 0, 0, 0, time.UTC),
			)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone, email, birthdate, address, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			`, id, name, phone, email, birthdate, gofakeit.Address().Address)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
