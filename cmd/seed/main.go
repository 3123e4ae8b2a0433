package main

// Seed demo bookings into the configured database:
//   go run ./cmd/seed -clinics 3 -per-clinic 20

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"clinix-backend/internal/appointments"
	"clinix-backend/internal/intake"
	"clinix-backend/internal/shared/config"
	"clinix-backend/internal/shared/storage/db"
	"clinix-backend/internal/shared/telemetry"
)

var complaints = []string{
	"sir dard aur halka bukhar",
	"severe chest pain since morning",
	"cough and cold for 3 days",
	"pet mein dard, can I come tomorrow",
	"skin rash on both arms",
	"routine checkup next monday",
	"difficulty breathing at night",
	"back pain after lifting",
	"bahut tez bukhar and vomiting",
	"follow-up for blood test report",
}

func main() {
	clinics := flag.Int("clinics", 3, "Number of clinics to seed")
	perClinic := flag.Int("per-clinic", 20, "Bookings per clinic")
	flag.Parse()

	cfg := config.Load()
	telemetry.Init("clinix-seed", cfg.Env, cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.Preset(db.PoolMigrate)))
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer sqlDB.Close()
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	if err := gofakeit.Seed(time.Now().UnixNano()); err != nil {
		log.Fatalf("seed faker: %v", err)
	}

	// intake results are computed locally so seeding never calls a provider
	svc := appointments.NewService(&appointments.PGRepo{DB: sqlDB}, nil, nil)
	svc.Conflicts = appointments.NewConflictChecker(svc.Repo, cfg.ConflictWindow)

	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	booked, skipped := 0, 0
	for c := 0; c < *clinics; c++ {
		clinicID := uuid.NewString()
		for i := 0; i < *perClinic; i++ {
			symptoms := complaints[gofakeit.Number(0, len(complaints)-1)]
			meta := intake.Normalize(symptoms)
			slot := start.Add(time.Duration(i*gofakeit.Number(15, 30)) * time.Minute)

			_, err := svc.Book(ctx, appointments.BookingRequest{
				ClinicID: clinicID,
				SlotTime: slot,
				Name:     gofakeit.Name(),
				Email:    gofakeit.Email(),
				Symptoms: symptoms,
				AIMeta:   &meta,
			})
			switch {
			case errors.Is(err, appointments.ErrSlotConflict):
				skipped++
			case err != nil:
				log.Fatalf("book clinic %s: %v", clinicID, err)
			default:
				booked++
			}
		}
		telemetry.Info("seed.clinic_done", map[string]any{"clinic_id": clinicID})
	}

	telemetry.Info("seed.complete", map[string]any{"booked": booked, "skipped_conflicts": skipped})
}
