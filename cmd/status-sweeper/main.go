package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
	"github.com/Mintos48/dental-clinic-scheduling/internal/config"
	"github.com/Mintos48/dental-clinic-scheduling/internal/db"
	"github.com/Mintos48/dental-clinic-scheduling/internal/metrics"
)

// The sweeper removes daily status overrides and blocked slots for dates that
// have passed. Past appointments stay: they are the clinic's record.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("status-sweeper starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running status sweeper in env=%s interval=%s", cfg.Env, cfg.SweepInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	m := metrics.NewSchedulingMetrics(nil)
	svc := clinic.NewService(clinic.NewPgRepository(pgPool), nil)

	// Run once at startup
	runOnce(rootCtx, svc, m)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping status sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, m)
		}
	}
}

func runOnce(ctx context.Context, svc *clinic.Service, m *metrics.SchedulingMetrics) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	statuses, blocks, err := svc.Sweep(runCtx, time.Now().UTC())
	if err != nil {
		log.Printf("sweep run error: %v", err)
		return
	}
	m.ObserveSweep("clinic_daily_status", statuses)
	m.ObserveSweep("blocked_time_slots", blocks)
	log.Printf("sweep run complete statuses=%d blocks=%d in %s", statuses, blocks, time.Since(start))
}
