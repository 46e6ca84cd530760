package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mintos48/dental-clinic-scheduling/internal/api"
	"github.com/Mintos48/dental-clinic-scheduling/internal/appointment"
	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
	"github.com/Mintos48/dental-clinic-scheduling/internal/config"
	"github.com/Mintos48/dental-clinic-scheduling/internal/db"
	"github.com/Mintos48/dental-clinic-scheduling/internal/events"
	"github.com/Mintos48/dental-clinic-scheduling/internal/metrics"
	"github.com/Mintos48/dental-clinic-scheduling/internal/notify"
	redisclient "github.com/Mintos48/dental-clinic-scheduling/internal/redis"
	"github.com/Mintos48/dental-clinic-scheduling/internal/referral"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

var version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

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

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	locker := redisclient.NewRedisBranchDayLocker(rdb, cfg.LockTTL)
	recorder := events.NewPgStore(pgPool)
	dispatcher := notify.NewLogDispatcher()
	m := metrics.NewSchedulingMetrics(nil)

	clinicSvc := clinic.NewService(clinic.NewPgRepository(pgPool), recorder)
	apptRepo := appointment.NewPgRepository(pgPool)
	apptSvc := appointment.NewService(apptRepo, clinicSvc, locker, recorder, dispatcher, m)
	referralSvc := referral.NewService(referral.NewPgRepository(pgPool), clinicSvc, locker, recorder, dispatcher, m)

	// Appointments and blocks each contribute taken intervals to the listing.
	availability := schedule.NewAvailability(clinicSvc, apptSvc, clinicSvc)

	router := api.NewRouter(api.RouterConfig{
		Appointments: apptSvc,
		Referrals:    referralSvc,
		Clinics:      clinicSvc,
		Slots:        availability,
		Feed:         recorder,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatalf("http server error: %v", err)
	case <-rootCtx.Done():
	}

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}
