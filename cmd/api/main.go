package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/scheduler-api/internal/config"
	healthHandler "github.com/jwalitptl/scheduler-api/internal/handler/health"
	"github.com/jwalitptl/scheduler-api/internal/handler/prometheus"
	scheduleHandler "github.com/jwalitptl/scheduler-api/internal/handler/schedule"
	schedulingHandler "github.com/jwalitptl/scheduler-api/internal/handler/scheduling"
	statusHandler "github.com/jwalitptl/scheduler-api/internal/handler/status"
	waitlistHandler "github.com/jwalitptl/scheduler-api/internal/handler/waitlist"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/internal/repository/postgres"
	"github.com/jwalitptl/scheduler-api/internal/riskmodel"
	"github.com/jwalitptl/scheduler-api/internal/router"
	riskService "github.com/jwalitptl/scheduler-api/internal/service/risk"
	schedulerService "github.com/jwalitptl/scheduler-api/internal/service/scheduler"
	slotService "github.com/jwalitptl/scheduler-api/internal/service/slot"
	waitlistService "github.com/jwalitptl/scheduler-api/internal/service/waitlist"
	"github.com/jwalitptl/scheduler-api/internal/worker"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/messaging"
	redisBroker "github.com/jwalitptl/scheduler-api/pkg/messaging/redis"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(nil)

	// Persistence is optional; without a database the engine runs purely in
	// memory and loses state on restart.
	var db *sqlx.DB
	if cfg.Database.Host != "" {
		db, err = postgres.NewDB(cfg.Database)
		if err != nil {
			log.Fatal(err, "failed to connect to database")
		}
		defer db.Close()
	}

	var apptRepo repository.AppointmentRepository
	var schedRepo repository.ScheduleRepository
	var waitRepo repository.WaitlistRepository
	if db != nil {
		apptRepo = postgres.NewAppointmentRepository(db)
		schedRepo = postgres.NewScheduleRepository(db)
		waitRepo = postgres.NewWaitlistRepository(db)
	}

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log.Zerolog())
		if err != nil {
			log.Fatal(err, "failed to connect to Redis")
		}
		defer broker.Close()
	}

	m := metrics.NewMetrics("scheduler", "api")

	riskSvc, err := riskService.NewService(cfg.Risk)
	if err != nil {
		log.Fatal(err, "invalid risk configuration")
	}
	slotSvc := slotService.NewService(cfg.Scheduling, apptRepo, schedRepo, broker, log, m)
	waitlistSvc := waitlistService.NewService(cfg.Waitlist, slotSvc, riskSvc, waitRepo, log, m)
	schedulerSvc := schedulerService.NewService(cfg.Scheduling, riskSvc, slotSvc, waitlistSvc, log, m)

	var predictor schedulingHandler.Predictor
	if cfg.Model.BaseURL != "" {
		predictor = riskmodel.NewClient(cfg.Model, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restoreState(ctx, log, slotSvc, waitlistSvc, apptRepo, schedRepo, waitRepo)

	if broker != nil {
		slotFill := worker.NewSlotFillWorker(broker, waitlistSvc, log, m)
		if err := slotFill.Start(ctx); err != nil {
			log.Fatal(err, "failed to start slot fill worker")
		}
		contact := worker.NewContactWorker(waitlistSvc, broker, cfg.Waitlist.ContactPollInterval, log, m)
		go contact.Start(ctx)
	}

	prom := prometheus.New()
	r := router.NewRouter(log.Zerolog(), router.Config{
		RateLimit:      rate.Limit(cfg.Server.RateLimit),
		RateBurst:      cfg.Server.RateBurst,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, prom,
		healthHandler.NewHandler(db),
		schedulingHandler.NewHandler(schedulerSvc, slotSvc, predictor),
		scheduleHandler.NewHandler(slotSvc),
		waitlistHandler.NewHandler(waitlistSvc),
		statusHandler.NewHandler(slotSvc, waitlistSvc, cfg.Risk, cfg.Scheduling),
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "forced shutdown")
	}
}

// restoreState rebuilds the in-memory grids and waitlist from the persisted
// record. Appointments whose slot cannot be rebooked are logged and skipped;
// the grid stays consistent.
func restoreState(
	ctx context.Context,
	log *logger.Logger,
	slotSvc *slotService.Service,
	waitlistSvc *waitlistService.Service,
	apptRepo repository.AppointmentRepository,
	schedRepo repository.ScheduleRepository,
	waitRepo repository.WaitlistRepository,
) {
	if schedRepo != nil {
		scheds, err := schedRepo.List(ctx)
		if err != nil {
			log.Error(err, "failed to list persisted schedules")
		}
		for _, sched := range scheds {
			slotSvc.RestoreSchedule(sched)
		}
		log.Info("schedules restored", "count", len(scheds))
	}

	if apptRepo != nil {
		appts, err := apptRepo.ListConfirmed(ctx)
		if err != nil {
			log.Error(err, "failed to list persisted appointments")
		}
		restored := 0
		for _, appt := range appts {
			if err := slotSvc.RestoreAppointment(ctx, appt); err != nil {
				log.Error(err, "failed to restore appointment", "appointment_id", appt.ID.String())
				continue
			}
			restored++
		}
		log.Info("appointments restored", "count", restored)
	}

	if waitRepo != nil {
		entries, err := waitRepo.ListWaiting(ctx)
		if err != nil {
			log.Error(err, "failed to list persisted waitlist entries")
		}
		waitlistSvc.Restore(entries)
		log.Info("waitlist restored", "count", len(entries))
	}
}
