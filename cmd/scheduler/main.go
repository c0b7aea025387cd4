package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hooklinehq/hookline/internal/backoff"
	"github.com/hooklinehq/hookline/internal/config"
	"github.com/hooklinehq/hookline/internal/db"
	"github.com/hooklinehq/hookline/internal/delivery"
	"github.com/hooklinehq/hookline/internal/health"
	"github.com/hooklinehq/hookline/internal/logging"
	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/scheduler"
	"github.com/hooklinehq/hookline/internal/subscriber"
	"github.com/hooklinehq/hookline/internal/tracing"
)

const userAgent = "hookline/1.0"

func main() {
	cfg := config.FromEnv()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logging.New("hookline-scheduler")

	shutdown, err := tracing.Init(ctx, "hookline-scheduler")
	if err != nil {
		logger.Plain().WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdown()

	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.HTTPHandler(pool))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: cfg.Scheduler.HTTPPort, Handler: mux}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("scheduler HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("scheduler HTTP server failed")
		}
	}()

	sched := scheduler.New(
		delivery.NewStore(pool),
		subscriber.NewDirectory(pool),
		delivery.NewClient(userAgent, cfg.Scheduler.DefaultTimeout),
		scheduler.Config{
			WorkerID:     cfg.Scheduler.WorkerID,
			PollInterval: cfg.Scheduler.PollInterval,
			BatchSize:    cfg.Scheduler.BatchSize,
			ClaimLease:   cfg.Scheduler.ClaimLease,
			Backoff: backoff.Policy{
				Base:      cfg.Scheduler.BackoffBase,
				Cap:       cfg.Scheduler.BackoffCap,
				JitterPct: cfg.Scheduler.JitterPct,
			},
		},
		logger,
	)

	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Plain().WithError(err).Error("scheduler loop exited")
		}
	}()

	logger.Plain().WithField("worker_id", cfg.Scheduler.WorkerID).Info("scheduler service started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("shutting down scheduler service")
	cancel()
	_ = httpSrv.Shutdown(context.Background())
	logger.Plain().Info("scheduler service stopped")
}
