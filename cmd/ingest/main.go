package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hooklinehq/hookline/internal/api"
	"github.com/hooklinehq/hookline/internal/auth"
	"github.com/hooklinehq/hookline/internal/config"
	"github.com/hooklinehq/hookline/internal/db"
	"github.com/hooklinehq/hookline/internal/delivery"
	"github.com/hooklinehq/hookline/internal/dispatch"
	"github.com/hooklinehq/hookline/internal/health"
	"github.com/hooklinehq/hookline/internal/logging"
	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/subscriber"
	"github.com/hooklinehq/hookline/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

type eventDispatcher interface {
	Dispatch(ctx context.Context, eventType, eventID string, payload []byte) (int, error)
}

// eventHandler turns queued events into staged deliveries. A non-nil return
// requeues the message; malformed envelopes are dropped.
type eventHandler struct {
	dispatcher eventDispatcher
	logger     *logging.Logger
}

func (h *eventHandler) HandleMessage(m *nsq.Message) error {
	var ev dispatch.Event
	if err := json.Unmarshal(m.Body, &ev); err != nil {
		h.logger.Plain().WithError(err).Error("bad event envelope, dropping")
		return nil
	}
	if err := ev.Validate(); err != nil {
		h.logger.Plain().WithError(err).WithEvent(ev.EventID).Error("invalid event, dropping")
		return nil
	}

	ctx := tracing.ExtractFromNSQ(context.Background(), ev.TraceHeaders)
	ctx, span := tracing.StartSpan(ctx, "ingest.consume_event",
		attribute.String("event_id", ev.EventID),
		attribute.String("event_type", ev.EventType),
	)
	defer span.End()

	if _, err := h.dispatcher.Dispatch(ctx, ev.EventType, ev.EventID, ev.Payload); err != nil {
		tracing.SetSpanError(ctx, err)
		h.logger.WithContext(ctx).WithEvent(ev.EventID).WithError(err).Error("dispatch failed, requeueing")
		return err
	}
	return nil
}

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("hookline-ingest")

	shutdown, err := tracing.Init(ctx, "hookline-ingest")
	if err != nil {
		logger.Plain().WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdown()

	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	store := delivery.NewStore(pool)
	dispatcher := dispatch.New(subscriber.NewDirectory(pool), store, logger)

	// NSQ consumer on the events topic
	conf := nsq.NewConfig()
	conf.MaxInFlight = 1000
	consumer, err := nsq.NewConsumer(cfg.NSQ.EventsTopic, cfg.NSQ.IngestChannel, conf)
	if err != nil {
		logger.Plain().WithError(err).Fatal("nsq consumer creation failed")
	}
	consumer.AddHandler(&eventHandler{dispatcher: dispatcher, logger: logger})

	// Connecting directly to NSQD forces channel creation, instead of the
	// channel being lazily created on first publish
	if err := consumer.ConnectToNSQD(cfg.NSQ.NsqdTCPAddr); err != nil {
		logger.Plain().WithError(err).Fatal("connect to nsqd failed")
	}
	if err := consumer.ConnectToNSQLookupd(cfg.NSQ.LookupHTTPAddr); err != nil {
		logger.Plain().WithError(err).Fatal("connect to lookupd failed")
	}

	// HTTP mux: health, metrics, admin API
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.HTTPHandler(pool))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	api.NewServer(dispatcher, store, logger).Register(mux)

	var handler http.Handler = mux
	if cfg.API.JWTPublicKey != "" {
		validator, err := auth.NewJWTValidator(cfg.API.JWTPublicKey, cfg.API.JWTIssuer, cfg.API.JWTAudience)
		if err != nil {
			logger.Plain().WithError(err).Fatal("jwt validator creation failed")
		}
		handler = validator.HTTPMiddleware(mux)
		logger.Plain().Info("admin API auth enabled")
	} else {
		logger.Plain().Warn("JWT_PUBLIC_KEY unset, admin API is unauthenticated")
	}

	httpSrv := &http.Server{Addr: cfg.API.HTTPPort, Handler: handler}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("ingest HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("ingest HTTP server failed")
		}
	}()

	logger.Plain().Info("ingest service started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("shutting down ingest service")
	consumer.Stop()
	<-consumer.StopChan
	_ = httpSrv.Shutdown(context.Background())
	logger.Plain().Info("ingest service stopped")
}
