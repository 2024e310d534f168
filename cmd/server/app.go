package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imageref/internal/admin"
	"imageref/internal/audit"
	"imageref/internal/mirror"
	"imageref/internal/platform/config"
	"imageref/internal/platform/health"
	"imageref/internal/platform/kafka/producer"
	"imageref/internal/platform/metrics"
	"imageref/internal/platform/middleware"
	"imageref/internal/platform/tracer"
	"imageref/internal/registration/handler"
	"imageref/internal/registration/service"
	"imageref/internal/registration/store"
	"imageref/internal/storage"
	"imageref/pkg/platform/circuit"
)

const auditBufferSize = 256

// app owns every long-lived collaborator of the server process.
type app struct {
	cfg      config.Server
	log      *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	trusted  []netip.Prefix

	ledger   *store.CSVStore
	files    *storage.Local
	worker   *mirror.Worker
	producer *producer.Producer
	auditor  *audit.Publisher

	registration *handler.Handler
	admin        *admin.Handler
	health       *health.Handler
}

func newApp(cfg config.Server, log *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) (*app, error) {
	trusted, err := cfg.TrustedPrefixes()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, metrics: m, gatherer: gatherer, trusted: trusted}

	a.ledger = store.NewCSV(cfg.Ledger.Path, store.WithMetrics(m))
	if _, err := a.ledger.LoadAll(context.Background()); err != nil {
		// Readiness reports this; the process still serves health and metrics.
		log.Warn("ledger not readable at startup", "path", cfg.Ledger.Path, "error", err)
	}

	a.files, err = storage.NewLocal(cfg.Storage.Root, cfg.Storage.IncomingDir, cfg.Storage.PublicPrefix)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	sinks := []audit.PublisherOption{
		audit.WithAsyncBuffer(auditBufferSize),
		audit.WithPublisherLogger(log),
	}
	if strings.TrimSpace(cfg.Kafka.Brokers) != "" {
		a.producer, err = producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log)
		if err != nil {
			return nil, fmt.Errorf("init kafka producer: %w", err)
		}
		sinks = append(sinks, audit.WithSink(audit.NewKafkaSink(a.producer, cfg.Kafka.AuditTopic)))
		log.Info("audit events published to kafka", "topic", cfg.Kafka.AuditTopic)
	}
	a.auditor = audit.NewPublisher(audit.NewInMemoryStore(), sinks...)

	opts := []service.Option{
		service.WithAuditPublisher(a.auditor),
		service.WithMetrics(m),
		service.WithTracer(tracer.NewOTel()),
		service.WithLogger(log),
	}
	if cfg.Mirror.Enabled() {
		replicator, err := newReplicator(cfg.Mirror)
		if err != nil {
			a.closeQuietly()
			return nil, err
		}
		a.worker = mirror.NewWorker(replicator,
			mirror.WithLogger(log),
			mirror.WithMetrics(m),
			mirror.WithWorkers(cfg.Mirror.Workers),
			mirror.WithQueueSize(cfg.Mirror.QueueSize),
			mirror.WithMaxAttempts(cfg.Mirror.MaxAttempts),
			mirror.WithJobTimeout(cfg.Mirror.Timeout),
			mirror.WithBreaker(circuit.New("mirror-"+cfg.Mirror.Backend)),
		)
		a.worker.Start()
		opts = append(opts, service.WithMirror(a.worker))
	}

	registration := service.New(a.ledger, a.files, opts...)
	a.registration = handler.New(registration, a.files, log, cfg.Storage.MaxUploadBytes)
	a.admin = admin.New(admin.NewService(a.ledger, a.files, a.auditor), log)
	a.health = a.newHealth()
	return a, nil
}

func newReplicator(cfg config.Mirror) (mirror.Replicator, error) {
	switch cfg.Backend {
	case "http":
		r, err := mirror.NewHTTPReplicator(cfg.URL, cfg.Token, cfg.Timeout, nil)
		if err != nil {
			return nil, fmt.Errorf("init http mirror: %w", err)
		}
		return r, nil
	case "dir":
		return mirror.NewDirReplicator(cfg.Dir), nil
	default:
		return mirror.Noop{}, nil
	}
}

func (a *app) newHealth() *health.Handler {
	h := health.New(a.cfg.Environment)
	h.RegisterCheck("ledger", func(ctx context.Context) error {
		_, err := a.ledger.LoadAll(ctx)
		return err
	})
	h.RegisterCheck("uploads", health.DirCheck(a.cfg.Storage.Root))
	h.RegisterCheck("incoming", health.DirCheck(a.cfg.Storage.IncomingDir))
	if a.producer != nil {
		h.RegisterOptionalCheck("kafka", a.producer.Check)
	}
	if a.cfg.Mirror.Backend == "dir" {
		h.RegisterOptionalCheck("mirror", health.DirCheck(a.cfg.Mirror.Dir))
	}
	return h
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(a.log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Metadata(a.trusted))
	r.Use(middleware.Logger(a.log, a.metrics))

	a.health.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	r.Handle(a.files.PublicPrefix()+"/*", a.files.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.cfg.RequestTimeout))
		a.registration.Register(r)
		a.admin.Register(r)
	})
	return r
}

// close stops background work in dependency order: the mirror queue drains
// first, then buffered audit events, then the Kafka client they flush to.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.worker != nil {
		if err := a.worker.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop mirror worker: %w", err))
		}
	}
	if a.auditor != nil {
		a.auditor.Close()
	}
	if a.producer != nil {
		if err := a.producer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *app) closeQuietly() {
	if err := a.close(context.Background()); err != nil {
		a.log.Warn("cleanup after failed init", "error", err)
	}
}
