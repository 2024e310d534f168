// Package service implements the registration lookup and image submission
// workflow over the ledger, file storage and mirror collaborators.
package service

import (
	"context"
	"log/slog"

	"imageref/internal/audit"
	"imageref/internal/mirror"
	"imageref/internal/platform/metrics"
	"imageref/internal/platform/tracer"
	"imageref/internal/registration/models"
	"imageref/internal/registration/store"
	"imageref/internal/storage"
)

// Store is the ledger slice the workflow needs.
// Error Contract:
// - LoadAll returns a CodeLedgerUnreadable domain error when the ledger cannot be read
// - Update serializes load-mutate-save; errors are load, save or fn errors
type Store interface {
	LoadAll(ctx context.Context) ([]models.Record, error)
	Update(ctx context.Context, fn store.MutateFunc) error
}

// FileStore places spooled uploads into category directories.
type FileStore interface {
	Place(ctx context.Context, upload models.Upload, category models.Category, childName, email string) (storage.Placed, error)
	Discard(upload models.Upload)
}

// Mirror accepts replication jobs without blocking.
type Mirror interface {
	Enqueue(job mirror.Job) error
}

// AuditPublisher records lookup and submission events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

type Option func(*Service)

// Service resolves emails to registrations and drives submissions.
type Service struct {
	store   Store
	files   FileStore
	mirror  Mirror
	auditor AuditPublisher
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	logger  *slog.Logger
}

func New(store Store, files FileStore, opts ...Option) *Service {
	svc := &Service{
		store:  store,
		files:  files,
		tracer: tracer.NewNoop(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMirror enables background replication of stored files.
func WithMirror(m Mirror) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
