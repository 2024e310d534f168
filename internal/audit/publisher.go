package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Publisher captures structured audit events and fans them out to a
// queryable store plus any extra sinks. Emitting never fails the caller's
// operation: sink errors are logged.
type Publisher struct {
	store  Store
	sinks  []Sink
	events chan Event
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool
	now    func() time.Time
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Events are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for sink error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithSink adds a write-only destination such as Kafka.
func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		p.deliver(context.Background(), event)
	}
}

// Close shuts down the async publisher and waits for pending events to drain.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

// Emit stamps the event with an ID and timestamp when missing and delivers it.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	if p.async {
		// Non-blocking send; drop event if buffer is full to avoid blocking hot path
		select {
		case p.events <- event:
		default:
			p.log().Warn("audit buffer full, event dropped",
				"action", event.Action,
				"email", event.Email,
			)
		}
		return
	}
	p.deliver(ctx, event)
}

func (p *Publisher) deliver(ctx context.Context, event Event) {
	var errs []error
	if err := p.store.Append(ctx, event); err != nil {
		errs = append(errs, err)
	}
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		p.log().Error("failed to persist audit event",
			"error", err,
			"action", event.Action,
			"email", event.Email,
		)
	}
}

func (p *Publisher) ListByEmail(ctx context.Context, email string) ([]Event, error) {
	return p.store.ListByEmail(ctx, email)
}

func (p *Publisher) Recent(ctx context.Context, limit int) ([]Event, error) {
	return p.store.Recent(ctx, limit)
}

func (p *Publisher) log() *slog.Logger {
	if p.logger == nil {
		return slog.Default()
	}
	return p.logger
}
