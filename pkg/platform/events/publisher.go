package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Publisher fans ledger events out to a store and optional sinks.
//
// In sync mode (default) Emit blocks until the store write completes. With
// WithAsyncBuffer, Emit enqueues and a background worker drains; Close flushes
// the queue before returning. A full buffer drops the event rather than
// blocking the ledger operation.
type Publisher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger

	inbox  chan Event
	wg     sync.WaitGroup
	closed sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission with the given queue size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

// WithSink adds a downstream sink (e.g. Kafka) receiving every event.
func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit publishes one event. In sync mode errors from the store propagate to
// the caller; in async mode Emit never blocks and delivery errors are logged.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox == nil {
		return p.deliver(ctx, event)
	}

	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.Warn("event buffer full, dropping event",
				"type", event.Type,
				"project", event.Project,
			)
		}
	}
	return nil
}

// List returns the stored events for a project, oldest first.
func (p *Publisher) List(ctx context.Context, project string) ([]Event, error) {
	return p.store.ListByProject(ctx, project)
}

// Close drains the async queue, if any, and stops the worker.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.deliver(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to deliver event",
				"type", event.Type,
				"project", event.Project,
				"error", err,
			)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil && p.logger != nil {
			// Sink failures must not fail the ledger operation; the store
			// copy remains the durable record.
			p.logger.Error("event sink publish failed",
				"type", event.Type,
				"project", event.Project,
				"error", err,
			)
		}
	}
	return nil
}
