// Package journal records what a drill run did, step by step.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nazeru/shopctl-go/pkg/contracts"
	"github.com/nazeru/shopctl-go/pkg/kafka"
	"github.com/nazeru/shopctl-go/pkg/logging"
	"github.com/nazeru/shopctl-go/pkg/outbox"
)

type Sink interface {
	Emit(ctx context.Context, evt contracts.Event) error
	Close() error
}

// NewEvent stamps an event id and creation time.
func NewEvent(runID, orderID, typ string, payload map[string]any) contracts.Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return contracts.Event{
		EventID:   uuid.NewString(),
		RunID:     runID,
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
		Type:      typ,
		Payload:   payload,
	}
}

// LogSink writes events to the structured log only.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, evt contracts.Event) error {
	step, _ := evt.Payload["step"].(string)
	logging.Log(logging.Fields{
		Service: "shopctl",
		RunID:   evt.RunID,
		OrderID: evt.OrderID,
		EventID: evt.EventID,
		Step:    step,
		Status:  evt.Type,
		Message: "journal event",
	})
	return nil
}

func (LogSink) Close() error { return nil }

// KafkaSink publishes each event keyed by run id.
type KafkaSink struct {
	Writer kafka.MessageWriter
}

func (s KafkaSink) Emit(ctx context.Context, evt contracts.Event) error {
	return kafka.PublishJSON(ctx, s.Writer, evt.RunID, evt)
}

func (s KafkaSink) Close() error { return s.Writer.Close() }

type inserter interface {
	Insert(ctx context.Context, eventID, topic, key string, payload any) error
}

// OutboxSink stores events in Postgres for a later relay to Kafka.
type OutboxSink struct {
	Store  inserter
	Topic  string
	closer func()
}

func NewOutboxSink(store inserter, topic string, closer func()) *OutboxSink {
	return &OutboxSink{Store: store, Topic: topic, closer: closer}
}

func (s *OutboxSink) Emit(ctx context.Context, evt contracts.Event) error {
	return s.Store.Insert(ctx, evt.EventID, s.Topic, evt.RunID, evt)
}

func (s *OutboxSink) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

// Multi fans an event out to every sink and joins the failures.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, evt contracts.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Options struct {
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
}

// Open picks sinks from the options. Events are always logged; with a
// database they go to the outbox, otherwise straight to Kafka when brokers
// are configured. An unreachable database is logged and skipped.
func Open(ctx context.Context, opts Options) (Sink, error) {
	sinks := Multi{LogSink{}}
	if opts.DatabaseURL != "" {
		sink, err := openOutbox(ctx, opts)
		if err == nil {
			return append(sinks, sink), nil
		}
		logging.Error(logging.Fields{Service: "shopctl", Message: "journal database unavailable, outbox disabled"}, err)
	}
	if client := kafka.NewClient(opts.KafkaBrokers...); client.Enabled() {
		sinks = append(sinks, KafkaSink{Writer: client.NewWriter(opts.KafkaTopic)})
	}
	return sinks, nil
}

func openOutbox(ctx context.Context, opts Options) (Sink, error) {
	pool, err := outbox.Open(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store := outbox.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewOutboxSink(store, opts.KafkaTopic, pool.Close), nil
}
