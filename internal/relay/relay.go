// Package relay forwards committed ledger events to Kafka.
//
// Events are written to the ledger's outbox in the same transaction as the
// mutation they describe. The relay polls the outbox past its saved cursor,
// publishes each batch and only then advances the cursor, so delivery is
// at-least-once and ordered per subject.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"supplyledger/internal/ledger"
	"supplyledger/internal/platform/kafka"
)

const (
	DefaultCursor    = "kafka"
	DefaultBatchSize = 100
	DefaultInterval  = time.Second
)

// Publisher delivers a batch of messages, returning only once all of them
// were acknowledged.
type Publisher interface {
	Publish(ctx context.Context, msgs []kafka.Message) error
}

type Relay struct {
	store     ledger.Store
	publisher Publisher
	topic     string
	cursor    string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithCursor names the saved position, allowing several relays to run
// against the same outbox.
func WithCursor(name string) Option {
	return func(r *Relay) {
		if name != "" {
			r.cursor = name
		}
	}
}

func New(store ledger.Store, publisher Publisher, topic string, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		topic:     topic,
		cursor:    DefaultCursor,
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox until ctx is cancelled. Failed batches are retried
// on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "event relay started",
		"topic", r.topic,
		"cursor", r.cursor,
		"interval", r.interval.String(),
	)
	for {
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				r.logger.ErrorContext(ctx, "event relay batch failed", "error", err)
				if r.metrics != nil {
					r.metrics.IncrementFailures()
				}
				break
			}
			if n < r.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "event relay stopped", "cursor", r.cursor)
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes at most one batch and returns how many events it
// forwarded.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var (
		after  uint64
		events []ledger.Event
	)
	err := r.store.View(ctx, func(rd ledger.Reader) error {
		var err error
		after, err = rd.Cursor(ctx, r.cursor)
		if err != nil {
			return err
		}
		events, err = rd.EventsAfter(ctx, after, r.batchSize)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("read outbox after %d: %w", after, err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msg, err := r.encode(e)
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, msg)
	}
	if err := r.publisher.Publish(ctx, msgs); err != nil {
		return 0, fmt.Errorf("publish events %d..%d: %w", events[0].Seq, events[len(events)-1].Seq, err)
	}

	last := events[len(events)-1].Seq
	if err := r.store.RunInTx(ctx, func(tx ledger.Tx) error {
		return tx.SaveCursor(ctx, r.cursor, last)
	}); err != nil {
		return 0, fmt.Errorf("save cursor %s at %d: %w", r.cursor, last, err)
	}

	if r.metrics != nil {
		r.metrics.RecordRelayed(len(events), last)
	}
	r.logger.DebugContext(ctx, "relayed events",
		"count", len(events),
		"from_seq", events[0].Seq,
		"to_seq", last,
	)
	return len(events), nil
}

func (r *Relay) encode(e ledger.Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event %d: %w", e.Seq, err)
	}
	return kafka.Message{
		Topic: r.topic,
		Key:   []byte(e.Subject),
		Value: value,
		Headers: map[string]string{
			"kind": string(e.Kind),
			"seq":  strconv.FormatUint(e.Seq, 10),
		},
	}, nil
}
