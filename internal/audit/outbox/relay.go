// Package outbox relays audit entries committed to the outbox table to Kafka.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"trustscore/internal/platform/kafka"
	"trustscore/pkg/platform/tx"
)

const (
	DefaultBatchSize = 100
	DefaultInterval  = time.Second
)

// Source hands out unpublished rows and records their delivery.
type Source interface {
	Claim(ctx context.Context, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Publisher delivers a batch, returning only after every message was accepted.
type Publisher interface {
	Publish(ctx context.Context, msgs []kafka.Message) error
}

// Metrics for the relay loop.
type Metrics struct {
	Published prometheus.Counter
	Failures  prometheus.Counter
	Lag       prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "trustscore_outbox_published_total",
			Help: "Outbox rows delivered to Kafka",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "trustscore_outbox_failures_total",
			Help: "Relay passes that failed and were retried",
		}),
		Lag: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustscore_outbox_lag_seconds",
			Help:    "Time between an entry being committed and being published",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

// Relay moves outbox rows to a topic. Messages are keyed by entity so one
// entity's entries stay ordered within a partition. Delivery is at least once:
// a crash between publish and commit republishes the batch, so consumers
// dedupe on the outbox_id header.
type Relay struct {
	runner    tx.Runner
	source    Source
	publisher Publisher
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

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

func NewRelay(runner tx.Runner, source Source, publisher Publisher, topic string, opts ...Option) *Relay {
	r := &Relay{
		runner:    runner,
		source:    source,
		publisher: publisher,
		topic:     topic,
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled. A full batch is followed immediately by
// another pass; otherwise the relay waits for the next tick.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "outbox relay started",
		"topic", r.topic,
		"batch_size", r.batchSize,
		"interval", r.interval.String(),
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.RelayOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if r.metrics != nil {
				r.metrics.Failures.Inc()
			}
			r.logger.ErrorContext(ctx, "outbox relay pass failed",
				"topic", r.topic,
				"error", err,
			)
		}
		if err == nil && n == r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce claims one batch, publishes it, and marks it published in the
// same transaction. It returns the number of rows delivered.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var delivered []Record
	err := r.runner.RunInTx(ctx, func(txCtx context.Context) error {
		records, err := r.source.Claim(txCtx, r.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}

		msgs := make([]kafka.Message, len(records))
		ids := make([]uuid.UUID, len(records))
		for i, rec := range records {
			msgs[i] = kafka.Message{
				Topic: r.topic,
				Key:   []byte(rec.AggregateType + ":" + rec.AggregateID),
				Value: rec.Payload,
				Headers: map[string]string{
					"outbox_id":  rec.ID.String(),
					"event_type": rec.EventType,
				},
			}
			ids[i] = rec.ID
		}

		if err := r.publisher.Publish(txCtx, msgs); err != nil {
			return err
		}
		if err := r.source.MarkPublished(txCtx, ids, time.Now()); err != nil {
			return err
		}
		delivered = records
		return nil
	})
	if err != nil {
		return 0, err
	}

	if r.metrics != nil {
		r.metrics.Published.Add(float64(len(delivered)))
		now := time.Now()
		for _, rec := range delivered {
			r.metrics.Lag.Observe(now.Sub(rec.CreatedAt).Seconds())
		}
	}
	if len(delivered) > 0 {
		r.logger.DebugContext(ctx, "outbox batch published",
			"topic", r.topic,
			"count", len(delivered),
		)
	}
	return len(delivered), nil
}
