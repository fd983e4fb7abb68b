package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"caseflow/pkg/platform/uow"
)

// Metrics counts relay throughput and failures.
type Metrics struct {
	Published prometheus.Counter
	Failures  prometheus.Counter
}

// NewMetrics registers relay metrics with the default registry. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_outbox_published_total",
			Help: "Outbox messages published to Kafka",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_outbox_relay_failures_total",
			Help: "Relay polls that failed and were rolled back",
		}),
	}
}

// Relay polls the outbox and publishes pending rows.
type Relay struct {
	store     Store
	publisher Publisher
	tx        uow.Runner
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batchSize = n }
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

func NewRelay(store Store, publisher Publisher, tx uow.Runner, opts ...Option) (*Relay, error) {
	if store == nil {
		return nil, errors.New("outbox store is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	r := &Relay{
		store:     store,
		publisher: publisher,
		tx:        tx,
		interval:  time.Second,
		batchSize: 100,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run polls until ctx is cancelled. A full batch triggers an immediate re-poll.
func (r *Relay) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		n, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil && r.logger != nil {
			r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
		}
		next := r.interval
		if err == nil && n == r.batchSize {
			next = 0
		}
		timer.Reset(next)
	}
}

// RelayOnce publishes at most one batch and returns how many rows it marked.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		msgs, err := r.store.ClaimUnpublished(txCtx, r.batchSize)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		if err := r.publisher.Publish(txCtx, msgs); err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(msgs))
		for i, m := range msgs {
			ids[i] = m.ID
		}
		if err := r.store.MarkPublished(txCtx, ids, r.now().UTC()); err != nil {
			return err
		}
		published = len(msgs)
		return nil
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.Failures.Inc()
		}
		return 0, err
	}
	if r.metrics != nil && published > 0 {
		r.metrics.Published.Add(float64(published))
	}
	if published > 0 && r.logger != nil {
		r.logger.DebugContext(ctx, "outbox batch relayed", "count", published)
	}
	return published, nil
}
