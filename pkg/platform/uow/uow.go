// Package uow provides the unit-of-work boundary used by services that must
// commit several store writes (status change plus its timeline entry) together.
//
// Stores never begin transactions themselves. They read the active *sql.Tx from
// context (pkg/platform/tx) or, in memory, rely on the snapshot taken by
// Memory.RunInTx.
package uow

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "caseflow/pkg/domain-errors"
	txcontext "caseflow/pkg/platform/tx"
)

// Runner runs fn inside one transaction. When fn returns an error every write
// made through txCtx is rolled back.
type Runner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

const defaultTxTimeout = 5 * time.Second

// Postgres wraps database/sql transactions.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
	opts    *sql.TxOptions
}

// PostgresOption configures a Postgres runner.
type PostgresOption func(*Postgres)

// WithTimeout bounds transactions started without a caller deadline.
func WithTimeout(d time.Duration) PostgresOption {
	return func(p *Postgres) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithIsolation sets the isolation level for every transaction.
func WithIsolation(level sql.IsolationLevel) PostgresOption {
	return func(p *Postgres) {
		p.opts = &sql.TxOptions{Isolation: level}
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	p := &Postgres{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Nested calls join the outer transaction.
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	tx, err := p.db.BeginTx(ctx, p.opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// Participant is an in-memory store that can capture and restore its state.
type Participant interface {
	Snapshot() any
	Restore(snapshot any)
}

type memoryTxKey struct{}

// Memory serializes units of work behind one lock and restores every
// participant's snapshot when fn fails.
type Memory struct {
	mu           sync.Mutex
	participants []Participant
}

func NewMemory(participants ...Participant) *Memory {
	return &Memory{participants: participants}
}

// Register adds stores after construction.
func (m *Memory) Register(p ...Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = append(m.participants, p...)
}

func (m *Memory) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshots := make([]any, len(m.participants))
	for i, p := range m.participants {
		snapshots[i] = p.Snapshot()
	}
	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		for i, p := range m.participants {
			p.Restore(snapshots[i])
		}
		return err
	}
	return nil
}
