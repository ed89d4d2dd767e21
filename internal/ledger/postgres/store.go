// Package postgres is the PostgreSQL ledger store.
//
// Each unit of work is one SQL transaction. Writers serialize on row locks:
// transfers are read FOR UPDATE, balances are locked in holder order, and
// ids come from counter rows so they stay gapless across rollbacks.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"supplyledger/internal/ledger"
	dErrors "supplyledger/pkg/domain-errors"
)

const (
	defaultTxTimeout = 5 * time.Second

	pgUniqueViolation = "23505"
)

// Store implements ledger.Store on a pgx connection pool.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

type Option func(*Store)

func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a pool and verifies connectivity. maxConns <= 0 keeps the
// pgxpool default.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx ledger.Tx) error) (err error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return s.beginErr(ctx, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = pgtx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = pgtx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(&tx{view: view{q: pgtx, lock: true}}); err != nil {
		return err
	}
	if err = pgtx.Commit(ctx); err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction timed out")
		}
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// View reads from a single repeatable-read snapshot.
func (s *Store) View(ctx context.Context, fn func(r ledger.Reader) error) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return s.beginErr(ctx, err)
	}
	defer func() { _ = pgtx.Rollback(context.WithoutCancel(ctx)) }()

	return fn(view{q: pgtx})
}

// bound applies the store timeout; an earlier caller deadline still wins.
func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) beginErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fmt.Errorf("begin ledger tx: %w", err)
}

// querier is satisfied by pgx.Tx and *pgxpool.Pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
