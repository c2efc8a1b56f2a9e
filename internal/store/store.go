// Package store wraps db.Querier with transaction support and groups the
// multi-step write operations that must execute atomically.
//
// Single-query reads (GetMemberByID, GetAssessmentByID, etc.) are called
// directly on db.Querier in handlers.
//
// Dependency rule: store imports db and the pure assessment package only. It
// never imports api, worker, ai, or email.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
)

// Store holds a *sql.DB for starting transactions and a db.Querier for
// executing queries outside of transactions. members.go and assessments.go
// attach methods to this type.
type Store struct {
	// pool is used only to begin transactions.
	pool *sql.DB
	q    db.Querier
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified before calling New.
func New(pool *sql.DB, q db.Querier) *Store {
	return &Store{pool: pool, q: q}
}

// Q exposes the underlying Querier for single-query reads.
//
//	member, err := s.Q().GetMemberByID(ctx, id)
func (s *Store) Q() db.Querier {
	return s.q
}

// txQuerier receives a transactional Querier. Returning a non-nil error
// causes withTx to roll back.
type txQuerier func(ctx context.Context, q db.Querier) error

// withTx begins a serializable transaction, passes a Querier scoped to it to
// fn, and commits on success or rolls back on any error (including panics).
//
// Every multi-step write here reads before it writes (existing payment
// intent, current membership status), so serializable is the default.
func (s *Store) withTx(ctx context.Context, fn txQuerier) error {
	tx, err := s.pool.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txQ := s.q.(*db.Queries).WithTx(tx)

	if err := fn(ctx, txQ); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
