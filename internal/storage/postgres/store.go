// Package postgres implements storage.Store backed by PostgreSQL, following
// the teacher's internal/app/storage/postgres layout: one file per
// aggregate, raw database/sql + lib/pq, JSON columns for free-form maps.
package postgres

import (
	"context"
	"database/sql"

	coreerrors "github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a Store using the provided database handle. The caller owns
// the handle's lifecycle (pooling, migrations).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close is a no-op: the caller owns the *sql.DB passed to New.
func (s *Store) Close() error { return nil }

func wrapQueryErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	return coreerrors.BackendUnavailable(operation, err)
}

func notFoundOrErr(resource, id string, err error) error {
	if err == sql.ErrNoRows {
		return coreerrors.NotFound(resource, id)
	}
	return wrapQueryErr("query "+resource, err)
}

var _ storage.Store = (*Store)(nil)

// txFunc runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (s *Store) txFunc(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapQueryErr("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapQueryErr("commit transaction", err)
	}
	return nil
}
