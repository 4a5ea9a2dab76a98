package db

import (
	"context"
	"database/sql"
	"fmt"
)

// UnitOfWork runs a function inside one transaction. The callback receives a
// DBTX backed by the transaction; build tx-scoped repositories from it and do
// not touch the outer pool inside the callback.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

// TxUnitOfWork implements UnitOfWork over database/sql for either dialect.
type TxUnitOfWork struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewUnitOfWork picks transaction options for the dialect. Postgres runs at
// repeatable read so a request decided concurrently by two actors fails one
// of them instead of applying its effects twice. SQLite serializes writers
// and keeps the driver default.
func NewUnitOfWork(database *sql.DB, dialect Dialect) *TxUnitOfWork {
	u := &TxUnitOfWork{db: database}
	if dialect == Postgres {
		u.opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	}
	return u
}

func (u *TxUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := u.db.BeginTx(ctx, u.opts)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		// Reached on panic only; roll back and let it propagate.
		_ = tx.Rollback()
	}()

	if fnErr := fn(ctx, tx); fnErr != nil {
		done = true
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back: %v (original error: %w)", rbErr, fnErr)
		}
		return fnErr
	}

	done = true
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
