package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
)

type txKey struct{}

// TxManager runs functions inside a single database transaction. Repositories
// called with the context passed to fn join that transaction.
type TxManager struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewTxManager creates a new transaction manager
func NewTxManager(db *sqlx.DB, logger *logrus.Logger) *TxManager {
	return &TxManager{db: db, logger: logger}
}

// RunInTx commits when fn returns nil and rolls back on error or panic.
// The error returned by fn is returned unchanged. Nested calls reuse the
// outer transaction.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			m.rollback(tx)
			panic(p)
		}
		if err != nil {
			m.rollback(tx)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (m *TxManager) rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		m.logger.WithError(err).Error("Failed to roll back transaction")
	}
}

// conn returns the transaction bound to ctx, or db when there is none
func conn(ctx context.Context, db *sqlx.DB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// queryError maps sql.ErrNoRows to a typed not-found error and wraps the rest
func queryError(err error, op, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("%s not found", entity)
	}
	return fmt.Errorf("failed to %s %s: %w", op, entity, err)
}

// isUniqueViolation reports whether err is a unique constraint violation
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// expectRows turns a zero-row update into a not-found error
func expectRows(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("%s not found", entity)
	}
	return nil
}
