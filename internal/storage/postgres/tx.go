package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	pgUniqueViolation   = "23505"
	pgNumericOutOfRange = "22003"
)

// txBeginner: *sql.DB или *sql.Conn.
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// withTx выполняет fn в транзакции: коммит при успехе, откат при любой ошибке.
func withTx(ctx context.Context, db txBeginner, fn func(tx *sql.Tx) error) (txErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				txErr = errors.Join(txErr, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

func isNumericOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgNumericOutOfRange
	}
	return false
}

// mapWriteErr переводит нарушение уникальности в доменный конфликт,
// а переполнение числовой колонки в ошибку запроса.
func mapWriteErr(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateKey)
	}
	if isNumericOutOfRange(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrAmountTooLarge)
	}
	return fmt.Errorf("%s: %w", op, err)
}
