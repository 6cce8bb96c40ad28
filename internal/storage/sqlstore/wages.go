package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"garment-flow/internal/storage"
)

func (s *Storage) HourlyRate(ctx context.Context, operatorID string) (decimal.Decimal, error) {
	const op = "storage.sqlstore.HourlyRate"

	var rate decimal.Decimal
	err := s.db.GetContext(ctx, &rate, `SELECT hourly_rate FROM operator_wages WHERE operator_id = ?`, operatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%s: %s: %w", op, operatorID, storage.ErrWageNotFound)
		}
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return rate, nil
}

func (s *Storage) SetHourlyRate(ctx context.Context, operatorID string, rate decimal.Decimal) error {
	const op = "storage.sqlstore.SetHourlyRate"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM operator_wages WHERE operator_id = ?`, operatorID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO operator_wages (operator_id, hourly_rate) VALUES (?, ?)`, operatorID, rate.StringFixed(2)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return tx.Commit()
}
