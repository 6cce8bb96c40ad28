package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"garment-flow/internal/storage"
)

const recordColumns = `id, created_at, line_id, order_id, color_id, route_id, step_s_no, operation_id,
	operator_id, quantity, hour_bucket, downtime_minutes, downtime_reason`

type recordRow struct {
	ID              string    `db:"id"`
	CreatedAt       time.Time `db:"created_at"`
	LineID          string    `db:"line_id"`
	OrderID         string    `db:"order_id"`
	ColorID         string    `db:"color_id"`
	RouteID         string    `db:"route_id"`
	StepSNo         int       `db:"step_s_no"`
	OperationID     string    `db:"operation_id"`
	OperatorID      string    `db:"operator_id"`
	Quantity        int       `db:"quantity"`
	HourBucket      int       `db:"hour_bucket"`
	DowntimeMinutes int       `db:"downtime_minutes"`
	DowntimeReason  string    `db:"downtime_reason"`
}

func (r recordRow) record() storage.ProductionRecord {
	return storage.ProductionRecord{
		ID:              r.ID,
		CreatedAt:       r.CreatedAt,
		Context:         storage.ContextKey{LineID: r.LineID, OrderID: r.OrderID, ColorID: r.ColorID},
		RouteID:         r.RouteID,
		StepSNo:         r.StepSNo,
		OperationID:     r.OperationID,
		OperatorID:      r.OperatorID,
		Quantity:        r.Quantity,
		HourBucket:      r.HourBucket,
		DowntimeMinutes: r.DowntimeMinutes,
		DowntimeReason:  r.DowntimeReason,
	}
}

func (s *Storage) GetRecord(ctx context.Context, id string) (*storage.ProductionRecord, error) {
	const op = "storage.sqlstore.GetRecord"

	var row recordRow
	err := s.db.GetContext(ctx, &row, `SELECT `+recordColumns+` FROM production_records WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %s: %w", op, id, storage.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec := row.record()
	return &rec, nil
}

func (s *Storage) ListRecords(ctx context.Context, key storage.ContextKey) ([]storage.ProductionRecord, error) {
	return s.ListRecordsFiltered(ctx, storage.RecordFilter{
		LineID:  key.LineID,
		OrderID: key.OrderID,
		ColorID: key.ColorID,
	})
}

func (s *Storage) ListRecordsFiltered(ctx context.Context, filter storage.RecordFilter) ([]storage.ProductionRecord, error) {
	const op = "storage.sqlstore.ListRecordsFiltered"

	var (
		where []string
		args  []interface{}
	)
	if !filter.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, filter.To.UTC())
	}
	for _, f := range []struct{ column, value string }{
		{"line_id", filter.LineID},
		{"order_id", filter.OrderID},
		{"color_id", filter.ColorID},
		{"operator_id", filter.OperatorID},
	} {
		if f.value != "" {
			where = append(where, f.column+" = ?")
			args = append(args, f.value)
		}
	}

	query := `SELECT ` + recordColumns + ` FROM production_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	records := make([]storage.ProductionRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}

	return records, nil
}

func (t *txStore) SaveRecords(ctx context.Context, records []storage.ProductionRecord) error {
	const op = "storage.sqlstore.SaveRecords"

	stmt, err := t.tx.PreparexContext(ctx, `
		INSERT INTO production_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%s: prepare statement: %w", op, err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.CreatedAt.UTC(), r.Context.LineID, r.Context.OrderID, r.Context.ColorID,
			r.RouteID, r.StepSNo, r.OperationID, r.OperatorID, r.Quantity,
			r.HourBucket, r.DowntimeMinutes, r.DowntimeReason)
		if err != nil {
			return fmt.Errorf("%s: record %s: %w", op, r.ID, duplicate(err))
		}
	}

	return nil
}

func (t *txStore) UpdateRecord(ctx context.Context, r storage.ProductionRecord) error {
	const op = "storage.sqlstore.UpdateRecord"

	res, err := t.tx.ExecContext(ctx, `
		UPDATE production_records
		SET quantity = ?, operator_id = ?, hour_bucket = ?, downtime_minutes = ?, downtime_reason = ?
		WHERE id = ?`,
		r.Quantity, r.OperatorID, r.HourBucket, r.DowntimeMinutes, r.DowntimeReason, r.ID)
	if err != nil {
		return fmt.Errorf("%s: record %s: %w", op, r.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %s: %w", op, r.ID, storage.ErrRecordNotFound)
	}

	return nil
}

func (t *txStore) DeleteRecord(ctx context.Context, id string) error {
	const op = "storage.sqlstore.DeleteRecord"

	res, err := t.tx.ExecContext(ctx, `DELETE FROM production_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: record %s: %w", op, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %s: %w", op, id, storage.ErrRecordNotFound)
	}

	return nil
}
