package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"garment-flow/internal/storage"
)

type stepRow struct {
	SNo         int     `db:"s_no"`
	OperationID string  `db:"operation_id"`
	PickupSec   float64 `db:"pickup_sec"`
	RunSec      float64 `db:"run_sec"`
	TrimSec     float64 `db:"trim_sec"`
}

func (s *Storage) GetRoute(ctx context.Context, id string) (*storage.Route, error) {
	const op = "storage.sqlstore.GetRoute"

	route := &storage.Route{ID: id}
	err := s.db.GetContext(ctx, &route.StyleID, `SELECT style_id FROM routes WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %s: %w", op, id, storage.ErrRouteNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rows []stepRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT s_no, operation_id, pickup_sec, run_sec, trim_sec
		FROM route_steps
		WHERE route_id = ?
		ORDER BY s_no`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: steps of %s: %w", op, id, err)
	}

	route.Steps = make([]storage.Step, 0, len(rows))
	for _, r := range rows {
		route.Steps = append(route.Steps, storage.Step(r))
	}

	return route, nil
}

// SaveRoute replaces a route and all of its steps.
func (s *Storage) SaveRoute(ctx context.Context, route storage.Route) error {
	const op = "storage.sqlstore.SaveRoute"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM route_steps WHERE route_id = ?`, route.ID); err != nil {
		return fmt.Errorf("%s: delete steps: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM routes WHERE id = ?`, route.ID); err != nil {
		return fmt.Errorf("%s: delete route: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO routes (id, style_id) VALUES (?, ?)`, route.ID, route.StyleID); err != nil {
		return fmt.Errorf("%s: insert route: %w", op, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO route_steps (route_id, s_no, operation_id, pickup_sec, run_sec, trim_sec)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%s: prepare statement: %w", op, err)
	}
	defer stmt.Close()

	for _, st := range route.Steps {
		if _, err := stmt.ExecContext(ctx, route.ID, st.SNo, st.OperationID, st.PickupSec, st.RunSec, st.TrimSec); err != nil {
			return fmt.Errorf("%s: step %d: %w", op, st.SNo, duplicate(err))
		}
	}

	return tx.Commit()
}
