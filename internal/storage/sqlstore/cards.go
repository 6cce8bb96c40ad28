package sqlstore

import (
	"context"
	"fmt"
	"time"

	"garment-flow/internal/storage"
)

type cardRow struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	LineID    string    `db:"line_id"`
	OrderID   string    `db:"order_id"`
	ColorID   string    `db:"color_id"`
	Quantity  int       `db:"quantity"`
	Produced  int       `db:"produced"`
	Status    string    `db:"status"`
}

func (r cardRow) card() storage.Card {
	return storage.Card{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Context:   storage.ContextKey{LineID: r.LineID, OrderID: r.OrderID, ColorID: r.ColorID},
		Quantity:  r.Quantity,
		Produced:  r.Produced,
		Status:    storage.CardStatus(r.Status),
	}
}

func (s *Storage) ListCards(ctx context.Context, key storage.ContextKey) ([]storage.Card, error) {
	const op = "storage.sqlstore.ListCards"

	var rows []cardRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, created_at, line_id, order_id, color_id, quantity, produced, status
		FROM cards
		WHERE line_id = ? AND order_id = ? AND color_id = ?
		ORDER BY created_at, id`, key.LineID, key.OrderID, key.ColorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, key, err)
	}

	cards := make([]storage.Card, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.card())
	}

	return cards, nil
}

// LoadCard inserts a card on behalf of the upstream loading process.
func (s *Storage) LoadCard(ctx context.Context, card storage.Card) error {
	const op = "storage.sqlstore.LoadCard"

	card.Normalize()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (id, created_at, line_id, order_id, color_id, quantity, produced, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.CreatedAt.UTC(), card.Context.LineID, card.Context.OrderID, card.Context.ColorID,
		card.Quantity, card.Produced, string(card.Status))
	if err != nil {
		return fmt.Errorf("%s: card %s: %w", op, card.ID, duplicate(err))
	}

	return nil
}

func (t *txStore) SaveCards(ctx context.Context, cards []storage.Card) error {
	const op = "storage.sqlstore.SaveCards"

	if len(cards) == 0 {
		return nil
	}

	stmt, err := t.tx.PreparexContext(ctx, `UPDATE cards SET produced = ?, status = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("%s: prepare statement: %w", op, err)
	}
	defer stmt.Close()

	for _, c := range cards {
		res, err := stmt.ExecContext(ctx, c.Produced, string(c.Status), c.ID)
		if err != nil {
			return fmt.Errorf("%s: card %s: %w", op, c.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%s: unknown card %s", op, c.ID)
		}
	}

	return nil
}
