package storage

import (
	"fmt"
	"time"
)

// ContextKey scopes WIP, cards and reversal to one line, order and color.
type ContextKey struct {
	LineID  string `json:"line_id"`
	OrderID string `json:"order_id"`
	ColorID string `json:"color_id"`
}

func (k ContextKey) Valid() bool {
	return k.LineID != "" && k.OrderID != "" && k.ColorID != ""
}

func (k ContextKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.LineID, k.OrderID, k.ColorID)
}

type CardStatus string

const (
	CardActive CardStatus = "active"
	CardClosed CardStatus = "closed"
)

// Card is a work-lot ticket. Produced never exceeds Quantity and the card
// is closed exactly when it is full.
type Card struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Context   ContextKey `json:"context"`
	Quantity  int        `json:"quantity"`
	Produced  int        `json:"produced"`
	Status    CardStatus `json:"status"`
}

// Capacity is the number of units the card can still take.
func (c Card) Capacity() int {
	if c.Produced >= c.Quantity {
		return 0
	}
	return c.Quantity - c.Produced
}

// Normalize derives Status from Produced.
func (c *Card) Normalize() {
	if c.Produced >= c.Quantity {
		c.Status = CardClosed
		return
	}
	c.Status = CardActive
}
