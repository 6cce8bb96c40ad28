package storage

import (
	"context"
	"errors"
)

var (
	ErrRecordNotFound = errors.New("production record not found")
	ErrRouteNotFound  = errors.New("route not found")
	ErrDuplicate      = errors.New("duplicate id")
	ErrWageNotFound   = errors.New("hourly rate not found")
)

// Tx is the write side of a store inside one transaction. Either every
// call made through a Tx is applied or none is.
type Tx interface {
	SaveRecords(ctx context.Context, records []ProductionRecord) error
	UpdateRecord(ctx context.Context, record ProductionRecord) error
	DeleteRecord(ctx context.Context, id string) error
	SaveCards(ctx context.Context, cards []Card) error
}
