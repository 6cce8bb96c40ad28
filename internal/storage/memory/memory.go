// Package memory keeps routes, cards, records and wages in process memory.
// It backs the "memory" storage driver and the engine tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"garment-flow/internal/storage"
)

type Storage struct {
	mu      sync.RWMutex
	routes  map[string]storage.Route
	cards   map[string]storage.Card
	records map[string]storage.ProductionRecord
	wages   map[string]decimal.Decimal

	// failSaveCards makes the next SaveCards inside a transaction fail.
	failSaveCards error
}

func New() *Storage {
	return &Storage{
		routes:  make(map[string]storage.Route),
		cards:   make(map[string]storage.Card),
		records: make(map[string]storage.ProductionRecord),
		wages:   make(map[string]decimal.Decimal),
	}
}

func (s *Storage) SaveRoute(_ context.Context, route storage.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	route.Steps = append([]storage.Step(nil), route.Steps...)
	s.routes[route.ID] = route
	return nil
}

// LoadCard registers a card as the upstream loading process would.
func (s *Storage) LoadCard(_ context.Context, card storage.Card) error {
	const op = "storage.memory.LoadCard"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[card.ID]; ok {
		return fmt.Errorf("%s: card %s: %w", op, card.ID, storage.ErrDuplicate)
	}
	card.Normalize()
	s.cards[card.ID] = card
	return nil
}

func (s *Storage) SetHourlyRate(_ context.Context, operatorID string, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wages[operatorID] = rate
	return nil
}

func (s *Storage) GetRoute(_ context.Context, id string) (*storage.Route, error) {
	const op = "storage.memory.GetRoute"

	s.mu.RLock()
	defer s.mu.RUnlock()

	route, ok := s.routes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", op, id, storage.ErrRouteNotFound)
	}
	route.Steps = append([]storage.Step(nil), route.Steps...)
	return &route, nil
}

func (s *Storage) ListCards(_ context.Context, key storage.ContextKey) ([]storage.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cards []storage.Card
	for _, c := range s.cards {
		if c.Context == key {
			cards = append(cards, c)
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].CreatedAt.Before(cards[j].CreatedAt)
		}
		return cards[i].ID < cards[j].ID
	})
	return cards, nil
}

func (s *Storage) ListRecords(_ context.Context, key storage.ContextKey) ([]storage.ProductionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []storage.ProductionRecord
	for _, r := range s.records {
		if r.Context == key {
			records = append(records, r)
		}
	}
	sortRecords(records)
	return records, nil
}

func (s *Storage) ListRecordsFiltered(_ context.Context, filter storage.RecordFilter) ([]storage.ProductionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []storage.ProductionRecord
	for _, r := range s.records {
		if filter.Match(r) {
			records = append(records, r)
		}
	}
	sortRecords(records)
	return records, nil
}

func (s *Storage) GetRecord(_ context.Context, id string) (*storage.ProductionRecord, error) {
	const op = "storage.memory.GetRecord"

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", op, id, storage.ErrRecordNotFound)
	}
	return &r, nil
}

// HourlyRate returns storage.ErrWageNotFound for an operator without a wage.
func (s *Storage) HourlyRate(_ context.Context, operatorID string) (decimal.Decimal, error) {
	const op = "storage.memory.HourlyRate"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rate, ok := s.wages[operatorID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %s: %w", op, operatorID, storage.ErrWageNotFound)
	}
	return rate, nil
}

// InTx applies fn atomically: on error every change fn made is discarded.
func (s *Storage) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards := maps.Clone(s.cards)
	records := maps.Clone(s.records)

	if err := fn(&tx{s: s}); err != nil {
		s.cards = cards
		s.records = records
		return err
	}
	return nil
}

// FailNextCardSave makes the next transactional card save return err.
func (s *Storage) FailNextCardSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failSaveCards = err
}

type tx struct {
	s *Storage
}

func (t *tx) SaveRecords(_ context.Context, records []storage.ProductionRecord) error {
	const op = "storage.memory.SaveRecords"

	for _, r := range records {
		if _, ok := t.s.records[r.ID]; ok {
			return fmt.Errorf("%s: record %s: %w", op, r.ID, storage.ErrDuplicate)
		}
		t.s.records[r.ID] = r
	}
	return nil
}

func (t *tx) UpdateRecord(_ context.Context, record storage.ProductionRecord) error {
	const op = "storage.memory.UpdateRecord"

	if _, ok := t.s.records[record.ID]; !ok {
		return fmt.Errorf("%s: %s: %w", op, record.ID, storage.ErrRecordNotFound)
	}
	t.s.records[record.ID] = record
	return nil
}

func (t *tx) DeleteRecord(_ context.Context, id string) error {
	const op = "storage.memory.DeleteRecord"

	if _, ok := t.s.records[id]; !ok {
		return fmt.Errorf("%s: %s: %w", op, id, storage.ErrRecordNotFound)
	}
	delete(t.s.records, id)
	return nil
}

func (t *tx) SaveCards(_ context.Context, cards []storage.Card) error {
	const op = "storage.memory.SaveCards"

	if err := t.s.failSaveCards; err != nil {
		t.s.failSaveCards = nil
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, c := range cards {
		if _, ok := t.s.cards[c.ID]; !ok {
			return fmt.Errorf("%s: unknown card %s", op, c.ID)
		}
		t.s.cards[c.ID] = c
	}
	return nil
}

func sortRecords(records []storage.ProductionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
