package efficiency

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"garment-flow/internal/storage"
)

type ReportStorage interface {
	ListRecordsFiltered(ctx context.Context, filter storage.RecordFilter) ([]storage.ProductionRecord, error)
	GetRoute(ctx context.Context, id string) (*storage.Route, error)
	HourlyRate(ctx context.Context, operatorID string) (decimal.Decimal, error)
}

type Service struct {
	storage ReportStorage
}

func NewService(storage ReportStorage) *Service {
	return &Service{storage: storage}
}

// GetEfficiencyReport aggregates the records matching filter. Routes and
// wages are loaded concurrently; an operator without a wage costs nothing.
func (s *Service) GetEfficiencyReport(ctx context.Context, filter storage.RecordFilter) (Report, error) {
	const op = "service.efficiency.GetEfficiencyReport"

	records, err := s.storage.ListRecordsFiltered(ctx, filter)
	if err != nil {
		return Report{}, fmt.Errorf("%s: records: %w", op, err)
	}

	routeIDs := make(map[string]bool)
	operatorIDs := make(map[string]bool)
	for _, r := range records {
		routeIDs[r.RouteID] = true
		operatorIDs[r.OperatorID] = true
	}

	var (
		mu     sync.Mutex
		routes = make(map[string]*storage.Route, len(routeIDs))
		rates  = make(map[string]decimal.Decimal, len(operatorIDs))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for id := range routeIDs {
		id := id
		g.Go(func() error {
			route, err := s.storage.GetRoute(gCtx, id)
			if err != nil {
				return fmt.Errorf("route %s: %w", id, err)
			}
			mu.Lock()
			routes[id] = route
			mu.Unlock()
			return nil
		})
	}

	for id := range operatorIDs {
		id := id
		g.Go(func() error {
			rate, err := s.storage.HourlyRate(gCtx, id)
			if err != nil {
				if errors.Is(err, storage.ErrWageNotFound) {
					return nil
				}
				return fmt.Errorf("wage %s: %w", id, err)
			}
			mu.Lock()
			rates[id] = rate
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("%s: %w", op, err)
	}

	report, err := Aggregate(records, routes, rates)
	if err != nil {
		return Report{}, fmt.Errorf("%s: %w", op, err)
	}

	return report, nil
}
