package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"garment-flow/internal/lock"
	"garment-flow/internal/storage"
)

type Store interface {
	GetRoute(ctx context.Context, id string) (*storage.Route, error)
	ListCards(ctx context.Context, key storage.ContextKey) ([]storage.Card, error)
	ListRecords(ctx context.Context, key storage.ContextKey) ([]storage.ProductionRecord, error)
	GetRecord(ctx context.Context, id string) (*storage.ProductionRecord, error)
	InTx(ctx context.Context, fn func(tx storage.Tx) error) error
}

// Locker serializes card mutation per context key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type CommitOptions struct {
	// AllowOverProduction commits final-step output that does not fit into
	// open cards instead of rejecting the submission.
	AllowOverProduction bool `json:"allow_over_production"`
}

type CommitResult struct {
	Records     []storage.ProductionRecord `json:"records"`
	Cards       []storage.Card             `json:"cards"`
	Unallocated int                        `json:"unallocated"`
}

type RecordUpdate struct {
	Quantity   int    `json:"quantity"`
	OperatorID string `json:"operator_id"`
}

type Engine struct {
	log   *slog.Logger
	store Store
	locks Locker
	now   func() time.Time
}

func NewEngine(log *slog.Logger, store Store, locks Locker) *Engine {
	return &Engine{
		log:   log,
		store: store,
		locks: locks,
		now:   time.Now,
	}
}

// ValidateAndPreviewWip computes remaining WIP for a route with the session
// queue applied. It never writes. When a row is invalid the preview is
// still returned together with a *ValidationError.
func (e *Engine) ValidateAndPreviewWip(ctx context.Context, key storage.ContextKey, routeID string, session []SessionRow) (WipPreview, error) {
	const op = "service.flow.ValidateAndPreviewWip"

	if !key.Valid() {
		return WipPreview{}, fmt.Errorf("%s: %w", op, invalidContext())
	}

	route, err := e.store.GetRoute(ctx, routeID)
	if err != nil {
		return WipPreview{}, fmt.Errorf("%s: %w", op, notFound(err))
	}

	steps, err := ResolveRoute(route)
	if err != nil {
		return WipPreview{}, fmt.Errorf("%s: %w", op, err)
	}

	cards, history, err := e.loadContext(ctx, key)
	if err != nil {
		return WipPreview{}, fmt.Errorf("%s: %w", op, err)
	}

	preview := RemainingWip(steps, loadedQuantity(cards), onRoute(history, routeID), session)
	if err := validateSession(steps, session, preview); err != nil {
		return preview, fmt.Errorf("%s: %w", op, err)
	}

	return preview, nil
}

// CommitRecords validates and stores a batch of records for one context.
// Final-step quantities of the batch are allocated to cards in one pass.
// Records whose id is already stored are returned as they are and have no
// further effect.
func (e *Engine) CommitRecords(ctx context.Context, key storage.ContextKey, records []storage.ProductionRecord, opts CommitOptions) (CommitResult, error) {
	const op = "service.flow.CommitRecords"

	if !key.Valid() {
		return CommitResult{}, fmt.Errorf("%s: %w", op, invalidContext())
	}
	if len(records) == 0 {
		return CommitResult{}, fmt.Errorf("%s: %w", op, &ValidationError{Field: "records", Reason: "no records submitted"})
	}

	batch, err := e.prepare(key, records)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	unlock, err := e.lock(ctx, key)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	cards, history, err := e.loadContext(ctx, key)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	stored := make(map[string]storage.ProductionRecord, len(history))
	for _, r := range history {
		stored[r.ID] = r
	}

	var fresh []storage.ProductionRecord
	result := CommitResult{Records: make([]storage.ProductionRecord, 0, len(batch))}
	for _, r := range batch {
		if prev, ok := stored[r.ID]; ok {
			result.Records = append(result.Records, prev)
			continue
		}
		fresh = append(fresh, r)
		result.Records = append(result.Records, r)
	}

	if len(fresh) == 0 {
		result.Cards = mergeCards(cards, nil)
		return result, nil
	}

	routes, err := e.loadRoutes(ctx, fresh)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := checkBatch(fresh, routes, cards, history); err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	finalQty := 0
	for _, r := range fresh {
		if isFinal(routes[r.RouteID], r.StepSNo) {
			finalQty += r.Quantity
		}
	}

	touched, remainder := Allocate(cards, finalQty)
	if remainder > 0 {
		shortfall := &ShortfallError{Requested: finalQty, Allocated: finalQty - remainder, Remainder: remainder}
		if !opts.AllowOverProduction {
			return CommitResult{}, fmt.Errorf("%s: %w", op, shortfall)
		}
		e.log.Warn("final-step output exceeds open card capacity",
			slog.String("op", op),
			slog.String("context", key.String()),
			slog.Int("remainder", remainder),
		)
	}

	err = e.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.SaveRecords(ctx, fresh); err != nil {
			return err
		}
		return tx.SaveCards(ctx, touched)
	})
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("production committed",
		slog.String("context", key.String()),
		slog.Int("records", len(fresh)),
		slog.Int("final_qty", finalQty),
		slog.Int("cards_touched", len(touched)),
	)

	result.Cards = mergeCards(cards, touched)
	result.Unallocated = remainder
	return result, nil
}

// UpdateRecord changes the quantity and operator of a stored record. For a
// final-step record the difference is allocated to or reverted from cards.
func (e *Engine) UpdateRecord(ctx context.Context, id string, upd RecordUpdate, opts CommitOptions) (CommitResult, error) {
	const op = "service.flow.UpdateRecord"

	rec, unlock, err := e.lockRecord(ctx, id)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	route, err := e.store.GetRoute(ctx, rec.RouteID)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, notFound(err))
	}
	steps, err := ResolveRoute(route)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	cards, history, err := e.loadContext(ctx, rec.Context)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	others := make([]storage.ProductionRecord, 0, len(history))
	for _, r := range onRoute(history, rec.RouteID) {
		if r.ID != rec.ID {
			others = append(others, r)
		}
	}

	if upd.OperatorID == "" {
		upd.OperatorID = rec.OperatorID
	}
	session := []SessionRow{{StepSNo: rec.StepSNo, OperatorID: upd.OperatorID, Quantity: upd.Quantity}}
	preview := RemainingWip(steps, loadedQuantity(cards), others, session)
	if err := validateSession(steps, session, preview); err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var (
		touched   []storage.Card
		remainder int
	)
	delta := upd.Quantity - rec.Quantity
	if isFinal(route, rec.StepSNo) {
		switch {
		case delta > 0:
			touched, remainder = Allocate(cards, delta)
			if remainder > 0 && !opts.AllowOverProduction {
				return CommitResult{}, fmt.Errorf("%s: %w", op, &ShortfallError{Requested: delta, Allocated: delta - remainder, Remainder: remainder})
			}
		case delta < 0:
			var left int
			touched, left = Revert(cards, -delta)
			e.warnUnreverted(op, *rec, left)
		}
	}

	updated := *rec
	updated.Quantity = upd.Quantity
	updated.OperatorID = upd.OperatorID

	err = e.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.UpdateRecord(ctx, updated); err != nil {
			return err
		}
		return tx.SaveCards(ctx, touched)
	})
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return CommitResult{
		Records:     []storage.ProductionRecord{updated},
		Cards:       mergeCards(cards, touched),
		Unallocated: remainder,
	}, nil
}

// DeleteRecord removes a record. A final-step record is first pulled back
// out of the cards, newest card first.
func (e *Engine) DeleteRecord(ctx context.Context, id string) ([]storage.Card, error) {
	const op = "service.flow.DeleteRecord"

	rec, unlock, err := e.lockRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	route, err := e.store.GetRoute(ctx, rec.RouteID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	if _, err := ResolveRoute(route); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cards, err := e.store.ListCards(ctx, rec.Context)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var touched []storage.Card
	if isFinal(route, rec.StepSNo) && rec.Quantity > 0 {
		if len(cards) == 0 {
			return nil, fmt.Errorf("%s: %w", op, ErrNoCards)
		}
		var left int
		touched, left = Revert(cards, rec.Quantity)
		e.warnUnreverted(op, *rec, left)
	}

	err = e.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.SaveCards(ctx, touched); err != nil {
			return err
		}
		return tx.DeleteRecord(ctx, rec.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}

	e.log.Info("production record deleted",
		slog.String("id", rec.ID),
		slog.String("context", rec.Context.String()),
		slog.Int("cards_touched", len(touched)),
	)

	return mergeCards(cards, touched), nil
}

func (e *Engine) ListCards(ctx context.Context, key storage.ContextKey) ([]storage.Card, error) {
	const op = "service.flow.ListCards"

	if !key.Valid() {
		return nil, fmt.Errorf("%s: %w", op, invalidContext())
	}

	cards, err := e.store.ListCards(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoCards)
	}

	return mergeCards(cards, nil), nil
}

func (e *Engine) lock(ctx context.Context, key storage.ContextKey) (func(), error) {
	unlock, err := e.locks.Lock(ctx, "flow:"+key.String())
	if errors.Is(err, lock.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s: %w", ErrConcurrencyConflict, key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return unlock, nil
}

// lockRecord locks the context of a stored record and returns the record as
// it is once the lock is held. A record removed while waiting is not found.
func (e *Engine) lockRecord(ctx context.Context, id string) (*storage.ProductionRecord, func(), error) {
	rec, err := e.store.GetRecord(ctx, id)
	if err != nil {
		return nil, nil, notFound(err)
	}

	unlock, err := e.lock(ctx, rec.Context)
	if err != nil {
		return nil, nil, err
	}

	rec, err = e.store.GetRecord(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, notFound(err)
	}

	return rec, unlock, nil
}

func (e *Engine) warnUnreverted(op string, rec storage.ProductionRecord, left int) {
	if left <= 0 {
		return
	}
	e.log.Warn("cards hold fewer units than the reverted record",
		slog.String("op", op),
		slog.String("id", rec.ID),
		slog.String("context", rec.Context.String()),
		slog.Int("unreverted", left),
	)
}

// prepare assigns ids and timestamps and pins every record to key.
func (e *Engine) prepare(key storage.ContextKey, records []storage.ProductionRecord) ([]storage.ProductionRecord, error) {
	now := e.now()
	seen := make(map[string]bool, len(records))
	batch := make([]storage.ProductionRecord, len(records))

	for i, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if seen[r.ID] {
			return nil, &ValidationError{Row: i, StepSNo: r.StepSNo, Field: "id", Reason: "duplicate record id in submission"}
		}
		seen[r.ID] = true

		if r.RouteID == "" {
			return nil, &ValidationError{Row: i, StepSNo: r.StepSNo, Field: "route_id", Reason: "route is required"}
		}
		if r.HourBucket < 0 || r.DowntimeMinutes < 0 {
			return nil, &ValidationError{Row: i, StepSNo: r.StepSNo, Field: "hour_bucket", Reason: "hour bucket and downtime must not be negative"}
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.Context = key
		batch[i] = r
	}

	return batch, nil
}

func (e *Engine) loadContext(ctx context.Context, key storage.ContextKey) ([]storage.Card, []storage.ProductionRecord, error) {
	cards, err := e.store.ListCards(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if len(cards) == 0 {
		return nil, nil, ErrNoCards
	}

	history, err := e.store.ListRecords(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	return cards, history, nil
}

// loadRoutes fetches the distinct routes of a batch concurrently.
func (e *Engine) loadRoutes(ctx context.Context, records []storage.ProductionRecord) (map[string]*storage.Route, error) {
	var (
		mu     sync.Mutex
		routes = make(map[string]*storage.Route)
	)

	g, gCtx := errgroup.WithContext(ctx)
	requested := make(map[string]bool)
	for _, r := range records {
		if requested[r.RouteID] {
			continue
		}
		requested[r.RouteID] = true

		id := r.RouteID
		g.Go(func() error {
			route, err := e.store.GetRoute(gCtx, id)
			if err != nil {
				return fmt.Errorf("route %s: %w", id, notFound(err))
			}
			if _, err := ResolveRoute(route); err != nil {
				return err
			}
			mu.Lock()
			routes[id] = route
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return routes, nil
}

// checkBatch runs each route's rows through the WIP calculator in
// submission order and fills in missing operation ids.
func checkBatch(batch []storage.ProductionRecord, routes map[string]*storage.Route, cards []storage.Card, history []storage.ProductionRecord) error {
	loaded := loadedQuantity(cards)

	type indexed struct {
		rows  []SessionRow
		index []int
	}
	byRoute := make(map[string]*indexed)
	order := make([]string, 0)

	for i := range batch {
		r := &batch[i]
		route := routes[r.RouteID]

		step, ok := route.Step(r.StepSNo)
		if !ok {
			return &ValidationError{Row: i, StepSNo: r.StepSNo, Field: "step_s_no", Reason: "step is not on the route", Quantity: r.Quantity}
		}
		if r.OperationID == "" {
			r.OperationID = step.OperationID
		} else if r.OperationID != step.OperationID {
			return &ValidationError{Row: i, StepSNo: r.StepSNo, Field: "operation_id", Reason: "operation does not match the route step", Quantity: r.Quantity}
		}

		group, ok := byRoute[r.RouteID]
		if !ok {
			group = &indexed{}
			byRoute[r.RouteID] = group
			order = append(order, r.RouteID)
		}
		group.rows = append(group.rows, SessionRow{StepSNo: r.StepSNo, OperatorID: r.OperatorID, Quantity: r.Quantity})
		group.index = append(group.index, i)
	}

	for _, routeID := range order {
		group := byRoute[routeID]
		steps, err := ResolveRoute(routes[routeID])
		if err != nil {
			return err
		}

		preview := RemainingWip(steps, loaded, onRoute(history, routeID), group.rows)
		if err := validateSession(steps, group.rows, preview); err != nil {
			if verr, ok := err.(*ValidationError); ok {
				verr.Row = group.index[verr.Row]
			}
			return err
		}
	}

	return nil
}

func loadedQuantity(cards []storage.Card) int {
	total := 0
	for _, c := range cards {
		total += c.Quantity
	}
	return total
}

func onRoute(records []storage.ProductionRecord, routeID string) []storage.ProductionRecord {
	out := make([]storage.ProductionRecord, 0, len(records))
	for _, r := range records {
		if r.RouteID == routeID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func invalidContext() error {
	return &ValidationError{Field: "context", Reason: "line, order and color are required"}
}
