package sqlstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garment-flow/internal/config"
	"garment-flow/internal/lock"
	"garment-flow/internal/service/flow"
	"garment-flow/internal/storage"
)

var (
	key = storage.ContextKey{LineID: "L2", OrderID: "O-5", ColorID: "white"}
	t0  = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	// повторная миграция безопасна
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(config.Storage{Driver: "oracle"})
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	route := storage.Route{ID: "R1", StyleID: "polo", Steps: []storage.Step{
		{SNo: 2, OperationID: "close", RunSec: 30},
		{SNo: 1, OperationID: "front", PickupSec: 6, RunSec: 48, TrimSec: 6},
	}}
	require.NoError(t, s.SaveRoute(ctx, route))

	got, err := s.GetRoute(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "polo", got.StyleID)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, 1, got.Steps[0].SNo)
	assert.InDelta(t, 1.0, got.Steps[0].SMV(), 1e-9)

	route.Steps = route.Steps[1:]
	require.NoError(t, s.SaveRoute(ctx, route))
	got, err = s.GetRoute(ctx, "R1")
	require.NoError(t, err)
	assert.Len(t, got.Steps, 1)

	_, err = s.GetRoute(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrRouteNotFound)
}

func TestCards(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.LoadCard(ctx, storage.Card{ID: "c2", CreatedAt: t0.Add(time.Minute), Context: key, Quantity: 40}))
	require.NoError(t, s.LoadCard(ctx, storage.Card{ID: "c1", CreatedAt: t0, Context: key, Quantity: 10, Produced: 10}))

	err := s.LoadCard(ctx, storage.Card{ID: "c1", CreatedAt: t0, Context: key, Quantity: 10})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	cards, err := s.ListCards(ctx, key)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "c1", cards[0].ID)
	assert.Equal(t, storage.CardClosed, cards[0].Status)
	assert.True(t, cards[0].CreatedAt.Equal(t0))
	assert.Equal(t, key, cards[1].Context)

	err = s.InTx(ctx, func(tx storage.Tx) error {
		return tx.SaveCards(ctx, []storage.Card{{ID: "c2", Produced: 40, Status: storage.CardClosed}})
	})
	require.NoError(t, err)

	cards, err = s.ListCards(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 40, cards[1].Produced)
	assert.Equal(t, storage.CardClosed, cards[1].Status)

	err = s.InTx(ctx, func(tx storage.Tx) error {
		return tx.SaveCards(ctx, []storage.Card{{ID: "ghost", Produced: 1}})
	})
	assert.Error(t, err)

	other, err := s.ListCards(ctx, storage.ContextKey{LineID: "L2", OrderID: "O-5", ColorID: "black"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testRecord(id, operator string, at time.Time) storage.ProductionRecord {
	return storage.ProductionRecord{
		ID:          id,
		CreatedAt:   at,
		Context:     key,
		RouteID:     "R1",
		StepSNo:     1,
		OperationID: "front",
		OperatorID:  operator,
		Quantity:    12,
		HourBucket:  at.Hour(),
	}
}

func TestRecords(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx storage.Tx) error {
		return tx.SaveRecords(ctx, []storage.ProductionRecord{
			testRecord("r1", "anna", t0),
			testRecord("r2", "boris", t0.Add(time.Hour)),
			testRecord("r3", "anna", t0.Add(26*time.Hour)),
		})
	})
	require.NoError(t, err)

	got, err := s.GetRecord(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, "boris", got.OperatorID)
	assert.Equal(t, key, got.Context)
	assert.Equal(t, 9, got.HourBucket)

	all, err := s.ListRecords(ctx, key)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	firstDay, err := s.ListRecordsFiltered(ctx, storage.RecordFilter{From: t0, To: t0.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, firstDay, 2)

	annas, err := s.ListRecordsFiltered(ctx, storage.RecordFilter{OperatorID: "anna", LineID: "L2"})
	require.NoError(t, err)
	require.Len(t, annas, 2)
	assert.Equal(t, "r1", annas[0].ID)

	err = s.InTx(ctx, func(tx storage.Tx) error {
		return tx.SaveRecords(ctx, []storage.ProductionRecord{testRecord("r1", "anna", t0)})
	})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	upd := *got
	upd.Quantity = 3
	upd.OperatorID = "vera"
	require.NoError(t, s.InTx(ctx, func(tx storage.Tx) error { return tx.UpdateRecord(ctx, upd) }))
	got, err = s.GetRecord(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)
	assert.Equal(t, "vera", got.OperatorID)

	require.NoError(t, s.InTx(ctx, func(tx storage.Tx) error { return tx.DeleteRecord(ctx, "r2") }))
	_, err = s.GetRecord(ctx, "r2")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	err = s.InTx(ctx, func(tx storage.Tx) error { return tx.DeleteRecord(ctx, "r2") })
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestInTx_Rollback(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.LoadCard(ctx, storage.Card{ID: "c1", CreatedAt: t0, Context: key, Quantity: 10}))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.SaveRecords(ctx, []storage.ProductionRecord{testRecord("r1", "anna", t0)}); err != nil {
			return err
		}
		if err := tx.SaveCards(ctx, []storage.Card{{ID: "c1", Produced: 5, Status: storage.CardActive}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetRecord(ctx, "r1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
	cards, err := s.ListCards(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, cards[0].Produced)
}

func TestWages(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.HourlyRate(ctx, "anna")
	assert.ErrorIs(t, err, storage.ErrWageNotFound)

	require.NoError(t, s.SetHourlyRate(ctx, "anna", decimal.RequireFromString("11.5")))
	require.NoError(t, s.SetHourlyRate(ctx, "anna", decimal.RequireFromString("12.25")))

	rate, err := s.HourlyRate(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, "12.25", rate.StringFixed(2))
}

func TestEngineOnSQLite(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRoute(ctx, storage.Route{ID: "R1", Steps: []storage.Step{
		{SNo: 1, OperationID: "front", RunSec: 60},
		{SNo: 2, OperationID: "close", RunSec: 60},
	}}))
	require.NoError(t, s.LoadCard(ctx, storage.Card{ID: "c1", CreatedAt: t0, Context: key, Quantity: 50}))
	require.NoError(t, s.LoadCard(ctx, storage.Card{ID: "c2", CreatedAt: t0.Add(time.Minute), Context: key, Quantity: 50}))

	engine := flow.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), s, lock.NewLocal(time.Second))

	_, err := engine.CommitRecords(ctx, key, []storage.ProductionRecord{
		{RouteID: "R1", StepSNo: 1, OperatorID: "anna", Quantity: 100},
	}, flow.CommitOptions{})
	require.NoError(t, err)

	res, err := engine.CommitRecords(ctx, key, []storage.ProductionRecord{
		{RouteID: "R1", StepSNo: 2, OperatorID: "boris", Quantity: 70},
	}, flow.CommitOptions{})
	require.NoError(t, err)

	cards, err := s.ListCards(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, storage.CardClosed, cards[0].Status)
	assert.Equal(t, 20, cards[1].Produced)

	_, err = engine.DeleteRecord(ctx, res.Records[0].ID)
	require.NoError(t, err)

	cards, err = s.ListCards(ctx, key)
	require.NoError(t, err)
	for _, c := range cards {
		assert.Zero(t, c.Produced)
		assert.Equal(t, storage.CardActive, c.Status)
	}
}
