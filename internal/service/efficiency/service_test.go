package efficiency

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"garment-flow/internal/storage"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) ListRecordsFiltered(ctx context.Context, filter storage.RecordFilter) ([]storage.ProductionRecord, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]storage.ProductionRecord), args.Error(1)
}

func (m *mockStorage) GetRoute(ctx context.Context, id string) (*storage.Route, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Route), args.Error(1)
}

func (m *mockStorage) HourlyRate(ctx context.Context, operatorID string) (decimal.Decimal, error) {
	args := m.Called(ctx, operatorID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func TestGetEfficiencyReport(t *testing.T) {
	filter := storage.RecordFilter{LineID: "L1"}
	records := []storage.ProductionRecord{
		record("1", "anna", 1, 30, 9),
		record("2", "boris", 1, 15, 9),
	}

	st := new(mockStorage)
	st.On("ListRecordsFiltered", mock.Anything, filter).Return(records, nil)
	st.On("GetRoute", mock.Anything, "R1").Return(testRoutes()["R1"], nil).Once()
	st.On("HourlyRate", mock.Anything, "anna").Return(decimal.RequireFromString("10"), nil)
	st.On("HourlyRate", mock.Anything, "boris").Return(decimal.Zero, storage.ErrWageNotFound)

	report, err := NewService(st).GetEfficiencyReport(context.Background(), filter)
	require.NoError(t, err)

	require.Len(t, report.Operators, 2)
	assert.Equal(t, "10.00", report.Operators[0].Cost.StringFixed(2))
	assert.True(t, report.Operators[1].Cost.IsZero())
	st.AssertExpectations(t)
}

func TestGetEfficiencyReport_StorageErrors(t *testing.T) {
	filter := storage.RecordFilter{}
	boom := errors.New("connection refused")

	t.Run("records", func(t *testing.T) {
		st := new(mockStorage)
		st.On("ListRecordsFiltered", mock.Anything, filter).Return([]storage.ProductionRecord(nil), boom)

		_, err := NewService(st).GetEfficiencyReport(context.Background(), filter)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("route", func(t *testing.T) {
		st := new(mockStorage)
		st.On("ListRecordsFiltered", mock.Anything, filter).Return([]storage.ProductionRecord{record("1", "anna", 1, 1, 9)}, nil)
		st.On("GetRoute", mock.Anything, "R1").Return(nil, storage.ErrRouteNotFound)
		st.On("HourlyRate", mock.Anything, "anna").Return(decimal.Zero, nil).Maybe()

		_, err := NewService(st).GetEfficiencyReport(context.Background(), filter)
		assert.ErrorIs(t, err, storage.ErrRouteNotFound)
	})

	t.Run("wage", func(t *testing.T) {
		st := new(mockStorage)
		st.On("ListRecordsFiltered", mock.Anything, filter).Return([]storage.ProductionRecord{record("1", "anna", 1, 1, 9)}, nil)
		st.On("GetRoute", mock.Anything, "R1").Return(testRoutes()["R1"], nil).Maybe()
		st.On("HourlyRate", mock.Anything, "anna").Return(decimal.Zero, boom)

		_, err := NewService(st).GetEfficiencyReport(context.Background(), filter)
		assert.ErrorIs(t, err, boom)
	})
}
