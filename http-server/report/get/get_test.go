package get

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"garment-flow/internal/service/efficiency"
	"garment-flow/internal/storage"
)

type MockEfficiencyReporter struct {
	mock.Mock
}

func (m *MockEfficiencyReporter) GetEfficiencyReport(ctx context.Context, filter storage.RecordFilter) (efficiency.Report, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(efficiency.Report), args.Error(1)
}

func TestParseFilter(t *testing.T) {
	now := time.Date(2026, 3, 18, 15, 30, 0, 0, time.UTC)

	t.Run("defaults to month to date", func(t *testing.T) {
		f, err := ParseFilter(url.Values{}, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), f.From)
		assert.Equal(t, time.Date(2026, 3, 19, 0, 0, 0, 0, time.UTC), f.To)
	})

	t.Run("explicit range is inclusive", func(t *testing.T) {
		q := url.Values{"from": {"2026-02-10"}, "to": {"2026-02-10"}, "line": {"L1"}, "operator": {"anna"}}
		f, err := ParseFilter(q, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), f.From)
		assert.Equal(t, time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC), f.To)
		assert.Equal(t, "L1", f.LineID)
		assert.Equal(t, "anna", f.OperatorID)
	})

	for name, q := range map[string]url.Values{
		"bad from": {"from": {"10.02.2026"}},
		"bad to":   {"to": {"yesterday"}},
		"reversed": {"from": {"2026-02-10"}, "to": {"2026-02-09"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilter(q, now)
			assert.Error(t, err)
		})
	}
}

func TestGetEfficiencyReport_Success(t *testing.T) {
	m := new(MockEfficiencyReporter)
	m.On("GetEfficiencyReport", mock.Anything, mock.MatchedBy(func(f storage.RecordFilter) bool {
		return f.LineID == "L1" && f.From.Format("2006-01-02") == "2026-03-01"
	})).Return(efficiency.Report{
		Operators: []efficiency.OperatorSummary{{OperatorID: "anna", EarnedMinutes: 85, Efficiency: 70.8, Cost: decimal.RequireFromString("24")}},
		Cost:      decimal.RequireFromString("24"),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/report/efficiency?from=2026-03-01&to=2026-03-02&line=L1", nil)
	rr := httptest.NewRecorder()
	GetEfficiencyReport(slog.Default(), m).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp efficiency.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Operators, 1)
	assert.Equal(t, "anna", resp.Operators[0].OperatorID)
	assert.True(t, resp.Cost.Equal(decimal.NewFromInt(24)))
	m.AssertExpectations(t)
}

func TestGetEfficiencyReport_Errors(t *testing.T) {
	m := new(MockEfficiencyReporter)
	m.On("GetEfficiencyReport", mock.Anything, mock.Anything).Return(efficiency.Report{}, errors.New("db down"))

	rr := httptest.NewRecorder()
	GetEfficiencyReport(slog.Default(), m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/report/efficiency", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	GetEfficiencyReport(slog.Default(), m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/report/efficiency?from=bad", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
