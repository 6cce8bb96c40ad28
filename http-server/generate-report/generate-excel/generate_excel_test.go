package generate_excel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"garment-flow/internal/storage"
)

type MockGenerateExcelHandler struct {
	mock.Mock
}

func (m *MockGenerateExcelHandler) GenerateExcel(ctx context.Context, filter storage.RecordFilter) ([]byte, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func TestGenerateReportExcel_Success(t *testing.T) {
	m := new(MockGenerateExcelHandler)
	m.On("GenerateExcel", mock.Anything, mock.MatchedBy(func(f storage.RecordFilter) bool {
		return f.OrderID == "O-17"
	})).Return([]byte("PK\x03\x04"), nil)

	rr := httptest.NewRecorder()
	GenerateReportExcel(slog.Default(), m).ServeHTTP(rr,
		httptest.NewRequest(http.MethodGet, "/api/report/efficiency/excel?order=O-17", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "Efficiency_Report_")
	assert.Equal(t, "PK\x03\x04", rr.Body.String())
}

func TestGenerateReportExcel_Error(t *testing.T) {
	m := new(MockGenerateExcelHandler)
	m.On("GenerateExcel", mock.Anything, mock.Anything).Return(nil, errors.New("excel: broken"))

	rr := httptest.NewRecorder()
	GenerateReportExcel(slog.Default(), m).ServeHTTP(rr,
		httptest.NewRequest(http.MethodGet, "/api/report/efficiency/excel", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
