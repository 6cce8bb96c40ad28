package generate_excel

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

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

func TestGenerateExcel(t *testing.T) {
	m := new(MockEfficiencyReporter)
	m.On("GetEfficiencyReport", mock.Anything, storage.RecordFilter{LineID: "L1"}).Return(efficiency.Report{
		Operators: []efficiency.OperatorSummary{
			{OperatorID: "anna", Units: 95, EarnedMinutes: 85, Hours: 2, Efficiency: 70.8, Cost: decimal.RequireFromString("24")},
			{OperatorID: "boris", Cost: decimal.RequireFromString("9")},
		},
		Operations: []efficiency.OperationSummary{
			{RouteID: "R1", StepSNo: 1, OperationID: "front", SMV: 1, Units: 75, Cost: decimal.RequireFromString("21")},
		},
		Hours: []efficiency.HourSummary{
			{Date: "2026-03-02", Hour: 9, OperatorID: "anna", Rate: decimal.RequireFromString("12"), Cost: decimal.RequireFromString("12")},
		},
		EarnedMinutes: 85,
		Cost:          decimal.RequireFromString("33"),
	}, nil)

	data, err := NewGenerateService(m).GenerateExcel(context.Background(), storage.RecordFilter{LineID: "L1"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Operators", "Operations", "Hours"}, f.GetSheetList())

	v, _ := f.GetCellValue("Operators", "A2")
	assert.Equal(t, "anna", v)
	v, _ = f.GetCellValue("Operators", "A4")
	assert.Equal(t, "Total", v)
	v, _ = f.GetCellValue("Operators", "H4")
	assert.Equal(t, "33", v)
	v, _ = f.GetCellValue("Operations", "C2")
	assert.Equal(t, "front", v)
	v, _ = f.GetCellValue("Hours", "A2")
	assert.Equal(t, "2026-03-02", v)
}

func TestGenerateExcel_ReportError(t *testing.T) {
	m := new(MockEfficiencyReporter)
	boom := errors.New("db down")
	m.On("GetEfficiencyReport", mock.Anything, mock.Anything).Return(efficiency.Report{}, boom)

	_, err := NewGenerateService(m).GenerateExcel(context.Background(), storage.RecordFilter{})
	assert.ErrorIs(t, err, boom)
}
