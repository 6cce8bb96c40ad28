package generate_excel

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"garment-flow/internal/service/efficiency"
	"garment-flow/internal/storage"
)

type EfficiencyReporter interface {
	GetEfficiencyReport(ctx context.Context, filter storage.RecordFilter) (efficiency.Report, error)
}

type GenerateExcelService struct {
	reports EfficiencyReporter
}

func NewGenerateService(reports EfficiencyReporter) *GenerateExcelService {
	return &GenerateExcelService{reports: reports}
}

const (
	sheetOperators  = "Operators"
	sheetOperations = "Operations"
	sheetHours      = "Hours"
)

// GenerateExcel renders the efficiency report for filter as an xlsx workbook.
func (g *GenerateExcelService) GenerateExcel(ctx context.Context, filter storage.RecordFilter) ([]byte, error) {
	const op = "service.generate_excel.GenerateExcel"

	report, err := g.reports.GetEfficiencyReport(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch report: %w", op, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetOperators)
	if _, err := f.NewSheet(sheetOperations); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := f.NewSheet(sheetHours); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: header style: %w", op, err)
	}

	writeHeader(f, sheetOperators, headerStyle, []string{"Operator", "Units", "Earned min", "Hours", "Available min", "Efficiency %", "Downtime min", "Cost"})
	for i, o := range report.Operators {
		row := i + 2
		f.SetCellValue(sheetOperators, cellName(1, row), o.OperatorID)
		f.SetCellValue(sheetOperators, cellName(2, row), o.Units)
		f.SetCellValue(sheetOperators, cellName(3, row), o.EarnedMinutes)
		f.SetCellValue(sheetOperators, cellName(4, row), o.Hours)
		f.SetCellValue(sheetOperators, cellName(5, row), o.AvailableMinutes)
		f.SetCellValue(sheetOperators, cellName(6, row), o.Efficiency)
		f.SetCellValue(sheetOperators, cellName(7, row), o.DowntimeMinutes)
		f.SetCellValue(sheetOperators, cellName(8, row), o.Cost.InexactFloat64())
	}

	writeHeader(f, sheetOperations, headerStyle, []string{"Route", "Step", "Operation", "SMV", "Units", "Earned min", "Hours", "Efficiency %", "Cost"})
	for i, s := range report.Operations {
		row := i + 2
		f.SetCellValue(sheetOperations, cellName(1, row), s.RouteID)
		f.SetCellValue(sheetOperations, cellName(2, row), s.StepSNo)
		f.SetCellValue(sheetOperations, cellName(3, row), s.OperationID)
		f.SetCellValue(sheetOperations, cellName(4, row), s.SMV)
		f.SetCellValue(sheetOperations, cellName(5, row), s.Units)
		f.SetCellValue(sheetOperations, cellName(6, row), s.EarnedMinutes)
		f.SetCellValue(sheetOperations, cellName(7, row), s.Hours)
		f.SetCellValue(sheetOperations, cellName(8, row), s.Efficiency)
		f.SetCellValue(sheetOperations, cellName(9, row), s.Cost.InexactFloat64())
	}

	writeHeader(f, sheetHours, headerStyle, []string{"Date", "Hour", "Operator", "Units", "Earned min", "Efficiency %", "Rate", "Cost"})
	for i, h := range report.Hours {
		row := i + 2
		f.SetCellValue(sheetHours, cellName(1, row), h.Date)
		f.SetCellValue(sheetHours, cellName(2, row), h.Hour)
		f.SetCellValue(sheetHours, cellName(3, row), h.OperatorID)
		f.SetCellValue(sheetHours, cellName(4, row), h.Units)
		f.SetCellValue(sheetHours, cellName(5, row), h.EarnedMinutes)
		f.SetCellValue(sheetHours, cellName(6, row), h.Efficiency)
		f.SetCellValue(sheetHours, cellName(7, row), h.Rate.InexactFloat64())
		f.SetCellValue(sheetHours, cellName(8, row), h.Cost.InexactFloat64())
	}

	// итоговая строка под операторами
	total := len(report.Operators) + 2
	f.SetCellValue(sheetOperators, cellName(1, total), "Total")
	f.SetCellValue(sheetOperators, cellName(3, total), report.EarnedMinutes)
	f.SetCellValue(sheetOperators, cellName(8, total), report.Cost.InexactFloat64())

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, style int, headers []string) {
	for i, name := range headers {
		f.SetCellValue(sheet, cellName(i+1, 1), name)
	}
	f.SetCellStyle(sheet, "A1", cellName(len(headers), 1), style)

	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
	})
	f.SetColWidth(sheet, "A", "C", 15)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
