package efficiency

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"garment-flow/internal/storage"
)

type OperatorSummary struct {
	OperatorID       string          `json:"operator_id"`
	Units            int             `json:"units"`
	EarnedMinutes    float64         `json:"earned_minutes"`
	Hours            int             `json:"hours"`
	AvailableMinutes float64         `json:"available_minutes"`
	Efficiency       float64         `json:"efficiency"`
	DowntimeMinutes  int             `json:"downtime_minutes"`
	Cost             decimal.Decimal `json:"cost"`
}

type OperationSummary struct {
	RouteID          string          `json:"route_id"`
	StepSNo          int             `json:"step_s_no"`
	OperationID      string          `json:"operation_id"`
	SMV              float64         `json:"smv"`
	Units            int             `json:"units"`
	EarnedMinutes    float64         `json:"earned_minutes"`
	Hours            int             `json:"hours"`
	AvailableMinutes float64         `json:"available_minutes"`
	Efficiency       float64         `json:"efficiency"`
	Cost             decimal.Decimal `json:"cost"`
}

// HourSummary is one operator's output within one clock hour.
type HourSummary struct {
	Date          string          `json:"date"`
	Hour          int             `json:"hour"`
	OperatorID    string          `json:"operator_id"`
	Units         int             `json:"units"`
	EarnedMinutes float64         `json:"earned_minutes"`
	Efficiency    float64         `json:"efficiency"`
	Rate          decimal.Decimal `json:"rate"`
	Cost          decimal.Decimal `json:"cost"`
}

type Report struct {
	Operators     []OperatorSummary  `json:"operators"`
	Operations    []OperationSummary `json:"operations"`
	Hours         []HourSummary      `json:"hours"`
	EarnedMinutes float64            `json:"earned_minutes"`
	Cost          decimal.Decimal    `json:"cost"`
}

type bucket struct {
	date string
	hour int
}

type hourKey struct {
	bucket
	operatorID string
}

type operationKey struct {
	routeID string
	sNo     int
}

// Aggregate computes earned SMV minutes, efficiency and prorated labour cost
// per operator, per route operation and per operator hour. Efficiency
// divides earned minutes by sixty minutes for every distinct (date, hour)
// the operator or operation has output in. An operator's hourly rate is
// split over the records of that hour by their share of earned minutes.
func Aggregate(records []storage.ProductionRecord, routes map[string]*storage.Route, rates map[string]decimal.Decimal) (Report, error) {
	const op = "service.efficiency.Aggregate"

	type earnedRecord struct {
		rec    storage.ProductionRecord
		step   storage.Step
		earned float64
		key    hourKey
	}

	earned := make([]earnedRecord, 0, len(records))
	groupEarned := make(map[hourKey]float64)
	groupSize := make(map[hourKey]int)

	for _, r := range records {
		route, ok := routes[r.RouteID]
		if !ok {
			return Report{}, fmt.Errorf("%s: record %s: route %s: %w", op, r.ID, r.RouteID, storage.ErrRouteNotFound)
		}
		step, ok := route.Step(r.StepSNo)
		if !ok {
			return Report{}, fmt.Errorf("%s: record %s: step %d of route %s: %w", op, r.ID, r.StepSNo, r.RouteID, storage.ErrRouteNotFound)
		}

		e := earnedRecord{
			rec:    r,
			step:   step,
			earned: float64(r.Quantity) * step.SMV(),
			key: hourKey{
				bucket:     bucket{date: r.CreatedAt.UTC().Format("2006-01-02"), hour: r.HourBucket},
				operatorID: r.OperatorID,
			},
		}
		earned = append(earned, e)
		groupEarned[e.key] += e.earned
		groupSize[e.key]++
	}

	var (
		operators   = make(map[string]*OperatorSummary)
		operatorHrs = make(map[string]map[bucket]bool)
		operations  = make(map[operationKey]*OperationSummary)
		operationHr = make(map[operationKey]map[bucket]bool)
		hours       = make(map[hourKey]*HourSummary)
		report      = Report{Cost: decimal.Zero}
	)

	for _, e := range earned {
		rate := rates[e.rec.OperatorID]
		cost := prorate(rate, e.earned, groupEarned[e.key], groupSize[e.key])

		o, ok := operators[e.rec.OperatorID]
		if !ok {
			o = &OperatorSummary{OperatorID: e.rec.OperatorID, Cost: decimal.Zero}
			operators[e.rec.OperatorID] = o
			operatorHrs[e.rec.OperatorID] = make(map[bucket]bool)
		}
		o.Units += e.rec.Quantity
		o.EarnedMinutes += e.earned
		o.DowntimeMinutes += e.rec.DowntimeMinutes
		o.Cost = o.Cost.Add(cost)
		operatorHrs[e.rec.OperatorID][e.key.bucket] = true

		opKey := operationKey{routeID: e.rec.RouteID, sNo: e.step.SNo}
		s, ok := operations[opKey]
		if !ok {
			s = &OperationSummary{
				RouteID:     e.rec.RouteID,
				StepSNo:     e.step.SNo,
				OperationID: e.step.OperationID,
				SMV:         e.step.SMV(),
				Cost:        decimal.Zero,
			}
			operations[opKey] = s
			operationHr[opKey] = make(map[bucket]bool)
		}
		s.Units += e.rec.Quantity
		s.EarnedMinutes += e.earned
		s.Cost = s.Cost.Add(cost)
		operationHr[opKey][e.key.bucket] = true

		h, ok := hours[e.key]
		if !ok {
			h = &HourSummary{Date: e.key.date, Hour: e.key.hour, OperatorID: e.key.operatorID, Rate: rate, Cost: decimal.Zero}
			hours[e.key] = h
		}
		h.Units += e.rec.Quantity
		h.EarnedMinutes += e.earned
		h.Cost = h.Cost.Add(cost)

		report.EarnedMinutes += e.earned
		report.Cost = report.Cost.Add(cost)
	}

	for id, o := range operators {
		o.Hours = len(operatorHrs[id])
		o.AvailableMinutes = float64(o.Hours) * 60
		o.Efficiency = percent(o.EarnedMinutes, o.AvailableMinutes)
		o.Cost = o.Cost.Round(2)
		report.Operators = append(report.Operators, *o)
	}
	sort.Slice(report.Operators, func(i, j int) bool { return report.Operators[i].OperatorID < report.Operators[j].OperatorID })

	for k, s := range operations {
		s.Hours = len(operationHr[k])
		s.AvailableMinutes = float64(s.Hours) * 60
		s.Efficiency = percent(s.EarnedMinutes, s.AvailableMinutes)
		s.Cost = s.Cost.Round(2)
		report.Operations = append(report.Operations, *s)
	}
	sort.Slice(report.Operations, func(i, j int) bool {
		a, b := report.Operations[i], report.Operations[j]
		if a.RouteID != b.RouteID {
			return a.RouteID < b.RouteID
		}
		return a.StepSNo < b.StepSNo
	})

	for _, h := range hours {
		h.Efficiency = percent(h.EarnedMinutes, 60)
		h.Cost = h.Cost.Round(2)
		report.Hours = append(report.Hours, *h)
	}
	sort.Slice(report.Hours, func(i, j int) bool {
		a, b := report.Hours[i], report.Hours[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.OperatorID < b.OperatorID
	})

	report.Cost = report.Cost.Round(2)
	return report, nil
}

// prorate gives a record its share of the hourly rate. An hour without
// earned minutes splits the rate evenly.
func prorate(rate decimal.Decimal, earned, groupEarned float64, groupSize int) decimal.Decimal {
	if rate.IsZero() || groupSize == 0 {
		return decimal.Zero
	}
	if groupEarned <= 0 {
		return rate.Div(decimal.NewFromInt(int64(groupSize)))
	}
	return rate.Mul(decimal.NewFromFloat(earned)).Div(decimal.NewFromFloat(groupEarned))
}

func percent(earned, available float64) float64 {
	if available <= 0 {
		return 0
	}
	return earned / available * 100
}
