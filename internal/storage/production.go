package storage

import "time"

// ProductionRecord is a count of units one operator finished at one route step.
type ProductionRecord struct {
	ID              string     `json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	Context         ContextKey `json:"context"`
	RouteID         string     `json:"route_id"`
	StepSNo         int        `json:"step_s_no"`
	OperationID     string     `json:"operation_id"`
	OperatorID      string     `json:"operator_id"`
	Quantity        int        `json:"quantity"`
	HourBucket      int        `json:"hour_bucket"`
	DowntimeMinutes int        `json:"downtime_minutes"`
	DowntimeReason  string     `json:"downtime_reason,omitempty"`
}

// RecordFilter selects records for reporting. Zero fields match everything.
type RecordFilter struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	LineID     string    `json:"line_id"`
	OrderID    string    `json:"order_id"`
	ColorID    string    `json:"color_id"`
	OperatorID string    `json:"operator_id"`
}

func (f RecordFilter) Match(r ProductionRecord) bool {
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.CreatedAt.Before(f.To) {
		return false
	}
	if f.LineID != "" && r.Context.LineID != f.LineID {
		return false
	}
	if f.OrderID != "" && r.Context.OrderID != f.OrderID {
		return false
	}
	if f.ColorID != "" && r.Context.ColorID != f.ColorID {
		return false
	}
	if f.OperatorID != "" && r.OperatorID != f.OperatorID {
		return false
	}
	return true
}
