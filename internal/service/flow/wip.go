package flow

import (
	"garment-flow/internal/storage"
)

// SessionRow is one not-yet-committed entry of the current entry session.
type SessionRow struct {
	StepSNo    int    `json:"step_s_no"`
	OperatorID string `json:"operator_id"`
	Quantity   int    `json:"quantity"`
}

type StepWip struct {
	SNo         int    `json:"s_no"`
	OperationID string `json:"operation_id"`
	Supply      int    `json:"supply"`
	Produced    int    `json:"produced"`
	Remaining   int    `json:"remaining"`
}

// RowCheck is the WIP a session row saw at its position in the queue.
type RowCheck struct {
	Row       int  `json:"row"`
	StepSNo   int  `json:"step_s_no"`
	Available int  `json:"available"`
	Quantity  int  `json:"quantity"`
	Exceeds   bool `json:"exceeds"`
}

type WipPreview struct {
	Steps []StepWip  `json:"steps"`
	Rows  []RowCheck `json:"rows"`
}

// Step returns the preview entry for a sequence number.
func (p WipPreview) Step(sNo int) (StepWip, bool) {
	for _, s := range p.Steps {
		if s.SNo == sNo {
			return s, true
		}
	}
	return StepWip{}, false
}

// RemainingWip computes, step by step, how many units may still be recorded.
// Step 1 draws on the loaded card quantity, every later step on the output
// of the step before it. Session rows are applied in queue order so rows for
// the same step deplete one pool. Rows for steps missing from the route are
// reported with zero availability.
func RemainingWip(steps []storage.Step, loaded int, history []storage.ProductionRecord, session []SessionRow) WipPreview {
	if len(steps) == 0 {
		return WipPreview{Steps: []StepWip{}, Rows: checkUnrouted(session)}
	}

	historical := make(map[int]int, len(steps))
	for _, r := range history {
		historical[r.StepSNo] += r.Quantity
	}

	known := make(map[int]bool, len(steps))
	for _, s := range steps {
		known[s.SNo] = true
	}

	sessionOut := make(map[int]int, len(steps))
	supply := func(sNo int) int {
		if sNo == steps[0].SNo {
			return loaded
		}
		return historical[sNo-1] + sessionOut[sNo-1]
	}
	remaining := func(sNo int) int {
		left := supply(sNo) - (historical[sNo] + sessionOut[sNo])
		if left < 0 {
			return 0
		}
		return left
	}

	rows := make([]RowCheck, 0, len(session))
	for i, row := range session {
		check := RowCheck{Row: i, StepSNo: row.StepSNo, Quantity: row.Quantity}
		if known[row.StepSNo] {
			check.Available = remaining(row.StepSNo)
			sessionOut[row.StepSNo] += row.Quantity
		}
		check.Exceeds = row.Quantity > check.Available
		rows = append(rows, check)
	}

	out := make([]StepWip, 0, len(steps))
	for _, s := range steps {
		out = append(out, StepWip{
			SNo:         s.SNo,
			OperationID: s.OperationID,
			Supply:      supply(s.SNo),
			Produced:    historical[s.SNo] + sessionOut[s.SNo],
			Remaining:   remaining(s.SNo),
		})
	}

	return WipPreview{Steps: out, Rows: rows}
}

func checkUnrouted(session []SessionRow) []RowCheck {
	rows := make([]RowCheck, 0, len(session))
	for i, row := range session {
		rows = append(rows, RowCheck{Row: i, StepSNo: row.StepSNo, Quantity: row.Quantity, Exceeds: row.Quantity > 0})
	}
	return rows
}

// validateSession turns the first bad row of a preview into a ValidationError.
func validateSession(steps []storage.Step, session []SessionRow, preview WipPreview) error {
	known := make(map[int]bool, len(steps))
	for _, s := range steps {
		known[s.SNo] = true
	}

	for i, row := range session {
		switch {
		case !known[row.StepSNo]:
			return &ValidationError{Row: i, StepSNo: row.StepSNo, Field: "step_s_no", Reason: "step is not on the route", Quantity: row.Quantity}
		case row.Quantity < 0:
			return &ValidationError{Row: i, StepSNo: row.StepSNo, Field: "quantity", Reason: "quantity must not be negative", Quantity: row.Quantity}
		case row.OperatorID == "":
			return &ValidationError{Row: i, StepSNo: row.StepSNo, Field: "operator_id", Reason: "no operator assigned", Quantity: row.Quantity}
		}

		check := preview.Rows[i]
		if check.Exceeds {
			return &ValidationError{
				Row:       i,
				StepSNo:   row.StepSNo,
				Field:     "quantity",
				Reason:    "quantity exceeds remaining work in process",
				Available: check.Available,
				Quantity:  row.Quantity,
			}
		}
	}
	return nil
}
