package storage

// Step is one operation of a route. Standard time components are seconds.
type Step struct {
	SNo         int     `json:"s_no"`
	OperationID string  `json:"operation_id"`
	PickupSec   float64 `json:"pickup_sec"`
	RunSec      float64 `json:"run_sec"`
	TrimSec     float64 `json:"trim_sec"`
}

// SMV returns the standard minute value of the step.
func (s Step) SMV() float64 {
	return (s.PickupSec + s.RunSec + s.TrimSec) / 60
}

type Route struct {
	ID      string `json:"id"`
	StyleID string `json:"style_id"`
	Steps   []Step `json:"steps"`
}

// Step looks a step up by sequence number.
func (r *Route) Step(sNo int) (Step, bool) {
	for _, s := range r.Steps {
		if s.SNo == sNo {
			return s, true
		}
	}
	return Step{}, false
}
