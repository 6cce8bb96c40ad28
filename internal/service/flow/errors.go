package flow

import (
	"errors"
	"fmt"

	"garment-flow/internal/storage"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrNoCards             = fmt.Errorf("no cards loaded for context: %w", ErrNotFound)
	ErrAllocationShortfall = errors.New("allocation shortfall")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrCorruptRoute        = errors.New("corrupt route")
)

// ValidationError describes the first rejected row of a submission.
type ValidationError struct {
	Row       int    `json:"row"`
	StepSNo   int    `json:"step_s_no"`
	Field     string `json:"field"`
	Reason    string `json:"reason"`
	Available int    `json:"available"`
	Quantity  int    `json:"quantity"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d, step %d, %s: %s", e.Row, e.StepSNo, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ShortfallError reports final-step output that did not fit into open cards.
type ShortfallError struct {
	Requested int `json:"requested"`
	Allocated int `json:"allocated"`
	Remainder int `json:"remainder"`
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("allocated %d of %d units, %d without an open card", e.Allocated, e.Requested, e.Remainder)
}

func (e *ShortfallError) Is(target error) bool {
	return target == ErrAllocationShortfall
}

// notFound tags store lookups so callers can test for ErrNotFound alone.
func notFound(err error) error {
	if errors.Is(err, storage.ErrRecordNotFound) || errors.Is(err, storage.ErrRouteNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
