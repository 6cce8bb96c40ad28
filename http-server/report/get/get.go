package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/render"

	"garment-flow/internal/lib/api"
	"garment-flow/internal/service/efficiency"
	"garment-flow/internal/storage"
)

type EfficiencyReporter interface {
	GetEfficiencyReport(ctx context.Context, filter storage.RecordFilter) (efficiency.Report, error)
}

func GetEfficiencyReport(log *slog.Logger, reporter EfficiencyReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.report.GetEfficiencyReport"

		filter, err := ParseFilter(r.URL.Query(), time.Now())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report, err := reporter.GetEfficiencyReport(ctx, filter)
		if err != nil {
			api.WriteError(w, r, log, op, err)
			return
		}

		render.JSON(w, r, report)
	}
}

// ParseFilter reads from/to dates (inclusive, YYYY-MM-DD) and the context and
// operator filters. Without dates the current month up to today is used.
func ParseFilter(q url.Values, now time.Time) (storage.RecordFilter, error) {
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	from := startOfMonth
	if s := q.Get("from"); s != "" {
		d, err := time.ParseInLocation("2006-01-02", s, now.Location())
		if err != nil {
			return storage.RecordFilter{}, errors.New("invalid from date")
		}
		from = d
	}

	to := today
	if s := q.Get("to"); s != "" {
		d, err := time.ParseInLocation("2006-01-02", s, now.Location())
		if err != nil {
			return storage.RecordFilter{}, errors.New("invalid to date")
		}
		to = d
	}
	if to.Before(from) {
		return storage.RecordFilter{}, errors.New("'to' is before 'from'")
	}

	return storage.RecordFilter{
		From:       from,
		To:         to.AddDate(0, 0, 1),
		LineID:     q.Get("line"),
		OrderID:    q.Get("order"),
		ColorID:    q.Get("color"),
		OperatorID: q.Get("operator"),
	}, nil
}
