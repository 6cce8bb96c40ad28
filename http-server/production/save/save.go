package save

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"garment-flow/internal/lib/api"
	"garment-flow/internal/service/flow"
	"garment-flow/internal/storage"
)

type RecordCommitter interface {
	CommitRecords(ctx context.Context, key storage.ContextKey, records []storage.ProductionRecord, opts flow.CommitOptions) (flow.CommitResult, error)
}

type Request struct {
	Context             storage.ContextKey         `json:"context"`
	Records             []storage.ProductionRecord `json:"records"`
	AllowOverProduction bool                       `json:"allow_over_production"`
}

func CommitRecords(log *slog.Logger, committer RecordCommitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.CommitRecords"

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Bad request: invalid JSON", http.StatusBadRequest)
			return
		}

		if len(req.Records) == 0 {
			log.Warn("Пустой список записей выработки", slog.String("op", op))
			http.Error(w, "No records provided", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := committer.CommitRecords(ctx, req.Context, req.Records, flow.CommitOptions{
			AllowOverProduction: req.AllowOverProduction,
		})
		if err != nil {
			api.WriteError(w, r, log, op, err)
			return
		}

		log.Info("Production saved",
			slog.String("context", req.Context.String()),
			slog.Int("records", len(result.Records)),
			slog.Int("unallocated", result.Unallocated),
		)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, result)
	}
}
