package update

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"garment-flow/internal/lib/api"
	"garment-flow/internal/service/flow"
)

type RecordUpdater interface {
	UpdateRecord(ctx context.Context, id string, upd flow.RecordUpdate, opts flow.CommitOptions) (flow.CommitResult, error)
}

type Request struct {
	Quantity            *int   `json:"quantity"`
	OperatorID          string `json:"operator_id"`
	AllowOverProduction bool   `json:"allow_over_production"`
}

func UpdateRecord(log *slog.Logger, updater RecordUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.UpdateRecord"

		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Invalid ID", http.StatusBadRequest)
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Invalid data", http.StatusBadRequest)
			return
		}
		if req.Quantity == nil {
			http.Error(w, "quantity is required", http.StatusBadRequest)
			return
		}

		log.Info("Обновление записи выработки", slog.String("id", id))

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := updater.UpdateRecord(ctx, id, flow.RecordUpdate{
			Quantity:   *req.Quantity,
			OperatorID: req.OperatorID,
		}, flow.CommitOptions{AllowOverProduction: req.AllowOverProduction})
		if err != nil {
			api.WriteError(w, r, log, op, err)
			return
		}

		render.JSON(w, r, result)
	}
}
