package remove

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"garment-flow/internal/lib/api"
	"garment-flow/internal/storage"
)

type RecordDeleter interface {
	DeleteRecord(ctx context.Context, id string) ([]storage.Card, error)
}

type Response struct {
	Status string         `json:"status"`
	ID     string         `json:"id"`
	Cards  []storage.Card `json:"cards"`
}

func DeleteRecord(log *slog.Logger, deleter RecordDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.DeleteRecord"

		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Invalid ID", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		cards, err := deleter.DeleteRecord(ctx, id)
		if err != nil {
			api.WriteError(w, r, log, op, err)
			return
		}

		log.Info("Запись выработки удалена", slog.String("id", id))

		render.JSON(w, r, Response{Status: "deleted", ID: id, Cards: cards})
	}
}
