package preview

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"garment-flow/internal/lib/api"
	"garment-flow/internal/service/flow"
	"garment-flow/internal/storage"
)

type WipPreviewer interface {
	ValidateAndPreviewWip(ctx context.Context, key storage.ContextKey, routeID string, session []flow.SessionRow) (flow.WipPreview, error)
}

type Request struct {
	Context storage.ContextKey `json:"context"`
	RouteID string             `json:"route_id"`
	Rows    []flow.SessionRow  `json:"rows"`
}

type Response struct {
	Valid      bool                  `json:"valid"`
	Preview    flow.WipPreview       `json:"preview"`
	Validation *flow.ValidationError `json:"validation,omitempty"`
}

// PreviewWip returns remaining WIP per step for the rows typed so far.
// An invalid row still gets the preview, with status 422.
func PreviewWip(log *slog.Logger, wip WipPreviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.production.PreviewWip"

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Bad request: invalid JSON", http.StatusBadRequest)
			return
		}

		if req.RouteID == "" {
			http.Error(w, "route_id is required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		preview, err := wip.ValidateAndPreviewWip(ctx, req.Context, req.RouteID, req.Rows)
		if err != nil {
			var verr *flow.ValidationError
			if errors.As(err, &verr) && preview.Steps != nil {
				render.Status(r, http.StatusUnprocessableEntity)
				render.JSON(w, r, Response{Valid: false, Preview: preview, Validation: verr})
				return
			}
			api.WriteError(w, r, log, op, err)
			return
		}

		render.JSON(w, r, Response{Valid: true, Preview: preview})
	}
}
