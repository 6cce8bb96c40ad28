package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"garment-flow/internal/lib/api"
	"garment-flow/internal/service/flow"
	"garment-flow/internal/storage"
)

type RouteProvider interface {
	GetRoute(ctx context.Context, id string) (*storage.Route, error)
}

type StepResponse struct {
	storage.Step
	SMV float64 `json:"smv"`
}

type Response struct {
	ID        string         `json:"id"`
	StyleID   string         `json:"style_id"`
	Steps     []StepResponse `json:"steps"`
	FinalStep int            `json:"final_step"`
	TotalSMV  float64        `json:"total_smv"`
}

// GetRoute returns a route in step order with the SMV of each step.
func GetRoute(log *slog.Logger, routes RouteProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routes.GetRoute"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		route, err := routes.GetRoute(ctx, id)
		if err != nil {
			api.WriteError(w, r, log, op, err)
			return
		}

		steps, err := flow.ResolveRoute(route)
		if err != nil {
			api.WriteError(w, r, log, op, err)
			return
		}

		resp := Response{ID: route.ID, StyleID: route.StyleID, Steps: make([]StepResponse, 0, len(steps))}
		for _, s := range steps {
			resp.Steps = append(resp.Steps, StepResponse{Step: s, SMV: s.SMV()})
			resp.TotalSMV += s.SMV()
		}
		if final, ok := flow.FinalStep(route); ok {
			resp.FinalStep = final.SNo
		}

		render.JSON(w, r, resp)
	}
}
