package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"garment-flow/internal/lib/api"
	"garment-flow/internal/storage"
)

type CardLister interface {
	ListCards(ctx context.Context, key storage.ContextKey) ([]storage.Card, error)
}

type Response struct {
	Context  storage.ContextKey `json:"context"`
	Cards    []storage.Card     `json:"cards"`
	Loaded   int                `json:"loaded"`
	Produced int                `json:"produced"`
	Open     int                `json:"open"`
}

// GetCards lists the cards of one line/order/color with their totals.
func GetCards(log *slog.Logger, lister CardLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.cards.GetCards"

		q := r.URL.Query()
		key := storage.ContextKey{
			LineID:  q.Get("line"),
			OrderID: q.Get("order"),
			ColorID: q.Get("color"),
		}
		if !key.Valid() {
			log.With(slog.String("op", op)).Error("Missing 'line', 'order' or 'color' in query parameters")
			http.Error(w, "Missing required query parameters 'line', 'order', 'color'", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		cards, err := lister.ListCards(ctx, key)
		if err != nil {
			api.WriteError(w, r, log, op, err)
			return
		}

		resp := Response{Context: key, Cards: cards}
		for _, c := range cards {
			resp.Loaded += c.Quantity
			resp.Produced += c.Produced
			if c.Status == storage.CardActive {
				resp.Open++
			}
		}

		render.JSON(w, r, resp)
	}
}
