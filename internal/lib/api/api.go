// Package api maps engine errors onto HTTP responses.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"garment-flow/internal/service/flow"
	"garment-flow/internal/storage"
)

type ErrorResponse struct {
	Error      string                `json:"error"`
	Validation *flow.ValidationError `json:"validation,omitempty"`
	Shortfall  *flow.ShortfallError  `json:"shortfall,omitempty"`
}

// Status picks the HTTP status for an engine error.
func Status(err error) int {
	switch {
	case errors.Is(err, flow.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, flow.ErrNotFound),
		errors.Is(err, storage.ErrRecordNotFound),
		errors.Is(err, storage.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, flow.ErrAllocationShortfall), errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, flow.ErrConcurrencyConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError logs err and renders it. Internal errors are not echoed back.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, err error) {
	status := Status(err)

	resp := ErrorResponse{Error: err.Error()}
	errors.As(err, &resp.Validation)
	errors.As(err, &resp.Shortfall)

	switch status {
	case http.StatusInternalServerError:
		log.Error("request failed", slog.String("op", op), slog.String("error", err.Error()))
		resp = ErrorResponse{Error: "Internal server error"}
	case http.StatusServiceUnavailable:
		log.Warn("context busy", slog.String("op", op), slog.String("error", err.Error()))
		w.Header().Set("Retry-After", "1")
	default:
		log.Warn("request rejected", slog.String("op", op), slog.String("error", err.Error()))
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
