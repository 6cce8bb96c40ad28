package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/cors"

	getcards "garment-flow/http-server/cards/get"
	generate_excel "garment-flow/http-server/generate-report/generate-excel"
	"garment-flow/http-server/production/preview"
	"garment-flow/http-server/production/remove"
	"garment-flow/http-server/production/save"
	"garment-flow/http-server/production/update"
	getreport "garment-flow/http-server/report/get"
	getroute "garment-flow/http-server/routes/get"
	"garment-flow/internal/config"
	"garment-flow/internal/middleware/auth"
	"garment-flow/internal/service/efficiency"
	"garment-flow/internal/service/flow"
	generate_excel2 "garment-flow/internal/service/generate-excel"
)

func routes(cfg config.Config, log *slog.Logger, store Store, engine *flow.Engine, reports *efficiency.Service, excel *generate_excel2.GenerateExcelService) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	// ввод выработки
	router.Post("/api/production/preview", preview.PreviewWip(log, engine))
	router.Post("/api/production", save.CommitRecords(log, engine))
	router.Put("/api/production/{id}", update.UpdateRecord(log, engine))

	// удаление откатывает карты, только для мастера
	router.With(auth.BasicAuth(cfg.SupervisorLogin, cfg.SupervisorPass)).
		Delete("/api/production/{id}", remove.DeleteRecord(log, engine))

	router.Get("/api/cards", getcards.GetCards(log, engine))
	router.Get("/api/routes/{id}", getroute.GetRoute(log, store))

	router.Get("/api/report/efficiency", getreport.GetEfficiencyReport(log, reports))
	router.Get("/api/report/efficiency/excel", generate_excel.GenerateReportExcel(log, excel))

	return router
}
