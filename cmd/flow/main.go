package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"

	"garment-flow/internal/config"
	"garment-flow/internal/lock"
	"garment-flow/internal/service/efficiency"
	"garment-flow/internal/service/flow"
	generate_excel "garment-flow/internal/service/generate-excel"
	"garment-flow/internal/storage/memory"
	"garment-flow/internal/storage/sqlstore"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// Store is everything the HTTP layer needs from a storage backend.
type Store interface {
	flow.Store
	efficiency.ReportStorage
}

func main() {
	cfg := config.MustConfig()

	log := setupLogger(cfg.Env, cfg.ErrorLog)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Error("failed to open storage", slog.String("driver", cfg.Storage.Driver), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	locker, err := openLocker(log, cfg)
	if err != nil {
		log.Error("failed to set up lock backend", slog.String("backend", cfg.Lock.Backend), slog.String("error", err.Error()))
		os.Exit(1)
	}

	engine := flow.NewEngine(log, store, locker)
	reports := efficiency.NewService(store)
	excel := generate_excel.NewGenerateService(reports)

	log.Info("server started",
		slog.String("address", cfg.Address),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("lock", cfg.Lock.Backend),
	)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      routes(*cfg, log, store, engine, reports, excel),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Error("failed start server", slog.String("error", err.Error()))
	}

	log.Error("server stopped")
}

func openStore(cfg *config.Config) (Store, func(), error) {
	if cfg.Storage.Driver == "memory" {
		return memory.New(), func() {}, nil
	}

	st, err := sqlstore.New(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Storage.Migrate {
		if err := st.Migrate(context.Background()); err != nil {
			st.Close()
			return nil, nil, err
		}
	}

	return st, func() { st.Close() }, nil
}

func openLocker(log *slog.Logger, cfg *config.Config) (flow.Locker, error) {
	if cfg.Lock.Backend != "redis" {
		return lock.NewLocal(cfg.Lock.Timeout), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Lock.RedisAddr,
		Password: cfg.Lock.RedisPassword,
		DB:       cfg.Lock.RedisDB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return lock.NewRedis(log, client, cfg.Lock.TTL, cfg.Lock.Timeout), nil
}
