// Package main implements the advisor HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/WessleyAI/wessley-advisor/engine/app"
	"github.com/WessleyAI/wessley-advisor/pkg/config"
	"github.com/WessleyAI/wessley-advisor/pkg/metrics"
	"github.com/WessleyAI/wessley-advisor/pkg/mid"
)

func main() {
	configPath := flag.String("config", "", "path to advisor.yaml")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	cfg.Log.Format = "json"
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, app.WithLocalHistory())
	if err != nil {
		return err
	}
	defer a.Close()

	var runs runStore
	if cfg.History.DBPath != "" {
		st, err := a.OpenHistory(ctx)
		if err != nil {
			logger.Warn("run history unavailable", "err", err)
		} else {
			runs = st
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newHandler(a.Service, runs, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", cfg.Server.Addr, "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func newHandler(svc recommender, runs runStore, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/recommend", handleRecommend(svc, logger))
	mux.HandleFunc("POST /api/estimate", handleEstimate(svc))
	if runs != nil {
		mux.HandleFunc("GET /api/runs", handleListRuns(runs, logger))
		mux.HandleFunc("GET /api/runs/{id}", handleGetRun(runs, logger))
	}
	mux.Handle("GET /metrics", metrics.Handler())

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.OTel("advisor-api"),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS("*"),
		mid.MaxBody(1<<20),
		mid.Metrics(),
	)
}
