// Command history-consumer subscribes to published advisor runs and
// persists them to the SQLite run history.
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
	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/wessley-advisor/engine/history"
	"github.com/WessleyAI/wessley-advisor/pkg/config"
	"github.com/WessleyAI/wessley-advisor/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to advisor.yaml")
	metricsAddr := flag.String("metrics-addr", ":9091", "address for /metrics, empty to disable")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := run(cfg, *metricsAddr, logger); err != nil {
		logger.Error("consumer exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, metricsAddr string, logger *slog.Logger) error {
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is not configured")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := history.Open(ctx, cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("advisor-history"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := history.NewConsumer(st, logger).Subscribe(nc, cfg.NATS.Subject)
	if err != nil {
		return err
	}
	logger.Info("consuming runs", "subject", sub.Subject, "db", cfg.History.DBPath)

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler())
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if srv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}
	// Drain lets in-flight handlers finish before the store is closed.
	if err := nc.Drain(); err != nil {
		return err
	}
	for nc.IsDraining() {
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}
