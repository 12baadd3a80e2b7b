package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tphummel/lab_inventory/internal/config"
	"github.com/tphummel/lab_inventory/internal/db"
	"github.com/tphummel/lab_inventory/internal/handlers"
	"github.com/tphummel/lab_inventory/internal/metrics"
	"github.com/tphummel/lab_inventory/internal/middleware"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

const sessionSweepInterval = 10 * time.Minute

// newServer wires the routes, request logging and timeouts for cfg.
func newServer(cfg *config.Server, database *db.DB, logger *slog.Logger) *http.Server {
	h := &handlers.Handler{
		DB:         database,
		Version:    version,
		Commit:     commit,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		BcryptCost: cfg.BcryptCost,
	}

	skip := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	handler := middleware.RequestLogger(logger, skip, handlers.NewMux(h))

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// sweepSessions deletes expired sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, database *db.DB, interval time.Duration, logger *slog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := database.DeleteExpiredSessions(now.UTC())
			if err != nil {
				logger.Error("sweep sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("swept expired sessions", "count", n)
			}
		}
	}
}

// registerMetrics adds the service collectors to reg, which /metrics serves
// through promhttp.Handler when reg is the default registerer.
func registerMetrics(reg prometheus.Registerer, database *db.DB) error {
	return metrics.Register(reg, database)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadServer(ctx)
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if err := registerMetrics(prometheus.DefaultRegisterer, database); err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	srv := newServer(cfg, database, logger)
	go sweepSessions(ctx, database, sessionSweepInterval, logger)

	go func() {
		logger.Info("listening", "addr", srv.Addr, "version", version, "commit", commit)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	if err := database.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
	logger.Info("server stopped")
}
