package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/vetting-worker/internal/app"
	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/db"
	"github.com/yourorg/vetting-worker/internal/logging"
	"github.com/yourorg/vetting-worker/internal/worker"
)

func main() {
	// Local dev: pick up .env files from the cwd or one level up.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg, err := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup")
	}
	defer a.Close()

	if err := a.Store.EnsureSchema(ctx); err != nil {
		if db.IsInsufficientPrivilege(err) {
			log.Warn().Err(err).Msg("ensure schema skipped due to insufficient privilege")
		} else {
			log.Fatal().Err(err).Msg("ensure schema")
		}
	}

	if addr := cfg.HTTPAddr; addr != "" {
		go serveHTTP(ctx, addr, a.Store)
	}

	r := worker.NewRunner(cfg, a.Store, a.Orchestrator)
	log.Info().Str("worker_id", r.WorkerID()).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")

	// Re-queue processes orphaned by crashed workers before claiming new ones.
	r.RecoverStaleProcesses(ctx)

	if err := r.RunForever(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker")
	}
	log.Info().Msg("worker stopped")
}

// serveHTTP exposes /healthz, which pings the database with a 2s timeout, and
// /metrics.
func serveHTTP(ctx context.Context, addr string, store *db.Store) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		dbCtx, dbCancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer dbCancel()
		w.Header().Set("Content-Type", "application/json")
		if err := store.Ping(dbCtx); err != nil {
			log.Warn().Err(err).Msg("healthz: db ping failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","reason":"db unreachable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	s := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(shctx)
	}()
	log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("http server")
	}
}
