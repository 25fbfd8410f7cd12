package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/metrics"
	"github.com/yourorg/vetting-worker/internal/model"
	"github.com/yourorg/vetting-worker/internal/orchestrator"
)

// Queue is the process queue the runner claims work from.
type Queue interface {
	AcquireNextPending(ctx context.Context, workerID string) (*model.Process, error)
	Heartbeat(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	RequeueStaleRunning(ctx context.Context, idleFor time.Duration) ([]uuid.UUID, error)
}

// Vetter runs the checks of one claimed process.
type Vetter interface {
	RunChecks(ctx context.Context, processID uuid.UUID) (*orchestrator.RunResult, error)
}

type Runner struct {
	cfg      config.Config
	queue    Queue
	vetter   Vetter
	workerID string
}

func NewRunner(cfg config.Config, q Queue, v Vetter) *Runner {
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}
	id := fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
	return &Runner{cfg: cfg, queue: q, vetter: v, workerID: id}
}

func (r *Runner) WorkerID() string { return r.workerID }

func (r *Runner) processOne(ctx context.Context, p *model.Process) {
	logger := log.With().Str("process_id", p.ID.String()).Str("worker_id", r.workerID).Logger()
	logger.Info().Msg("worker: process claimed")

	stop := Heartbeat(ctx, r.queue, p.ID, r.cfg.HeartbeatInterval)
	res, err := r.vetter.RunChecks(ctx, p.ID)
	stop()

	if err != nil {
		logger.Error().Err(err).Msg("worker: run failed")
		dbctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if mErr := r.queue.MarkFailed(dbctx, p.ID, err.Error()); mErr != nil {
			logger.Error().Err(mErr).Msg("worker: mark failed error")
		}
		return
	}
	ev := logger.Info().Str("status", string(res.Status)).Int("source_errors", len(res.Errors))
	if res.OverallScore != nil {
		ev = ev.Float64("overall_score", *res.OverallScore)
	}
	ev.Msg("worker: process finished")
}

// RecoverStaleProcesses re-queues RUNNING processes orphaned by crashed
// workers.
func (r *Runner) RecoverStaleProcesses(ctx context.Context) {
	ids, err := r.queue.RequeueStaleRunning(ctx, r.cfg.StaleAfter)
	if err != nil {
		log.Warn().Err(err).Msg("worker: stale recovery failed")
		return
	}
	if len(ids) > 0 {
		log.Info().Int("count", len(ids)).Msg("worker: re-queued stale processes")
	}
}

// RunForever claims and runs processes until ctx is cancelled, then waits for
// in-flight runs to finish.
func (r *Runner) RunForever(ctx context.Context) error {
	sem := make(chan struct{}, r.cfg.WorkerConcurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	minBackoff := max(r.cfg.PollInterval/4, time.Millisecond)
	backoff := minBackoff
	lastRecovery := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case sem <- struct{}{}:
		}

		if r.cfg.StaleAfter > 0 && time.Since(lastRecovery) > r.cfg.StaleAfter/2 {
			r.RecoverStaleProcesses(ctx)
			lastRecovery = time.Now()
		}

		p, err := r.queue.AcquireNextPending(ctx, r.workerID)
		if err != nil || p == nil {
			<-sem
			if err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("worker: acquire failed")
			}
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, r.cfg.PollInterval)
			continue
		}
		backoff = minBackoff
		metrics.WorkerProcessesClaimed.Inc()

		wg.Add(1)
		metrics.WorkerInFlight.Inc()
		go func(p *model.Process) {
			defer func() {
				metrics.WorkerInFlight.Dec()
				<-sem
				wg.Done()
			}()
			r.processOne(ctx, p)
		}(p)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
