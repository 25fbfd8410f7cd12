package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type heartbeater interface {
	Heartbeat(ctx context.Context, id uuid.UUID) error
}

// Heartbeat touches the process every interval until the returned stop func
// is called, so stale recovery leaves live runs alone.
func Heartbeat(ctx context.Context, q heartbeater, id uuid.UUID, interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := q.Heartbeat(ctx, id); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Str("process_id", id.String()).Msg("worker: heartbeat failed")
				}
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
