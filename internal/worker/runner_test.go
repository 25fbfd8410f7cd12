package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/memstore"
	"github.com/yourorg/vetting-worker/internal/model"
	"github.com/yourorg/vetting-worker/internal/orchestrator"
)

type fakeVetter struct {
	store *memstore.Store
	fail  map[uuid.UUID]bool

	mu       sync.Mutex
	ran      []uuid.UUID
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeVetter) RunChecks(ctx context.Context, id uuid.UUID) (*orchestrator.RunResult, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.ran = append(f.ran, id)
	f.mu.Unlock()

	if f.fail[id] {
		return nil, errors.New("token not found")
	}
	if err := f.store.UpdateProcess(ctx, id, model.ProcessUpdate{Status: model.ProcessAutoComplete}); err != nil {
		return nil, err
	}
	return &orchestrator.RunResult{ProcessID: id, Status: model.ProcessAutoComplete}, nil
}

func (f *fakeVetter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ran)
}

func testConfig() config.Config {
	return config.Config{
		WorkerConcurrency: 2,
		PollInterval:      10 * time.Millisecond,
		StaleAfter:        time.Minute,
		HeartbeatInterval: time.Second,
	}
}

func TestRunner_DrainsQueue(t *testing.T) {
	store := memstore.New()
	tok := store.AddToken(model.Token{Chain: model.ChainSolana, Address: "Mint111"})
	var ids []uuid.UUID
	for i := 0; i < 6; i++ {
		ids = append(ids, store.AddProcess(tok.ID).ID)
	}
	v := &fakeVetter{store: store, fail: map[uuid.UUID]bool{ids[2]: true}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	r := NewRunner(testConfig(), store, v)
	go func() { done <- r.RunForever(ctx) }()

	require.Eventually(t, func() bool { return v.count() == len(ids) }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.LessOrEqual(t, v.peak.Load(), int32(2))
	for i, id := range ids {
		p, err := store.GetProcess(context.Background(), id)
		require.NoError(t, err)
		if i == 2 {
			assert.Equal(t, model.ProcessFailed, p.Status)
			require.NotNil(t, p.ErrorMsg)
			assert.Equal(t, "token not found", *p.ErrorMsg)
			continue
		}
		assert.Equal(t, model.ProcessAutoComplete, p.Status)
		require.NotNil(t, p.WorkerID)
		assert.Equal(t, r.WorkerID(), *p.WorkerID)
	}
}

func TestRunner_StopsWhenIdle(t *testing.T) {
	r := NewRunner(testConfig(), memstore.New(), &fakeVetter{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, r.RunForever(ctx))
}

func TestRecoverStaleProcesses(t *testing.T) {
	store := memstore.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	tok := store.AddToken(model.Token{Chain: model.ChainBase, Address: "0xabc"})
	proc := store.AddProcess(tok.ID)
	_, err := store.AcquireNextPending(context.Background(), "dead-worker")
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	r := NewRunner(testConfig(), store, &fakeVetter{})
	r.RecoverStaleProcesses(context.Background())

	p, err := store.GetProcess(context.Background(), proc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProcessPending, p.Status)
	assert.Nil(t, p.WorkerID)
}

type countingQueue struct{ beats atomic.Int32 }

func (q *countingQueue) Heartbeat(context.Context, uuid.UUID) error {
	q.beats.Add(1)
	return nil
}

func TestHeartbeat(t *testing.T) {
	q := &countingQueue{}
	stop := Heartbeat(context.Background(), q, uuid.New(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return q.beats.Load() >= 2 }, time.Second, time.Millisecond)
	stop()
	n := q.beats.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, q.beats.Load())

	Heartbeat(context.Background(), q, uuid.New(), 0)()
}
