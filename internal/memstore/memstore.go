// Package memstore is an in-memory implementation of the process store used
// by tests and by dry runs of the CLI.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/model"
)

type Store struct {
	mu        sync.Mutex
	tokens    map[uuid.UUID]model.Token
	processes map[uuid.UUID]model.Process
	checks    map[uuid.UUID]map[checks.Type]model.CheckResult
	manual    map[uuid.UUID]map[checks.Type]model.CheckResult
	flags     map[uuid.UUID]model.Flags
	activity  map[uuid.UUID][]model.Activity
	heartbeat map[uuid.UUID]time.Time
	now       func() time.Time
}

func New() *Store {
	return &Store{
		tokens:    map[uuid.UUID]model.Token{},
		processes: map[uuid.UUID]model.Process{},
		checks:    map[uuid.UUID]map[checks.Type]model.CheckResult{},
		manual:    map[uuid.UUID]map[checks.Type]model.CheckResult{},
		flags:     map[uuid.UUID]model.Flags{},
		activity:  map[uuid.UUID][]model.Activity{},
		heartbeat: map[uuid.UUID]time.Time{},
		now:       time.Now,
	}
}

// SetClock replaces the time source used for timestamps and staleness.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// AddToken stores t, assigning an id when it has none.
func (s *Store) AddToken(t model.Token) model.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	s.tokens[t.ID] = t
	return t
}

// AddProcess stores a PENDING process for the token.
func (s *Store) AddProcess(tokenID uuid.UUID) model.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.Process{
		ID:        uuid.New(),
		TokenID:   tokenID,
		Status:    model.ProcessPending,
		CreatedAt: s.now().UTC(),
	}
	s.processes[p.ID] = p
	return p
}

func (s *Store) GetProcess(_ context.Context, id uuid.UUID) (*model.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetToken(_ context.Context, id uuid.UUID) (*model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &t, nil
}

func (s *Store) UpdateTokenInfo(_ context.Context, id uuid.UUID, info model.TokenInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return model.ErrNotFound
	}
	t.Name, t.Symbol = info.Name, info.Symbol
	s.tokens[id] = t
	return nil
}

func (s *Store) SetProcessStatus(_ context.Context, id uuid.UUID, status model.ProcessStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[id]
	if !ok {
		return model.ErrNotFound
	}
	s.setStatus(&p, status)
	s.processes[id] = p
	return nil
}

func (s *Store) setStatus(p *model.Process, status model.ProcessStatus) {
	now := s.now().UTC()
	p.Status = status
	switch status {
	case model.ProcessRunning:
		p.StartedAt = &now
		p.FinishedAt = nil
		p.ErrorMsg = nil
		s.heartbeat[p.ID] = now
	case model.ProcessPending:
		p.StartedAt = nil
		p.WorkerID = nil
	default:
		p.FinishedAt = &now
	}
}

func (s *Store) UpsertCheck(_ context.Context, r model.CheckResult) error {
	return s.upsert(s.checks, r)
}

// UpsertManualCheck records a reviewer verdict.
func (s *Store) UpsertManualCheck(_ context.Context, r model.CheckResult) error {
	return s.upsert(s.manual, r)
}

func (s *Store) upsert(into map[uuid.UUID]map[checks.Type]model.CheckResult, r model.CheckResult) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processes[r.ProcessID]; !ok {
		return model.ErrNotFound
	}
	rows, ok := into[r.ProcessID]
	if !ok {
		rows = map[checks.Type]model.CheckResult{}
		into[r.ProcessID] = rows
	}
	rows[r.CheckType] = r
	return nil
}

func (s *Store) FindChecks(_ context.Context, processID uuid.UUID) ([]model.CheckResult, error) {
	return s.list(s.checks, processID), nil
}

func (s *Store) FindManualChecks(_ context.Context, processID uuid.UUID) ([]model.CheckResult, error) {
	return s.list(s.manual, processID), nil
}

func (s *Store) list(from map[uuid.UUID]map[checks.Type]model.CheckResult, processID uuid.UUID) []model.CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CheckResult, 0, len(from[processID]))
	for _, r := range from[processID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckType < out[j].CheckType })
	return out
}

func (s *Store) UpdateProcess(_ context.Context, processID uuid.UUID, u model.ProcessUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[processID]
	if !ok {
		return model.ErrNotFound
	}
	if u.Status != p.Status {
		s.setStatus(&p, u.Status)
	}
	p.AutomaticScore = u.AutomaticScore
	p.ManualScore = u.ManualScore
	p.OverallScore = u.OverallScore
	p.RiskLevel = u.RiskLevel
	s.processes[processID] = p
	return nil
}

func (s *Store) ReplaceFlags(_ context.Context, processID uuid.UUID, flags model.Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[processID] = model.Flags{
		Red:   append([]model.RedFlag(nil), flags.Red...),
		Green: append([]model.GreenFlag(nil), flags.Green...),
	}
	return nil
}

func (s *Store) AppendActivity(_ context.Context, processID uuid.UUID, a model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[processID] = append(s.activity[processID], a)
	return nil
}

// Flags returns the current flag set of a process.
func (s *Store) Flags(processID uuid.UUID) model.Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[processID]
}

func (s *Store) Activity(processID uuid.UUID) []model.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Activity(nil), s.activity[processID]...)
}

// AcquireNextPending claims the oldest PENDING process for workerID. It
// returns nil when the queue is empty.
func (s *Store) AcquireNextPending(_ context.Context, workerID string) (*model.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *model.Process
	for _, p := range s.processes {
		if p.Status != model.ProcessPending {
			continue
		}
		if next == nil || p.CreatedAt.Before(next.CreatedAt) {
			p := p
			next = &p
		}
	}
	if next == nil {
		return nil, nil
	}
	s.setStatus(next, model.ProcessRunning)
	next.WorkerID = &workerID
	s.processes[next.ID] = *next
	return next, nil
}

func (s *Store) Heartbeat(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processes[id]; !ok {
		return model.ErrNotFound
	}
	s.heartbeat[id] = s.now().UTC()
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id uuid.UUID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[id]
	if !ok {
		return model.ErrNotFound
	}
	if p.Status != model.ProcessPending && p.Status != model.ProcessRunning {
		return nil
	}
	s.setStatus(&p, model.ProcessFailed)
	p.ErrorMsg = &msg
	s.processes[id] = p
	return nil
}

// RequeueStaleRunning puts RUNNING processes without a recent heartbeat back
// on the queue.
func (s *Store) RequeueStaleRunning(_ context.Context, idleFor time.Duration) ([]uuid.UUID, error) {
	if idleFor <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-idleFor)
	var ids []uuid.UUID
	for id, p := range s.processes {
		if p.Status != model.ProcessRunning {
			continue
		}
		if s.heartbeat[id].Before(cutoff) {
			s.setStatus(&p, model.ProcessPending)
			s.processes[id] = p
			ids = append(ids, id)
		}
	}
	return ids, nil
}
