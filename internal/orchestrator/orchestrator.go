// Package orchestrator runs every applicable data source against a token,
// persists one row per known check type and rescores the process.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/metrics"
	"github.com/yourorg/vetting-worker/internal/model"
	"github.com/yourorg/vetting-worker/internal/scoring"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrTokenNotFound   = errors.New("token not found")
	ErrProcessTerminal = errors.New("process is in a terminal state")
)

// Repository is the persistence contract of the orchestrator. Lookups return
// model.ErrNotFound for missing rows.
type Repository interface {
	GetProcess(ctx context.Context, id uuid.UUID) (*model.Process, error)
	GetToken(ctx context.Context, id uuid.UUID) (*model.Token, error)
	UpdateTokenInfo(ctx context.Context, id uuid.UUID, info model.TokenInfo) error
	SetProcessStatus(ctx context.Context, id uuid.UUID, status model.ProcessStatus) error
	UpsertCheck(ctx context.Context, r model.CheckResult) error
	FindChecks(ctx context.Context, processID uuid.UUID) ([]model.CheckResult, error)
	FindManualChecks(ctx context.Context, processID uuid.UUID) ([]model.CheckResult, error)
	UpdateProcess(ctx context.Context, processID uuid.UUID, u model.ProcessUpdate) error
	// ReplaceFlags swaps the complete flag set atomically.
	ReplaceFlags(ctx context.Context, processID uuid.UUID, flags model.Flags) error
	AppendActivity(ctx context.Context, processID uuid.UUID, a model.Activity) error
}

// Provider is a data source that calls out to the network.
type Provider interface {
	Source() checks.Source
	Supports(chain model.Chain) bool
	Fetch(ctx context.Context, token model.Token) (*model.Bundle, error)
}

// DerivedProvider builds its bundle from another source's bundle in the same
// run instead of making its own call.
type DerivedProvider interface {
	Source() checks.Source
	Base() checks.Source
	Derive(token model.Token, base *model.Bundle) (*model.Bundle, error)
}

// Archiver stores raw provider payloads for audit.
type Archiver interface {
	ArchivePayload(ctx context.Context, processID uuid.UUID, source checks.Source, raw []byte) error
}

// SourceError is a data source failure absorbed by a run.
type SourceError struct {
	Source checks.Source `json:"source"`
	Error  string        `json:"error"`
}

// RunResult is what a run reports back to its caller.
type RunResult struct {
	ProcessID      uuid.UUID
	Status         model.ProcessStatus
	AutomaticScore *float64
	ManualScore    *float64
	OverallScore   *float64
	RiskLevel      *model.RiskLevel
	Flags          model.Flags
	Errors         []SourceError
}

type Orchestrator struct {
	repo      Repository
	providers []Provider
	derived   []DerivedProvider
	archiver  Archiver
	now       func() time.Time
}

type Option func(*Orchestrator)

func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(repo Repository, providers []Provider, derived []DerivedProvider, opts ...Option) *Orchestrator {
	o := &Orchestrator{repo: repo, providers: providers, derived: derived, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// load resolves the process and its token, failing on any precondition.
func (o *Orchestrator) load(ctx context.Context, processID uuid.UUID) (*model.Process, *model.Token, error) {
	proc, err := o.repo.GetProcess(ctx, processID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrProcessNotFound, processID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load process: %w", err)
	}
	token, err := o.repo.GetToken(ctx, proc.TokenID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrTokenNotFound, proc.TokenID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load token: %w", err)
	}
	return proc, token, nil
}

// RunChecks runs every data source for the process's token and rescores it.
// Source failures are absorbed into FAILED rows; only precondition and
// persistence errors are returned.
func (o *Orchestrator) RunChecks(ctx context.Context, processID uuid.UUID) (*RunResult, error) {
	proc, token, err := o.load(ctx, processID)
	if err != nil {
		return nil, err
	}
	if proc.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrProcessTerminal, processID, proc.Status)
	}
	if !token.Chain.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownChain, token.Chain)
	}

	start := o.now()
	if proc.Status != model.ProcessRunning {
		if err := o.repo.SetProcessStatus(ctx, processID, model.ProcessRunning); err != nil {
			return nil, fmt.Errorf("mark running: %w", err)
		}
	}

	logger := log.With().Str("process_id", processID.String()).Str("chain", token.Chain.String()).Str("token", token.Address).Logger()
	logger.Info().Int("providers", len(o.providers)).Msg("orchestrator: run started")

	results := o.collect(ctx, *token)
	rows, srcErrs := fold(processID, results, o.now().UTC())

	for _, r := range rows {
		if err := o.repo.UpsertCheck(ctx, r); err != nil {
			return nil, fmt.Errorf("upsert %s: %w", r.CheckType, err)
		}
	}
	for _, se := range srcErrs {
		metrics.SourceErrors.WithLabelValues(se.Source.String()).Inc()
		logger.Warn().Str("source", se.Source.String()).Str("error", se.Error).Msg("orchestrator: source failed")
	}

	res, err := o.score(ctx, processID, proc.Status, true)
	if err != nil {
		return nil, err
	}
	res.Errors = srcErrs

	passed := 0
	for _, r := range rows {
		metrics.CheckResults.WithLabelValues(sourceOf(r.CheckType).String(), string(r.Status)).Inc()
		if r.Outcome == model.Passed {
			passed++
		}
	}
	elapsed := o.now().Sub(start)
	o.appendActivity(ctx, processID, model.Activity{
		Kind:         "checks_run",
		Summary:      fmt.Sprintf("Ran %d checks, %d passed, %d source errors", len(rows), passed, len(srcErrs)),
		ChecksRun:    len(rows),
		ChecksPassed: passed,
		ErrorCount:   len(srcErrs),
		Details: map[string]any{
			"errors":      srcErrs,
			"duration_ms": elapsed.Milliseconds(),
			"status":      res.Status,
		},
		At: o.now().UTC(),
	})

	o.backfillToken(ctx, token, results)
	o.archive(ctx, processID, results)

	outcome := "ok"
	if len(srcErrs) > 0 {
		outcome = "partial"
	}
	metrics.RunsTotal.WithLabelValues(token.Chain.String(), outcome).Inc()
	metrics.RunDuration.WithLabelValues(token.Chain.String()).Observe(elapsed.Seconds())

	logger.Info().
		Int("checks", len(rows)).
		Int("passed", passed).
		Int("errors", len(srcErrs)).
		Str("status", string(res.Status)).
		Msg("orchestrator: run complete")
	return res, nil
}

// Rescore recomputes scores and flags from the stored rows without calling
// any data source, e.g. after a manual review was recorded.
func (o *Orchestrator) Rescore(ctx context.Context, processID uuid.UUID) (*RunResult, error) {
	proc, err := o.repo.GetProcess(ctx, processID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, processID)
	}
	if err != nil {
		return nil, fmt.Errorf("load process: %w", err)
	}
	res, err := o.score(ctx, processID, proc.Status, false)
	if err != nil {
		return nil, err
	}
	o.appendActivity(ctx, processID, model.Activity{
		Kind:    "rescored",
		Summary: "Scores and flags recomputed from stored checks",
		Details: map[string]any{"status": res.Status},
		At:      o.now().UTC(),
	})
	return res, nil
}

// Decide records the reviewer's verdict.
func (o *Orchestrator) Decide(ctx context.Context, processID uuid.UUID, verdict model.ProcessStatus, note string) error {
	if verdict != model.ProcessApproved && verdict != model.ProcessRejected {
		return fmt.Errorf("verdict must be %s or %s, got %s", model.ProcessApproved, model.ProcessRejected, verdict)
	}
	proc, err := o.repo.GetProcess(ctx, processID)
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, processID)
	}
	if err != nil {
		return fmt.Errorf("load process: %w", err)
	}
	if !proc.Status.CanTransition(verdict) {
		return fmt.Errorf("cannot move process from %s to %s", proc.Status, verdict)
	}
	if err := o.repo.SetProcessStatus(ctx, processID, verdict); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	o.appendActivity(ctx, processID, model.Activity{
		Kind:    "decision",
		Summary: fmt.Sprintf("Process %s", verdict),
		Details: map[string]any{"note": note},
		At:      o.now().UTC(),
	})
	return nil
}

// score reads every stored row, evaluates it and writes the scores and flags
// back. A fresh run settles the status on AUTO_COMPLETE or IN_REVIEW.
func (o *Orchestrator) score(ctx context.Context, processID uuid.UUID, current model.ProcessStatus, settle bool) (*RunResult, error) {
	automatic, err := o.repo.FindChecks(ctx, processID)
	if err != nil {
		return nil, fmt.Errorf("find checks: %w", err)
	}
	manual, err := o.repo.FindManualChecks(ctx, processID)
	if err != nil {
		return nil, fmt.Errorf("find manual checks: %w", err)
	}
	ev := scoring.Evaluate(automatic, manual)

	status := current
	if settle || current == model.ProcessAutoComplete || current == model.ProcessInReview {
		status = model.ProcessAutoComplete
		if len(manual) > 0 {
			status = model.ProcessInReview
		}
	}

	upd := model.ProcessUpdate{
		Status:         status,
		AutomaticScore: ev.AutomaticScore,
		ManualScore:    ev.ManualScore,
		OverallScore:   ev.OverallScore,
		RiskLevel:      ev.RiskLevel,
	}
	if err := o.repo.UpdateProcess(ctx, processID, upd); err != nil {
		return nil, fmt.Errorf("update process: %w", err)
	}
	if err := o.repo.ReplaceFlags(ctx, processID, ev.Flags); err != nil {
		return nil, fmt.Errorf("replace flags: %w", err)
	}
	return &RunResult{
		ProcessID:      processID,
		Status:         status,
		AutomaticScore: ev.AutomaticScore,
		ManualScore:    ev.ManualScore,
		OverallScore:   ev.OverallScore,
		RiskLevel:      ev.RiskLevel,
		Flags:          ev.Flags,
	}, nil
}

func (o *Orchestrator) appendActivity(ctx context.Context, processID uuid.UUID, a model.Activity) {
	if err := o.repo.AppendActivity(ctx, processID, a); err != nil {
		log.Warn().Err(err).Str("process_id", processID.String()).Msg("orchestrator: append activity failed")
	}
}

// backfillToken fills a missing name or symbol from the first bundle, in
// source order, that echoes one.
func (o *Orchestrator) backfillToken(ctx context.Context, token *model.Token, results []SourceResult) {
	if token.Name != "" && token.Symbol != "" {
		return
	}
	info := model.TokenInfo{Name: token.Name, Symbol: token.Symbol}
	for _, r := range results {
		if r.Bundle == nil || r.Bundle.Token.Empty() {
			continue
		}
		if info.Name == "" {
			info.Name = r.Bundle.Token.Name
		}
		if info.Symbol == "" {
			info.Symbol = r.Bundle.Token.Symbol
		}
		if info.Name != "" && info.Symbol != "" {
			break
		}
	}
	if info.Name == token.Name && info.Symbol == token.Symbol {
		return
	}
	if err := o.repo.UpdateTokenInfo(ctx, token.ID, info); err != nil {
		log.Warn().Err(err).Str("token_id", token.ID.String()).Msg("orchestrator: token backfill failed")
	}
}

func (o *Orchestrator) archive(ctx context.Context, processID uuid.UUID, results []SourceResult) {
	if o.archiver == nil {
		return
	}
	for _, r := range results {
		if r.Bundle == nil || len(r.Bundle.Raw) == 0 {
			continue
		}
		if err := o.archiver.ArchivePayload(ctx, processID, r.Source, r.Bundle.Raw); err != nil {
			log.Warn().Err(err).Str("source", r.Source.String()).Msg("orchestrator: archive payload failed")
		}
	}
}

func sourceOf(ct checks.Type) checks.Source {
	if def, ok := checks.Automatic.Lookup(ct); ok {
		return def.Source
	}
	return checks.SourceManual
}
