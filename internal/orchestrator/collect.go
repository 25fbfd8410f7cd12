package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/model"
)

// SourceResult is the settled outcome of one data source: a bundle, an
// error, or a skip with its reason.
type SourceResult struct {
	Source  checks.Source
	Bundle  *model.Bundle
	Err     error
	Skipped string
}

// collect calls every provider concurrently and waits for all of them, then
// runs the derived providers over the settled results. The slice follows
// provider order, derived sources last.
func (o *Orchestrator) collect(ctx context.Context, token model.Token) []SourceResult {
	results := make([]SourceResult, len(o.providers))

	var g errgroup.Group
	for i, p := range o.providers {
		results[i].Source = p.Source()
		if !p.Supports(token.Chain) {
			results[i].Skipped = fmt.Sprintf("%s does not support %s tokens", p.Source(), token.Chain)
			continue
		}
		g.Go(func() error {
			results[i] = fetch(ctx, p, token)
			return nil
		})
	}
	_ = g.Wait()

	bySource := make(map[checks.Source]SourceResult, len(results))
	for _, r := range results {
		bySource[r.Source] = r
	}
	for _, d := range o.derived {
		results = append(results, derive(d, token, bySource[d.Base()]))
	}
	return results
}

func fetch(ctx context.Context, p Provider, token model.Token) (res SourceResult) {
	res.Source = p.Source()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("source", p.Source().String()).Msg("orchestrator: provider panicked")
			res = SourceResult{Source: p.Source(), Err: fmt.Errorf("provider panic: %v", r)}
		}
	}()

	b, err := p.Fetch(ctx, token)
	switch {
	case err != nil:
		res.Err = err
	case b == nil:
		res.Err = fmt.Errorf("%s returned no data", p.Source())
	default:
		res.Bundle = b
	}
	return res
}

func derive(d DerivedProvider, token model.Token, base SourceResult) SourceResult {
	res := SourceResult{Source: d.Source()}
	switch {
	case base.Source == "":
		res.Skipped = fmt.Sprintf("%s requires %s, which is not configured", d.Source(), d.Base())
	case base.Skipped != "":
		res.Skipped = fmt.Sprintf("%s requires %s: %s", d.Source(), d.Base(), base.Skipped)
	case base.Err != nil:
		res.Err = fmt.Errorf("%s unavailable: %w", d.Base(), base.Err)
	default:
		b, err := d.Derive(token, base.Bundle)
		if err != nil {
			res.Err = err
		} else {
			res.Bundle = b
		}
	}
	return res
}

// fold turns the settled results into one row per automatic check type.
// Sources with no provider at all are recorded as SKIPPED so the catalog is
// always fully covered.
func fold(processID uuid.UUID, results []SourceResult, now time.Time) ([]model.CheckResult, []SourceError) {
	var rows []model.CheckResult
	var errs []SourceError
	seen := map[checks.Source]bool{}

	for _, r := range results {
		seen[r.Source] = true
		defs := checks.Automatic.BySource(r.Source)
		switch {
		case r.Skipped != "":
			for _, def := range defs {
				rows = append(rows, skipped(processID, def, r.Skipped, now))
			}
		case r.Err != nil:
			errs = append(errs, SourceError{Source: r.Source, Error: r.Err.Error()})
			for _, def := range defs {
				rows = append(rows, model.CheckResult{
					ProcessID: processID,
					CheckType: def.Type,
					Status:    model.CheckFailed,
					Severity:  def.Severity,
					Details:   fmt.Sprintf("%s failed: %v", r.Source, r.Err),
					CheckedAt: now,
				})
			}
		default:
			for _, def := range defs {
				entry, ok := r.Bundle.Checks[def.Type]
				if !ok {
					rows = append(rows, skipped(processID, def, "Not reported by "+r.Source.String(), now))
					continue
				}
				rows = append(rows, fromEntry(processID, def, entry, now))
			}
			for ct := range r.Bundle.Checks {
				if def, ok := checks.Automatic.Lookup(ct); !ok || def.Source != r.Source {
					log.Debug().Str("source", r.Source.String()).Str("check", ct.String()).Msg("orchestrator: ignoring check outside source catalog")
				}
			}
		}
	}

	for _, src := range checks.Automatic.Sources() {
		if seen[src] {
			continue
		}
		for _, def := range checks.Automatic.BySource(src) {
			rows = append(rows, skipped(processID, def, "No "+src.String()+" provider configured", now))
		}
	}
	return rows, errs
}

func skipped(processID uuid.UUID, def checks.Definition, reason string, now time.Time) model.CheckResult {
	return model.CheckResult{
		ProcessID: processID,
		CheckType: def.Type,
		Status:    model.CheckSkipped,
		Severity:  def.Severity,
		Details:   reason,
		CheckedAt: now,
	}
}

// fromEntry persists an undecidable entry as SKIPPED and a decided one as
// COMPLETED.
func fromEntry(processID uuid.UUID, def checks.Definition, e model.CheckEntry, now time.Time) model.CheckResult {
	r := model.CheckResult{
		ProcessID: processID,
		CheckType: def.Type,
		Status:    model.CheckSkipped,
		Outcome:   e.Outcome,
		Severity:  def.Severity,
		Details:   e.Details,
		CheckedAt: now,
	}
	if e.Severity.Valid() {
		r.Severity = e.Severity
	}
	if e.Value != nil {
		if raw, err := json.Marshal(e.Value); err == nil {
			r.RawValue = raw
		}
	}
	if e.Outcome.Decided() {
		r.Status = model.CheckCompleted
		score := 0.0
		if e.Outcome == model.Passed {
			score = 100
		}
		r.Score = &score
	} else {
		r.Outcome = model.Undecidable
		if r.Details == "" {
			r.Details = "Not enough data to evaluate"
		}
	}
	return r
}
