// Package scoring turns stored check rows into scores, a risk tier and flags.
// Everything here is pure: no I/O, same input always yields the same output.
package scoring

import (
	"math"
	"sort"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/model"
)

const (
	automaticShare = 0.4
	manualShare    = 0.6
)

// Risk tier thresholds, inclusive lower bounds.
const (
	lowRiskMin    = 80
	mediumRiskMin = 60
	highRiskMin   = 40
)

// Result is the outcome of one scoring pass.
type Result struct {
	AutomaticScore *float64
	ManualScore    *float64
	OverallScore   *float64
	RiskLevel      *model.RiskLevel
	Flags          model.Flags
}

// Evaluate scores the automatic and manual check sets and regenerates the
// complete flag list.
func Evaluate(automatic, manual []model.CheckResult) Result {
	auto := WeightedScore(automatic, checks.Automatic)
	man := WeightedScore(manual, checks.Manual)
	overall := OverallScore(auto, man)

	red := append(RedFlags(automatic, checks.Automatic, model.FlagAutomatic),
		RedFlags(manual, checks.Manual, model.FlagManual)...)
	green := append(GreenFlags(automatic, checks.Automatic, model.FlagAutomatic),
		GreenFlags(manual, checks.Manual, model.FlagManual)...)

	return Result{
		AutomaticScore: auto,
		ManualScore:    man,
		OverallScore:   overall,
		RiskLevel:      RiskLevelFor(overall),
		Flags:          model.Flags{Red: red, Green: green},
	}
}

// WeightedScore returns round(100 * earned / total) over completed checks known
// to the taxonomy, or nil when no such check exists.
func WeightedScore(results []model.CheckResult, tax *checks.Taxonomy) *float64 {
	var total, earned float64
	for _, r := range results {
		if r.Status != model.CheckCompleted {
			continue
		}
		def, ok := tax.Lookup(r.CheckType)
		if !ok {
			continue
		}
		w := def.EffectiveWeight()
		total += w
		if r.Outcome == model.Passed {
			earned += w
		}
	}
	if total == 0 {
		return nil
	}
	score := math.Round(100 * earned / total)
	return &score
}

// OverallScore blends the two component scores, falling back to whichever one
// exists.
func OverallScore(automatic, manual *float64) *float64 {
	var v float64
	switch {
	case automatic != nil && manual != nil:
		v = math.Round(automaticShare*(*automatic) + manualShare*(*manual))
	case automatic != nil:
		v = *automatic
	case manual != nil:
		v = *manual
	default:
		return nil
	}
	return &v
}

func RiskLevelFor(score *float64) *model.RiskLevel {
	if score == nil {
		return nil
	}
	var lvl model.RiskLevel
	switch s := *score; {
	case s >= lowRiskMin:
		lvl = model.RiskLow
	case s >= mediumRiskMin:
		lvl = model.RiskMedium
	case s >= highRiskMin:
		lvl = model.RiskHigh
	default:
		lvl = model.RiskExtreme
	}
	return &lvl
}

// RedFlags emits one flag per completed, failed check of CRITICAL or HIGH
// severity, ordered by check type.
func RedFlags(results []model.CheckResult, tax *checks.Taxonomy, src model.FlagSource) []model.RedFlag {
	var out []model.RedFlag
	for _, r := range sortedByType(results) {
		if r.Status != model.CheckCompleted || r.Outcome != model.Failed {
			continue
		}
		def, known := tax.Lookup(r.CheckType)
		sev := r.Severity
		if !sev.Valid() && known {
			sev = def.Severity
		}
		if !sev.Flaggable() {
			continue
		}
		msg := r.Details
		if msg == "" {
			msg = def.Title + " failed"
			if !known {
				msg = string(r.CheckType) + " failed"
			}
		}
		out = append(out, model.RedFlag{CheckType: r.CheckType, Message: msg, Severity: sev, Source: src})
	}
	return out
}

// GreenFlags emits one flag per passing check on the taxonomy's notable
// allow-list, ordered by check type.
func GreenFlags(results []model.CheckResult, tax *checks.Taxonomy, src model.FlagSource) []model.GreenFlag {
	var out []model.GreenFlag
	for _, r := range sortedByType(results) {
		if r.Status != model.CheckCompleted || r.Outcome != model.Passed {
			continue
		}
		def, ok := tax.Lookup(r.CheckType)
		if !ok || def.GreenFlag == "" {
			continue
		}
		out = append(out, model.GreenFlag{CheckType: r.CheckType, Message: def.GreenFlag, Source: src})
	}
	return out
}

func sortedByType(results []model.CheckResult) []model.CheckResult {
	out := append([]model.CheckResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckType < out[j].CheckType })
	return out
}
