package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/vetting-worker/internal/checks"
)

// ErrInvalidCheckState marks a check result that violates the status/outcome rules.
var ErrInvalidCheckState = errors.New("invalid check state")

// Outcome is the tri-state verdict of a check. The zero value is Undecidable
// so an unset outcome can never read as a pass or a fail.
type Outcome int

const (
	Undecidable Outcome = iota
	Passed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	}
	return "undecidable"
}

// Decided reports whether the outcome is a pass or a fail.
func (o Outcome) Decided() bool {
	return o == Passed || o == Failed
}

// Bool converts to the nullable storage form.
func (o Outcome) Bool() *bool {
	switch o {
	case Passed:
		v := true
		return &v
	case Failed:
		v := false
		return &v
	}
	return nil
}

// OutcomeOf converts a nullable stored verdict.
func OutcomeOf(passed *bool) Outcome {
	if passed == nil {
		return Undecidable
	}
	if *passed {
		return Passed
	}
	return Failed
}

// PassIf is a convenience for threshold checks.
func PassIf(ok bool) Outcome {
	if ok {
		return Passed
	}
	return Failed
}

type CheckStatus string

const (
	CheckCompleted CheckStatus = "COMPLETED"
	CheckFailed    CheckStatus = "FAILED"
	CheckSkipped   CheckStatus = "SKIPPED"
)

// CheckResult is one stored check row, automatic or manual.
type CheckResult struct {
	ProcessID uuid.UUID
	CheckType checks.Type
	Status    CheckStatus
	Outcome   Outcome
	Score     *float64
	Severity  checks.Severity
	Details   string
	RawValue  json.RawMessage
	CheckedAt time.Time
}

// Validate enforces that only completed checks carry a decided outcome and
// that a completed check always has one.
func (r CheckResult) Validate() error {
	switch r.Status {
	case CheckCompleted:
		if !r.Outcome.Decided() {
			return fmt.Errorf("%w: %s completed without a verdict", ErrInvalidCheckState, r.CheckType)
		}
	case CheckFailed, CheckSkipped:
		if r.Outcome.Decided() {
			return fmt.Errorf("%w: %s is %s but carries verdict %s", ErrInvalidCheckState, r.CheckType, r.Status, r.Outcome)
		}
	default:
		return fmt.Errorf("%w: %s has unknown status %q", ErrInvalidCheckState, r.CheckType, r.Status)
	}
	return nil
}

type FlagSource string

const (
	FlagAutomatic FlagSource = "automatic"
	FlagManual    FlagSource = "manual"
)

type RedFlag struct {
	CheckType checks.Type
	Message   string
	Severity  checks.Severity
	Source    FlagSource
}

type GreenFlag struct {
	CheckType checks.Type
	Message   string
	Source    FlagSource
}

// Flags is the derived flag set of one scoring pass.
type Flags struct {
	Red   []RedFlag
	Green []GreenFlag
}
