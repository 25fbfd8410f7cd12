package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories for a missing row.
var ErrNotFound = errors.New("not found")

type Token struct {
	ID        uuid.UUID
	Chain     Chain
	Address   string
	Name      string
	Symbol    string
	CreatedAt time.Time
}

// TokenInfo is the name/symbol echo some providers return.
type TokenInfo struct {
	Name   string `json:"name,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

func (i *TokenInfo) Empty() bool {
	return i == nil || (i.Name == "" && i.Symbol == "")
}

type ProcessStatus string

const (
	ProcessPending      ProcessStatus = "PENDING"
	ProcessRunning      ProcessStatus = "RUNNING"
	ProcessAutoComplete ProcessStatus = "AUTO_COMPLETE"
	ProcessInReview     ProcessStatus = "IN_REVIEW"
	ProcessApproved     ProcessStatus = "APPROVED"
	ProcessRejected     ProcessStatus = "REJECTED"
	ProcessFailed       ProcessStatus = "FAILED"
)

// Terminal statuses are final verdicts; checks are never re-run against them.
func (s ProcessStatus) Terminal() bool {
	return s == ProcessApproved || s == ProcessRejected
}

var transitions = map[ProcessStatus][]ProcessStatus{
	ProcessPending:      {ProcessRunning, ProcessFailed},
	ProcessRunning:      {ProcessAutoComplete, ProcessInReview, ProcessFailed, ProcessPending},
	ProcessAutoComplete: {ProcessRunning, ProcessInReview, ProcessApproved, ProcessRejected},
	ProcessInReview:     {ProcessRunning, ProcessApproved, ProcessRejected},
	ProcessFailed:       {ProcessRunning, ProcessPending},
}

// CanTransition reports whether the state machine allows moving from s to next.
// RUNNING back to PENDING is the stale-run requeue.
func (s ProcessStatus) CanTransition(next ProcessStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

type Process struct {
	ID             uuid.UUID
	TokenID        uuid.UUID
	Status         ProcessStatus
	AutomaticScore *float64
	ManualScore    *float64
	OverallScore   *float64
	RiskLevel      *RiskLevel
	WorkerID       *string
	ErrorMsg       *string
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// ProcessUpdate is written back onto a process after a scoring pass.
type ProcessUpdate struct {
	Status         ProcessStatus
	AutomaticScore *float64
	ManualScore    *float64
	OverallScore   *float64
	RiskLevel      *RiskLevel
}

// Activity is an informational audit record appended after each run.
type Activity struct {
	Kind         string         `json:"kind"`
	Summary      string         `json:"summary"`
	ChecksRun    int            `json:"checks_run"`
	ChecksPassed int            `json:"checks_passed"`
	ErrorCount   int            `json:"error_count"`
	Details      map[string]any `json:"details,omitempty"`
	At           time.Time      `json:"at"`
}
