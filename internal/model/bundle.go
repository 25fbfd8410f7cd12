package model

import (
	"encoding/json"

	"github.com/yourorg/vetting-worker/internal/checks"
)

// CheckEntry is a single normalized check inside a provider bundle.
type CheckEntry struct {
	Outcome Outcome
	Value   any
	Details string
	// Severity overrides the catalog severity when set.
	Severity checks.Severity
}

// Bundle is the normalized output of one data source.
type Bundle struct {
	Source checks.Source
	Checks map[checks.Type]CheckEntry
	// Raw is the provider payload, kept for audit and for derived sources.
	Raw   json.RawMessage
	Score *float64
	Token *TokenInfo
}

func NewBundle(src checks.Source) *Bundle {
	return &Bundle{Source: src, Checks: map[checks.Type]CheckEntry{}}
}

func (b *Bundle) Set(ct checks.Type, e CheckEntry) {
	b.Checks[ct] = e
}
