package holders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/model"
)

// Explorer lists a token's holders and transfers on one chain.
type Explorer interface {
	TopHolders(ctx context.Context, token string, limit int) ([]model.Holder, error)
	RecentTransfers(ctx context.Context, token string) ([]model.Transfer, error)
}

// Provider exposes the analyzer as a data source. Chains without an explorer
// are not supported.
type Provider struct {
	analyzer  *Analyzer
	explorers map[model.Chain]Explorer
}

func NewProvider(a *Analyzer, explorers map[model.Chain]Explorer) *Provider {
	return &Provider{analyzer: a, explorers: explorers}
}

func (p *Provider) Source() checks.Source { return checks.SourceHolders }

func (p *Provider) Supports(chain model.Chain) bool {
	_, ok := p.explorers[chain]
	return ok
}

type rawReport struct {
	Holders   []model.Holder `json:"holders"`
	Transfers int            `json:"transfers"`
	Clusters  []Cluster      `json:"clusters,omitempty"`
}

// Fetch loads the holder list and transfers and runs the analysis. Failing to
// list holders fails the source; failing to list transfers only leaves the
// wash trading check undecidable.
func (p *Provider) Fetch(ctx context.Context, token model.Token) (*model.Bundle, error) {
	ex, ok := p.explorers[token.Chain]
	if !ok {
		return nil, fmt.Errorf("no explorer for chain %s", token.Chain)
	}

	top, err := ex.TopHolders(ctx, token.Address, p.analyzer.cfg.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("top holders: %w", err)
	}

	transfers, err := ex.RecentTransfers(ctx, token.Address)
	if err != nil {
		log.Warn().Err(err).Str("token", token.Address).Msg("holders: transfers unavailable")
		transfers = nil
	}

	report := p.analyzer.Analyze(ctx, token.Chain, top, transfers)
	b := report.Bundle()
	if raw, err := json.Marshal(rawReport{Holders: top, Transfers: len(transfers), Clusters: report.Clusters}); err == nil {
		b.Raw = raw
	}
	return b, nil
}
