package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/model"
)

const (
	minLPLockedPct        = 80.0
	maxTopHolderPct       = 50.0
	maxRugCheckNormalised = 50.0
	topHolderWindow       = 10
)

// RugCheck reads the Solana token report.
type RugCheck struct {
	c *Client
}

func NewRugCheck(pc config.ProviderConfig) *RugCheck {
	return &RugCheck{c: NewClient(config.RugCheck, pc)}
}

func (r *RugCheck) Source() checks.Source { return checks.SourceRugCheck }

func (r *RugCheck) Supports(chain model.Chain) bool { return chain == model.ChainSolana }

type rugReport struct {
	Mint            string  `json:"mint"`
	MintAuthority   *string `json:"mintAuthority"`
	FreezeAuthority *string `json:"freezeAuthority"`
	TokenMeta       *struct {
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
		Mutable bool   `json:"mutable"`
	} `json:"tokenMeta"`
	TopHolders []struct {
		Address string  `json:"address"`
		Owner   string  `json:"owner"`
		Pct     float64 `json:"pct"`
		Insider bool    `json:"insider"`
	} `json:"topHolders"`
	Risks []struct {
		Name  string `json:"name"`
		Level string `json:"level"`
		Score int    `json:"score"`
	} `json:"risks"`
	Score           float64 `json:"score"`
	ScoreNormalised float64 `json:"score_normalised"`
	Markets         []struct {
		MarketType string `json:"marketType"`
		LP         *struct {
			LPLockedPct float64 `json:"lpLockedPct"`
		} `json:"lp"`
	} `json:"markets"`
	Rugged bool `json:"rugged"`
}

func (r *RugCheck) Fetch(ctx context.Context, token model.Token) (*model.Bundle, error) {
	if token.Chain != model.ChainSolana {
		return nil, permanent("rugcheck: chain %s not supported", token.Chain)
	}
	body, err := r.c.Get(ctx, "/v1/tokens/"+token.Address+"/report", nil)
	if err != nil {
		return nil, err
	}
	var rep rugReport
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, fmt.Errorf("rugcheck: decode: %w", err)
	}
	b := normalizeRugCheck(rep)
	b.Raw = body
	return b, nil
}

func normalizeRugCheck(rep rugReport) *model.Bundle {
	b := model.NewBundle(checks.SourceRugCheck)

	b.Set(checks.MintAuthority, authorityEntry("Mint", rep.MintAuthority))
	b.Set(checks.FreezeAuthority, authorityEntry("Freeze", rep.FreezeAuthority))

	if len(rep.Markets) == 0 {
		b.Set(checks.LPLocked, model.CheckEntry{Outcome: model.Undecidable, Details: "No liquidity markets reported"})
	} else {
		best := 0.0
		for _, m := range rep.Markets {
			if m.LP != nil && m.LP.LPLockedPct > best {
				best = m.LP.LPLockedPct
			}
		}
		b.Set(checks.LPLocked, model.CheckEntry{
			Outcome: model.PassIf(best >= minLPLockedPct),
			Value:   best,
			Details: fmt.Sprintf("%.1f%% of LP tokens locked or burned", best),
		})
	}

	if len(rep.TopHolders) == 0 {
		b.Set(checks.TopHolderConcentration, model.CheckEntry{Outcome: model.Undecidable, Details: "Top holders not reported"})
	} else {
		var sum float64
		insiders := 0
		for i, h := range rep.TopHolders {
			if i == topHolderWindow {
				break
			}
			sum += h.Pct
			if h.Insider {
				insiders++
			}
		}
		e := model.CheckEntry{
			Outcome: model.PassIf(sum <= maxTopHolderPct),
			Value:   sum,
			Details: fmt.Sprintf("Top %d holders own %.1f%% of supply", min(len(rep.TopHolders), topHolderWindow), sum),
		}
		if insiders > 0 {
			e.Details += fmt.Sprintf(" (%d flagged as insiders)", insiders)
		}
		b.Set(checks.TopHolderConcentration, e)
	}

	var danger []string
	for _, rk := range rep.Risks {
		if strings.EqualFold(rk.Level, "danger") {
			danger = append(danger, rk.Name)
		}
	}
	risk := model.CheckEntry{
		Outcome: model.PassIf(rep.ScoreNormalised < maxRugCheckNormalised && !rep.Rugged),
		Value:   rep.ScoreNormalised,
		Details: fmt.Sprintf("RugCheck risk score %.0f", rep.ScoreNormalised),
	}
	if rep.Rugged {
		risk.Details = "Token is marked as rugged"
		risk.Severity = checks.SeverityCritical
	} else if len(danger) > 0 {
		risk.Details += "; danger: " + strings.Join(danger, ", ")
		risk.Severity = checks.SeverityHigh
	}
	b.Set(checks.RugCheckRisk, risk)
	score := rep.ScoreNormalised
	b.Score = &score

	if rep.TokenMeta == nil {
		b.Set(checks.MutableMetadata, model.CheckEntry{Outcome: model.Undecidable, Details: "Token metadata not reported"})
	} else {
		b.Set(checks.MutableMetadata, model.CheckEntry{
			Outcome: model.PassIf(!rep.TokenMeta.Mutable),
			Value:   rep.TokenMeta.Mutable,
			Details: map[bool]string{true: "Metadata can still be changed", false: "Metadata is immutable"}[rep.TokenMeta.Mutable],
		})
		if rep.TokenMeta.Name != "" || rep.TokenMeta.Symbol != "" {
			b.Token = &model.TokenInfo{Name: rep.TokenMeta.Name, Symbol: rep.TokenMeta.Symbol}
		}
	}
	return b
}

func authorityEntry(kind string, authority *string) model.CheckEntry {
	if authority == nil || *authority == "" {
		return model.CheckEntry{Outcome: model.Passed, Details: kind + " authority revoked"}
	}
	return model.CheckEntry{Outcome: model.Failed, Value: *authority, Details: kind + " authority held by " + *authority}
}
