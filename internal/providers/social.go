package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/model"
)

// Social grades the project's web presence from the DexScreener payload
// already fetched in the same run. It makes no network calls.
type Social struct{}

func NewSocial() *Social { return &Social{} }

func (Social) Source() checks.Source { return checks.SourceSocial }

// Base is the source whose bundle Derive consumes.
func (Social) Base() checks.Source { return checks.SourceDexScreener }

type socialValue struct {
	Websites []string `json:"websites,omitempty"`
	Socials  []string `json:"socials,omitempty"`
}

func (Social) Derive(token model.Token, base *model.Bundle) (*model.Bundle, error) {
	if base == nil || len(base.Raw) == 0 {
		return nil, errors.New("social: no dexscreener payload")
	}
	var resp dexResponse
	if err := json.Unmarshal(base.Raw, &resp); err != nil {
		return nil, fmt.Errorf("social: decode dexscreener payload: %w", err)
	}

	b := model.NewBundle(checks.SourceSocial)
	pairs := chainPairs(token.Chain, resp.Pairs)
	if len(pairs) == 0 {
		b.Set(checks.WebsitePresent, model.CheckEntry{Outcome: model.Undecidable, Details: "Token is not listed on any pair"})
		b.Set(checks.SocialPresence, model.CheckEntry{Outcome: model.Undecidable, Details: "Token is not listed on any pair"})
		return b, nil
	}

	var v socialValue
	seen := map[string]bool{}
	for _, p := range pairs {
		if p.Info == nil {
			continue
		}
		for _, w := range p.Info.Websites {
			if w.URL != "" && !seen[w.URL] {
				seen[w.URL] = true
				v.Websites = append(v.Websites, w.URL)
			}
		}
		for _, s := range p.Info.Socials {
			kind := strings.ToLower(s.Type)
			if kind != "" && !seen["social:"+kind] {
				seen["social:"+kind] = true
				v.Socials = append(v.Socials, kind)
			}
		}
	}

	if len(v.Websites) > 0 {
		b.Set(checks.WebsitePresent, model.CheckEntry{Outcome: model.Passed, Value: v.Websites, Details: "Website listed: " + v.Websites[0]})
	} else {
		b.Set(checks.WebsitePresent, model.CheckEntry{Outcome: model.Failed, Details: "No website listed"})
	}
	if len(v.Socials) > 0 {
		b.Set(checks.SocialPresence, model.CheckEntry{Outcome: model.Passed, Value: v.Socials, Details: "Social channels: " + strings.Join(v.Socials, ", ")})
	} else {
		b.Set(checks.SocialPresence, model.CheckEntry{Outcome: model.Failed, Details: "No social channels listed"})
	}
	return b, nil
}
