package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/model"
)

// GoPlus reads the token security endpoint for EVM contracts.
type GoPlus struct {
	c *Client
}

func NewGoPlus(pc config.ProviderConfig) *GoPlus {
	c := NewClient(config.GoPlus, pc)
	if pc.APIKey != "" {
		c.header.Set("Authorization", pc.APIKey)
	}
	return &GoPlus{c: c}
}

func (g *GoPlus) Source() checks.Source { return checks.SourceGoPlus }

func (g *GoPlus) Supports(chain model.Chain) bool { return chain.IsEVM() }

type goplusResponse struct {
	Code    int                            `json:"code"`
	Message string                         `json:"message"`
	Result  map[string]goplusTokenSecurity `json:"result"`
}

type goplusTokenSecurity struct {
	TokenName            string `json:"token_name"`
	TokenSymbol          string `json:"token_symbol"`
	IsHoneypot           string `json:"is_honeypot"`
	CannotSellAll        string `json:"cannot_sell_all"`
	IsMintable           string `json:"is_mintable"`
	OwnerAddress         string `json:"owner_address"`
	CanTakeBackOwnership string `json:"can_take_back_ownership"`
	IsProxy              string `json:"is_proxy"`
	HiddenOwner          string `json:"hidden_owner"`
	IsBlacklisted        string `json:"is_blacklisted"`
	TransferPausable     string `json:"transfer_pausable"`
	BuyTax               string `json:"buy_tax"`
	SellTax              string `json:"sell_tax"`
	SelfDestruct         string `json:"selfdestruct"`
	OwnerChangeBalance   string `json:"owner_change_balance"`
}

func (g *GoPlus) Fetch(ctx context.Context, token model.Token) (*model.Bundle, error) {
	chainID := token.Chain.EVMChainID()
	if chainID == "" {
		return nil, permanent("goplus: chain %s not supported", token.Chain)
	}
	addr := token.Chain.NormalizeAddress(token.Address)
	body, err := g.c.Get(ctx, "/api/v1/token_security/"+chainID, url.Values{"contract_addresses": {addr}})
	if err != nil {
		return nil, err
	}

	var resp goplusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("goplus: decode: %w", err)
	}
	if resp.Code != 1 {
		return nil, fmt.Errorf("goplus: code %d: %s", resp.Code, resp.Message)
	}
	sec, ok := resp.Result[addr]
	if !ok {
		return nil, permanent("goplus: no security data for %s", addr)
	}

	b := normalizeGoPlus(sec)
	b.Raw = body
	return b, nil
}

func normalizeGoPlus(s goplusTokenSecurity) *model.Bundle {
	b := model.NewBundle(checks.SourceGoPlus)

	honeypot := flagEntry(s.IsHoneypot, "Token can be sold", "Token cannot be sold (honeypot)")
	if honeypot.Outcome == model.Passed && s.CannotSellAll == "1" {
		honeypot = model.CheckEntry{Outcome: model.Failed, Value: s.CannotSellAll, Details: "Holders cannot sell their full balance"}
	}
	b.Set(checks.HoneypotDetection, honeypot)
	b.Set(checks.MintFunction, flagEntry(s.IsMintable, "No mint function", "Owner can mint new tokens"))
	b.Set(checks.OwnershipRenounced, ownershipEntry(s.OwnerAddress, s.CanTakeBackOwnership))
	b.Set(checks.ProxyContract, flagEntry(s.IsProxy, "Not a proxy contract", "Upgradeable proxy contract"))
	b.Set(checks.HiddenOwner, flagEntry(s.HiddenOwner, "No hidden owner", "Contract has a hidden owner"))
	b.Set(checks.BlacklistFunction, flagEntry(s.IsBlacklisted, "No blacklist function", "Contract can blacklist addresses"))
	b.Set(checks.TradingPausable, flagEntry(s.TransferPausable, "Transfers cannot be paused", "Owner can pause transfers"))
	b.Set(checks.BuyTax, taxEntry("Buy", s.BuyTax))
	b.Set(checks.SellTax, taxEntry("Sell", s.SellTax))
	b.Set(checks.SelfDestruct, flagEntry(s.SelfDestruct, "No self-destruct", "Contract can self-destruct"))
	b.Set(checks.OwnerBalanceManipulation, flagEntry(s.OwnerChangeBalance, "Owner cannot change balances", "Owner can modify holder balances"))

	if s.TokenName != "" || s.TokenSymbol != "" {
		b.Token = &model.TokenInfo{Name: s.TokenName, Symbol: s.TokenSymbol}
	}
	return b
}

// flagEntry maps a GoPlus "0"/"1" flag where "1" is the risky answer.
func flagEntry(v, okMsg, badMsg string) model.CheckEntry {
	switch v {
	case "0":
		return model.CheckEntry{Outcome: model.Passed, Value: v, Details: okMsg}
	case "1":
		return model.CheckEntry{Outcome: model.Failed, Value: v, Details: badMsg}
	}
	return model.CheckEntry{Outcome: model.Undecidable, Details: "Not reported by provider"}
}

var burnAddresses = map[string]bool{
	"0x0000000000000000000000000000000000000000": true,
	"0x000000000000000000000000000000000000dead": true,
}

func ownershipEntry(owner, canTakeBack string) model.CheckEntry {
	owner = strings.ToLower(strings.TrimSpace(owner))
	if canTakeBack == "1" {
		return model.CheckEntry{Outcome: model.Failed, Value: owner, Details: "Ownership can be reclaimed"}
	}
	if owner == "" || burnAddresses[owner] {
		return model.CheckEntry{Outcome: model.Passed, Value: owner, Details: "Ownership renounced"}
	}
	return model.CheckEntry{Outcome: model.Failed, Value: owner, Details: "Contract has an active owner: " + owner}
}

// taxEntry grades a fractional tax ("0.05" is 5%). Anything at or above 10%
// fails; 30% and above is escalated to HIGH, 50% and above to CRITICAL.
func taxEntry(side, v string) model.CheckEntry {
	if v == "" {
		return model.CheckEntry{Outcome: model.Undecidable, Details: "Not reported by provider"}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return model.CheckEntry{Outcome: model.Undecidable, Value: v, Details: "Unparseable tax value"}
	}
	pct := f * 100
	e := model.CheckEntry{
		Outcome: model.PassIf(f < 0.10),
		Value:   pct,
		Details: fmt.Sprintf("%s tax is %.1f%%", side, pct),
	}
	switch {
	case f >= 0.5:
		e.Severity = checks.SeverityCritical
	case f >= 0.3:
		e.Severity = checks.SeverityHigh
	}
	return e
}
