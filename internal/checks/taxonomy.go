// Package checks holds the static check catalog: every check type the system
// knows about, with the weight, severity and data source it is scored under.
package checks

import (
	"fmt"
	"sort"
)

// Type identifies a single check. Only the constants below are valid.
type Type string

// Source identifies the data source that evaluates a check.
type Source string

const (
	SourceGoPlus      Source = "goplus"
	SourceRugCheck    Source = "rugcheck"
	SourceDexScreener Source = "dexscreener"
	SourceSocial      Source = "social"
	SourceEtherscan   Source = "etherscan"
	SourceHolders     Source = "holders"
	SourceManual      Source = "manual"
)

func (s Source) String() string { return string(s) }

// Kind separates the automatic catalog from the manual-review catalog.
type Kind string

const (
	KindAutomatic Kind = "automatic"
	KindManual    Kind = "manual"
)

// Automatic checks.
const (
	// GoPlus token security (EVM)
	HoneypotDetection        Type = "HONEYPOT_DETECTION"
	MintFunction             Type = "MINT_FUNCTION"
	OwnershipRenounced       Type = "OWNERSHIP_RENOUNCED"
	ProxyContract            Type = "PROXY_CONTRACT"
	HiddenOwner              Type = "HIDDEN_OWNER"
	BlacklistFunction        Type = "BLACKLIST_FUNCTION"
	TradingPausable          Type = "TRADING_PAUSABLE"
	BuyTax                   Type = "BUY_TAX"
	SellTax                  Type = "SELL_TAX"
	SelfDestruct             Type = "SELF_DESTRUCT"
	OwnerBalanceManipulation Type = "OWNER_BALANCE_MANIPULATION"

	// RugCheck report (Solana)
	MintAuthority          Type = "MINT_AUTHORITY"
	FreezeAuthority        Type = "FREEZE_AUTHORITY"
	LPLocked               Type = "LP_LOCKED"
	TopHolderConcentration Type = "TOP_HOLDER_CONCENTRATION"
	RugCheckRisk           Type = "RUGCHECK_RISK_SCORE"
	MutableMetadata        Type = "MUTABLE_METADATA"

	// DexScreener market data
	LiquidityDepth Type = "LIQUIDITY_DEPTH"
	TradingVolume  Type = "TRADING_VOLUME"
	PairAge        Type = "PAIR_AGE"
	BuySellBalance Type = "BUY_SELL_BALANCE"

	// Social presence, derived from the DexScreener payload
	WebsitePresent Type = "WEBSITE_PRESENT"
	SocialPresence Type = "SOCIAL_PRESENCE"

	// Block explorer
	ContractVerified Type = "CONTRACT_VERIFIED"

	// Holder analysis
	FreshWallets     Type = "FRESH_WALLETS"
	WalletClustering Type = "WALLET_CLUSTERING"
	WashTrading      Type = "WASH_TRADING"
)

// Manual review checks.
const (
	ContractCodeReview      Type = "CONTRACT_CODE_REVIEW"
	AuditReport             Type = "AUDIT_REPORT"
	TeamDoxxed              Type = "TEAM_DOXXED"
	TokenomicsReview        Type = "TOKENOMICS_REVIEW"
	WhitepaperReview        Type = "WHITEPAPER_REVIEW"
	PartnershipVerification Type = "PARTNERSHIP_VERIFICATION"
	RoadmapCredibility      Type = "ROADMAP_CREDIBILITY"
	CommunitySentiment      Type = "COMMUNITY_SENTIMENT"
)

func (t Type) String() string { return string(t) }

// Definition is the configured scoring data of one check type.
type Definition struct {
	Type     Type
	Title    string
	Weight   float64
	Severity Severity
	Source   Source
	// GreenFlag is the message emitted when the check passes. Empty means the
	// check is not on the notable allow-list and never produces a green flag.
	GreenFlag string
}

// EffectiveWeight is the base weight scaled by the severity multiplier.
func (s Definition) EffectiveWeight() float64 {
	return s.Weight * s.Severity.Weight()
}

// Taxonomy is a read-only catalog of check definitions.
type Taxonomy struct {
	kind    Kind
	defs    map[Type]Definition
	order   []Type
	sources []Source
}

var automaticDefs = []Definition{
	{Type: HoneypotDetection, Title: "Honeypot detection", Weight: 1.0, Severity: SeverityCritical, Source: SourceGoPlus, GreenFlag: "Token can be sold (no honeypot detected)"},
	{Type: MintFunction, Title: "Mint function", Weight: 0.75, Severity: SeverityHigh, Source: SourceGoPlus},
	{Type: OwnershipRenounced, Title: "Ownership renounced", Weight: 0.5, Severity: SeverityMedium, Source: SourceGoPlus, GreenFlag: "Contract ownership has been renounced"},
	{Type: ProxyContract, Title: "Proxy contract", Weight: 0.5, Severity: SeverityMedium, Source: SourceGoPlus},
	{Type: HiddenOwner, Title: "Hidden owner", Weight: 0.75, Severity: SeverityHigh, Source: SourceGoPlus},
	{Type: BlacklistFunction, Title: "Blacklist function", Weight: 0.5, Severity: SeverityMedium, Source: SourceGoPlus},
	{Type: TradingPausable, Title: "Trading pausable", Weight: 0.75, Severity: SeverityHigh, Source: SourceGoPlus},
	{Type: BuyTax, Title: "Buy tax", Weight: 0.5, Severity: SeverityMedium, Source: SourceGoPlus},
	{Type: SellTax, Title: "Sell tax", Weight: 0.75, Severity: SeverityHigh, Source: SourceGoPlus},
	{Type: SelfDestruct, Title: "Self-destruct", Weight: 1.0, Severity: SeverityCritical, Source: SourceGoPlus},
	{Type: OwnerBalanceManipulation, Title: "Owner balance manipulation", Weight: 0.75, Severity: SeverityHigh, Source: SourceGoPlus},

	{Type: MintAuthority, Title: "Mint authority", Weight: 1.0, Severity: SeverityCritical, Source: SourceRugCheck, GreenFlag: "Mint authority is revoked"},
	{Type: FreezeAuthority, Title: "Freeze authority", Weight: 1.0, Severity: SeverityCritical, Source: SourceRugCheck, GreenFlag: "Freeze authority is revoked"},
	{Type: LPLocked, Title: "Liquidity locked", Weight: 0.75, Severity: SeverityHigh, Source: SourceRugCheck, GreenFlag: "Liquidity pool tokens are locked or burned"},
	{Type: TopHolderConcentration, Title: "Top holder concentration", Weight: 0.5, Severity: SeverityHigh, Source: SourceRugCheck},
	{Type: RugCheckRisk, Title: "RugCheck risk score", Weight: 0.5, Severity: SeverityMedium, Source: SourceRugCheck},
	{Type: MutableMetadata, Title: "Mutable metadata", Weight: 0.25, Severity: SeverityLow, Source: SourceRugCheck},

	{Type: LiquidityDepth, Title: "Liquidity depth", Weight: 0.75, Severity: SeverityHigh, Source: SourceDexScreener, GreenFlag: "Healthy on-chain liquidity"},
	{Type: TradingVolume, Title: "Trading volume", Weight: 0.5, Severity: SeverityMedium, Source: SourceDexScreener},
	{Type: PairAge, Title: "Pair age", Weight: 0.25, Severity: SeverityLow, Source: SourceDexScreener},
	{Type: BuySellBalance, Title: "Buy/sell balance", Weight: 0.25, Severity: SeverityLow, Source: SourceDexScreener},

	{Type: WebsitePresent, Title: "Website", Weight: 0.25, Severity: SeverityLow, Source: SourceSocial},
	{Type: SocialPresence, Title: "Social channels", Weight: 0.25, Severity: SeverityLow, Source: SourceSocial},

	{Type: ContractVerified, Title: "Contract verified", Weight: 0.75, Severity: SeverityHigh, Source: SourceEtherscan, GreenFlag: "Contract source code is verified"},

	{Type: FreshWallets, Title: "Fresh wallets among top holders", Weight: 0.75, Severity: SeverityHigh, Source: SourceHolders},
	{Type: WalletClustering, Title: "Funding-source clustering", Weight: 0.75, Severity: SeverityHigh, Source: SourceHolders},
	{Type: WashTrading, Title: "Wash trading", Weight: 0.75, Severity: SeverityHigh, Source: SourceHolders},
}

var manualDefs = []Definition{
	{Type: ContractCodeReview, Title: "Contract code review", Weight: 1.0, Severity: SeverityCritical, Source: SourceManual, GreenFlag: "Manual contract code review passed"},
	{Type: AuditReport, Title: "Third-party audit", Weight: 1.0, Severity: SeverityCritical, Source: SourceManual, GreenFlag: "Independent audit report verified"},
	{Type: TeamDoxxed, Title: "Team identity", Weight: 0.75, Severity: SeverityHigh, Source: SourceManual, GreenFlag: "Team identity verified"},
	{Type: TokenomicsReview, Title: "Tokenomics review", Weight: 0.5, Severity: SeverityMedium, Source: SourceManual},
	{Type: WhitepaperReview, Title: "Whitepaper review", Weight: 0.5, Severity: SeverityMedium, Source: SourceManual},
	{Type: PartnershipVerification, Title: "Partnership verification", Weight: 0.5, Severity: SeverityMedium, Source: SourceManual},
	{Type: RoadmapCredibility, Title: "Roadmap credibility", Weight: 0.25, Severity: SeverityLow, Source: SourceManual},
	{Type: CommunitySentiment, Title: "Community sentiment", Weight: 0.25, Severity: SeverityLow, Source: SourceManual},
}

var (
	Automatic = mustTaxonomy(KindAutomatic, automaticDefs)
	Manual    = mustTaxonomy(KindManual, manualDefs)
)

// New builds a taxonomy, rejecting duplicate types, out-of-range weights and
// unknown severities.
func New(kind Kind, defs []Definition) (*Taxonomy, error) {
	t := &Taxonomy{kind: kind, defs: make(map[Type]Definition, len(defs))}
	seenSource := map[Source]bool{}
	for _, s := range defs {
		if s.Type == "" {
			return nil, fmt.Errorf("%s taxonomy: empty check type", kind)
		}
		if _, dup := t.defs[s.Type]; dup {
			return nil, fmt.Errorf("%s taxonomy: duplicate check type %s", kind, s.Type)
		}
		if s.Weight <= 0 || s.Weight > 1 {
			return nil, fmt.Errorf("%s taxonomy: %s weight %.2f outside (0,1]", kind, s.Type, s.Weight)
		}
		if !s.Severity.Valid() {
			return nil, fmt.Errorf("%s taxonomy: %s has unknown severity %q", kind, s.Type, s.Severity)
		}
		if s.Source == "" {
			return nil, fmt.Errorf("%s taxonomy: %s has no source", kind, s.Type)
		}
		t.defs[s.Type] = s
		t.order = append(t.order, s.Type)
		if !seenSource[s.Source] {
			seenSource[s.Source] = true
			t.sources = append(t.sources, s.Source)
		}
	}
	return t, nil
}

func mustTaxonomy(kind Kind, defs []Definition) *Taxonomy {
	t, err := New(kind, defs)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Taxonomy) Kind() Kind { return t.kind }

// Lookup returns the definition of a check type.
func (t *Taxonomy) Lookup(ct Type) (Definition, bool) {
	s, ok := t.defs[ct]
	return s, ok
}

// Types lists every check type in catalog order.
func (t *Taxonomy) Types() []Type {
	return append([]Type(nil), t.order...)
}

// Sources lists every source with at least one check, in catalog order.
func (t *Taxonomy) Sources() []Source {
	return append([]Source(nil), t.sources...)
}

// BySource returns the definitions evaluated by src, in catalog order.
func (t *Taxonomy) BySource(src Source) []Definition {
	var out []Definition
	for _, ct := range t.order {
		if s := t.defs[ct]; s.Source == src {
			out = append(out, s)
		}
	}
	return out
}

// Notable returns the allow-listed check types that produce green flags,
// sorted by name.
func (t *Taxonomy) Notable() []Type {
	var out []Type
	for _, ct := range t.order {
		if t.defs[ct].GreenFlag != "" {
			out = append(out, ct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve finds a check type in either catalog.
func Resolve(name string) (Type, Kind, bool) {
	ct := Type(name)
	if _, ok := Automatic.Lookup(ct); ok {
		return ct, KindAutomatic, true
	}
	if _, ok := Manual.Lookup(ct); ok {
		return ct, KindManual, true
	}
	return "", "", false
}
