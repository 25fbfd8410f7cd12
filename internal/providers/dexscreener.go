package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/model"
)

// Market thresholds.
const (
	minLiquidityUSD  = 50_000.0
	minVolume24hUSD  = 10_000.0
	minPairAge       = 7 * 24 * time.Hour
	minSwapsForRatio = 10
	minSellShare     = 0.10
)

type DexScreener struct {
	c   *Client
	now func() time.Time
}

func NewDexScreener(pc config.ProviderConfig) *DexScreener {
	return &DexScreener{c: NewClient(config.DexScreener, pc), now: time.Now}
}

func (d *DexScreener) Source() checks.Source { return checks.SourceDexScreener }

func (d *DexScreener) Supports(model.Chain) bool { return true }

type dexResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type dexPair struct {
	ChainID     string    `json:"chainId"`
	DexID       string    `json:"dexId"`
	PairAddress string    `json:"pairAddress"`
	BaseToken   dexToken  `json:"baseToken"`
	QuoteToken  dexToken  `json:"quoteToken"`
	Liquidity   *dexLiq   `json:"liquidity"`
	Volume      dexVolume `json:"volume"`
	Txns        dexTxns   `json:"txns"`
	CreatedAtMs int64     `json:"pairCreatedAt"`
	Info        *dexInfo  `json:"info"`
}

type dexToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type dexLiq struct {
	USD float64 `json:"usd"`
}

type dexVolume struct {
	H24 float64 `json:"h24"`
}

type dexTxns struct {
	H24 struct {
		Buys  int `json:"buys"`
		Sells int `json:"sells"`
	} `json:"h24"`
}

type dexInfo struct {
	Websites []struct {
		Label string `json:"label"`
		URL   string `json:"url"`
	} `json:"websites"`
	Socials []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"socials"`
}

func (d *DexScreener) Fetch(ctx context.Context, token model.Token) (*model.Bundle, error) {
	body, err := d.c.Get(ctx, "/latest/dex/tokens/"+token.Address, nil)
	if err != nil {
		return nil, err
	}
	var resp dexResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener: decode: %w", err)
	}
	b := normalizeDexScreener(token, chainPairs(token.Chain, resp.Pairs), d.now())
	b.Raw = body
	return b, nil
}

// chainPairs keeps the pairs on the token's chain, deepest liquidity first.
func chainPairs(chain model.Chain, pairs []dexPair) []dexPair {
	var out []dexPair
	for _, p := range pairs {
		if p.ChainID == chain.String() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].liquidityUSD() > out[j].liquidityUSD()
	})
	return out
}

func (p dexPair) liquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

type marketValue struct {
	Pairs        int     `json:"pairs"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	Volume24hUSD float64 `json:"volume_24h_usd"`
	TopPair      string  `json:"top_pair,omitempty"`
	TopDex       string  `json:"top_dex,omitempty"`
}

func normalizeDexScreener(token model.Token, pairs []dexPair, now time.Time) *model.Bundle {
	b := model.NewBundle(checks.SourceDexScreener)
	if len(pairs) == 0 {
		b.Set(checks.LiquidityDepth, model.CheckEntry{Outcome: model.Failed, Value: 0, Details: "No trading pairs found"})
		b.Set(checks.TradingVolume, model.CheckEntry{Outcome: model.Failed, Value: 0, Details: "No trading pairs found"})
		b.Set(checks.PairAge, model.CheckEntry{Outcome: model.Undecidable, Details: "No trading pairs found"})
		b.Set(checks.BuySellBalance, model.CheckEntry{Outcome: model.Undecidable, Details: "No trading pairs found"})
		return b
	}

	mv := marketValue{Pairs: len(pairs), TopPair: pairs[0].PairAddress, TopDex: pairs[0].DexID}
	var buys, sells int
	var oldest time.Time
	for _, p := range pairs {
		mv.LiquidityUSD += p.liquidityUSD()
		mv.Volume24hUSD += p.Volume.H24
		buys += p.Txns.H24.Buys
		sells += p.Txns.H24.Sells
		if p.CreatedAtMs > 0 {
			created := time.UnixMilli(p.CreatedAtMs)
			if oldest.IsZero() || created.Before(oldest) {
				oldest = created
			}
		}
	}

	b.Set(checks.LiquidityDepth, model.CheckEntry{
		Outcome: model.PassIf(mv.LiquidityUSD >= minLiquidityUSD),
		Value:   mv,
		Details: fmt.Sprintf("$%.0f liquidity across %d pairs", mv.LiquidityUSD, mv.Pairs),
	})
	b.Set(checks.TradingVolume, model.CheckEntry{
		Outcome: model.PassIf(mv.Volume24hUSD >= minVolume24hUSD),
		Value:   mv.Volume24hUSD,
		Details: fmt.Sprintf("$%.0f traded in the last 24h", mv.Volume24hUSD),
	})

	if oldest.IsZero() {
		b.Set(checks.PairAge, model.CheckEntry{Outcome: model.Undecidable, Details: "Pair creation time not reported"})
	} else {
		age := now.Sub(oldest)
		days := age.Hours() / 24
		b.Set(checks.PairAge, model.CheckEntry{
			Outcome: model.PassIf(age >= minPairAge),
			Value:   days,
			Details: fmt.Sprintf("Oldest pair created %.1f days ago", days),
		})
	}

	b.Set(checks.BuySellBalance, buySellEntry(buys, sells))

	chain := token.Chain
	want := chain.NormalizeAddress(token.Address)
	for _, p := range pairs {
		if chain.NormalizeAddress(p.BaseToken.Address) == want && (p.BaseToken.Name != "" || p.BaseToken.Symbol != "") {
			b.Token = &model.TokenInfo{Name: p.BaseToken.Name, Symbol: p.BaseToken.Symbol}
			break
		}
	}
	return b
}

// buySellEntry fails one-sided markets: plenty of buys with almost no sells is
// the usual shape of a token that cannot be sold.
func buySellEntry(buys, sells int) model.CheckEntry {
	v := map[string]int{"buys": buys, "sells": sells}
	total := buys + sells
	if total < minSwapsForRatio {
		return model.CheckEntry{Outcome: model.Undecidable, Value: v, Details: fmt.Sprintf("Only %d swaps in the last 24h", total)}
	}
	share := float64(sells) / float64(total)
	return model.CheckEntry{
		Outcome: model.PassIf(share >= minSellShare),
		Value:   v,
		Details: fmt.Sprintf("%d buys / %d sells in the last 24h", buys, sells),
	}
}
