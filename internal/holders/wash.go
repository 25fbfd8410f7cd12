package holders

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/yourorg/vetting-worker/internal/model"
)

// pairKey is an unordered wallet pair: a is always the smaller address.
type pairKey struct{ a, b string }

func newPairKey(x, y string) pairKey {
	if y < x {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

type pairStats struct {
	forward  int // a -> b
	backward int // b -> a
	volume   decimal.Decimal
}

// SuspiciousPair is a wallet pair trading back and forth.
type SuspiciousPair struct {
	WalletA string `json:"wallet_a"`
	WalletB string `json:"wallet_b"`
	AToB    int    `json:"a_to_b"`
	BToA    int    `json:"b_to_a"`
	Volume  string `json:"volume"`
}

type washValue struct {
	Transfers       int              `json:"transfers"`
	Pairs           int              `json:"pairs"`
	TotalVolume     string           `json:"total_volume"`
	SuspiciousPairs []SuspiciousPair `json:"suspicious_pairs,omitempty"`
	WashPercentage  float64          `json:"wash_percentage"`
}

// washTrading accumulates transfers per unordered wallet pair. A pair with at
// least minEachWay transfers in both directions is suspicious; the check fails
// when suspicious pairs move threshold or more of the total volume.
func washTrading(chain model.Chain, transfers []model.Transfer, minEachWay int, threshold float64) model.CheckEntry {
	pairs := map[pairKey]*pairStats{}
	total := decimal.Zero
	counted := 0
	for _, tr := range transfers {
		from := chain.NormalizeAddress(tr.From)
		to := chain.NormalizeAddress(tr.To)
		if from == "" || to == "" || from == to || tr.Amount.IsNegative() {
			continue
		}
		counted++
		total = total.Add(tr.Amount)

		k := newPairKey(from, to)
		ps, ok := pairs[k]
		if !ok {
			ps = &pairStats{volume: decimal.Zero}
			pairs[k] = ps
		}
		if from == k.a {
			ps.forward++
		} else {
			ps.backward++
		}
		ps.volume = ps.volume.Add(tr.Amount)
	}

	v := washValue{Transfers: counted, Pairs: len(pairs), TotalVolume: total.String()}
	if counted == 0 || !total.IsPositive() {
		return model.CheckEntry{
			Outcome: model.Undecidable,
			Value:   v,
			Details: "No transfer volume available to assess wash trading",
		}
	}

	washVolume := decimal.Zero
	for k, ps := range pairs {
		if ps.forward < minEachWay || ps.backward < minEachWay {
			continue
		}
		washVolume = washVolume.Add(ps.volume)
		v.SuspiciousPairs = append(v.SuspiciousPairs, SuspiciousPair{
			WalletA: k.a, WalletB: k.b, AToB: ps.forward, BToA: ps.backward, Volume: ps.volume.String(),
		})
	}
	sort.Slice(v.SuspiciousPairs, func(i, j int) bool {
		if v.SuspiciousPairs[i].WalletA != v.SuspiciousPairs[j].WalletA {
			return v.SuspiciousPairs[i].WalletA < v.SuspiciousPairs[j].WalletA
		}
		return v.SuspiciousPairs[i].WalletB < v.SuspiciousPairs[j].WalletB
	})

	ratio, _ := washVolume.Div(total).Float64()
	v.WashPercentage = percent(ratio)

	details := fmt.Sprintf("No back-and-forth trading among %d wallet pairs", v.Pairs)
	if len(v.SuspiciousPairs) > 0 {
		details = fmt.Sprintf("%.1f%% of transfer volume moves back and forth between %d wallet pairs",
			v.WashPercentage, len(v.SuspiciousPairs))
	}
	return model.CheckEntry{
		Outcome: model.PassIf(ratio < threshold),
		Value:   v,
		Details: details,
	}
}
