package holders

import (
	"fmt"
	"math"
	"time"

	"github.com/yourorg/vetting-worker/internal/model"
)

type freshValue struct {
	Sampled      int      `json:"sampled"`
	Analyzed     int      `json:"analyzed"`
	Fresh        int      `json:"fresh"`
	FreshPercent float64  `json:"fresh_percent"`
	FreshWallets []string `json:"fresh_wallets,omitempty"`
}

// freshWallets flags the token when too large a share of the holders whose
// age could be resolved are younger than maxAge.
func freshWallets(traces []Trace, now time.Time, maxAge time.Duration, threshold float64) model.CheckEntry {
	v := freshValue{Sampled: len(traces)}
	for _, t := range traces {
		if !t.AgeResolved {
			continue
		}
		v.Analyzed++
		if now.Sub(t.FirstActivity) < maxAge {
			v.Fresh++
			v.FreshWallets = append(v.FreshWallets, t.Holder.Address)
		}
	}

	if v.Analyzed == 0 {
		return model.CheckEntry{
			Outcome: model.Undecidable,
			Value:   v,
			Details: fmt.Sprintf("Wallet age could not be resolved for any of the %d sampled holders", v.Sampled),
		}
	}

	ratio := float64(v.Fresh) / float64(v.Analyzed)
	v.FreshPercent = percent(ratio)
	days := int(maxAge.Hours() / 24)
	return model.CheckEntry{
		Outcome: model.PassIf(ratio < threshold),
		Value:   v,
		Details: fmt.Sprintf("%d of %d analyzed top holders are younger than %d days (%.0f%%)", v.Fresh, v.Analyzed, days, v.FreshPercent),
	}
}

func percent(ratio float64) float64 {
	return math.Round(ratio*1000) / 10
}
