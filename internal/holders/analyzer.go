// Package holders inspects a token's top holders and transfer history for
// signs of coordinated accumulation: freshly created wallets, wallets funded
// from the same source, and wash trading between wallet pairs.
//
// The signals are heuristics. Clustering looks one funding hop deep and only
// at the sampled holders, so results are advisory rather than proof.
package holders

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/metrics"
	"github.com/yourorg/vetting-worker/internal/model"
)

// WalletResolver answers the per-wallet questions the analyzer needs.
// Implementations are chain specific.
type WalletResolver interface {
	// FirstActivity returns the time of the wallet's earliest observable activity.
	FirstActivity(ctx context.Context, address string) (time.Time, error)
	// FundingSource returns the address that first sent value to the wallet.
	FundingSource(ctx context.Context, address string) (string, error)
}

type Config struct {
	SampleSize       int
	Concurrency      int
	FreshAge         time.Duration
	FreshThreshold   float64
	ClusterThreshold float64
	WashThreshold    float64
	// MinTransfersEachWay is the back-and-forth count that marks a pair suspicious.
	MinTransfersEachWay int
}

func DefaultConfig() Config {
	return Config{
		SampleSize:          10,
		Concurrency:         4,
		FreshAge:            7 * 24 * time.Hour,
		FreshThreshold:      0.30,
		ClusterThreshold:    0.30,
		WashThreshold:       0.20,
		MinTransfersEachWay: 2,
	}
}

// Trace is a sampled holder annotated with what could be resolved about it.
type Trace struct {
	Holder        model.Holder
	FirstActivity time.Time
	AgeResolved   bool
	FundingSource string
}

// Report holds the three holder checks.
type Report struct {
	FreshWallets     model.CheckEntry
	WalletClustering model.CheckEntry
	WashTrading      model.CheckEntry
	Clusters         []Cluster
}

// Bundle converts the report into the provider bundle shape.
func (r Report) Bundle() *model.Bundle {
	b := model.NewBundle(checks.SourceHolders)
	b.Set(checks.FreshWallets, r.FreshWallets)
	b.Set(checks.WalletClustering, r.WalletClustering)
	b.Set(checks.WashTrading, r.WashTrading)
	return b
}

type Analyzer struct {
	cfg       Config
	resolvers map[model.Chain]WalletResolver
	now       func() time.Time
}

func NewAnalyzer(cfg Config, resolvers map[model.Chain]WalletResolver) *Analyzer {
	def := DefaultConfig()
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = def.SampleSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.FreshAge <= 0 {
		cfg.FreshAge = def.FreshAge
	}
	if cfg.FreshThreshold <= 0 {
		cfg.FreshThreshold = def.FreshThreshold
	}
	if cfg.ClusterThreshold <= 0 {
		cfg.ClusterThreshold = def.ClusterThreshold
	}
	if cfg.WashThreshold <= 0 {
		cfg.WashThreshold = def.WashThreshold
	}
	if cfg.MinTransfersEachWay <= 0 {
		cfg.MinTransfersEachWay = def.MinTransfersEachWay
	}
	return &Analyzer{cfg: cfg, resolvers: resolvers, now: time.Now}
}

// Analyze runs all three holder checks. It never fails: missing data turns
// into undecidable checks.
func (a *Analyzer) Analyze(ctx context.Context, chain model.Chain, topHolders []model.Holder, transfers []model.Transfer) Report {
	sample := a.sample(chain, topHolders)

	var traces []Trace
	if resolver, ok := a.resolvers[chain]; ok {
		traces = a.trace(ctx, chain, resolver, sample)
	} else {
		log.Warn().Str("chain", chain.String()).Msg("holders: no wallet resolver for chain")
		traces = make([]Trace, len(sample))
		for i, h := range sample {
			traces[i] = Trace{Holder: h}
		}
	}

	fresh := freshWallets(traces, a.now(), a.cfg.FreshAge, a.cfg.FreshThreshold)
	cluster, clusters := fundingClusters(traces, a.cfg.ClusterThreshold)
	wash := washTrading(chain, transfers, a.cfg.MinTransfersEachWay, a.cfg.WashThreshold)

	log.Debug().
		Str("chain", chain.String()).
		Int("sampled", len(sample)).
		Int("transfers", len(transfers)).
		Str("fresh", fresh.Outcome.String()).
		Str("clustering", cluster.Outcome.String()).
		Str("wash", wash.Outcome.String()).
		Msg("holders: analysis complete")

	return Report{FreshWallets: fresh, WalletClustering: cluster, WashTrading: wash, Clusters: clusters}
}

// sample takes the first SampleSize distinct, non-empty holder addresses.
func (a *Analyzer) sample(chain model.Chain, in []model.Holder) []model.Holder {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Holder, 0, a.cfg.SampleSize)
	for _, h := range in {
		if len(out) == a.cfg.SampleSize {
			break
		}
		key := chain.NormalizeAddress(h.Address)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		h.Address = key
		out = append(out, h)
	}
	return out
}

// trace resolves wallet age and funding source for each holder through a
// pool of at most cfg.Concurrency concurrent lookups. A failed lookup leaves
// the corresponding field unresolved.
func (a *Analyzer) trace(ctx context.Context, chain model.Chain, r WalletResolver, sample []model.Holder) []Trace {
	traces := make([]Trace, len(sample))
	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, h := range sample {
		traces[i].Holder = h
		g.Go(func() error {
			t := &traces[i]
			first, err := r.FirstActivity(ctx, h.Address)
			metrics.WalletLookups.WithLabelValues(chain.String(), "first_activity", lookupStatus(err)).Inc()
			if err != nil {
				log.Debug().Err(err).Str("wallet", h.Address).Msg("holders: first activity unresolved")
			} else if !first.IsZero() {
				t.FirstActivity = first
				t.AgeResolved = true
			}

			src, err := r.FundingSource(ctx, h.Address)
			metrics.WalletLookups.WithLabelValues(chain.String(), "funding_source", lookupStatus(err)).Inc()
			if err != nil {
				log.Debug().Err(err).Str("wallet", h.Address).Msg("holders: funding source unresolved")
			} else if src = chain.NormalizeAddress(src); src != "" && src != h.Address {
				t.FundingSource = src
			}
			return nil
		})
	}
	_ = g.Wait()
	return traces
}

func lookupStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
