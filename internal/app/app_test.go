package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourorg/vetting-worker/internal/cache"
	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/orchestrator"
)

func sources(ps []orchestrator.Provider) []checks.Source {
	out := make([]checks.Source, len(ps))
	for i, p := range ps {
		out[i] = p.Source()
	}
	return out
}

func TestBuildProviders_Defaults(t *testing.T) {
	cfg := config.Config{Providers: config.DefaultProviders(), HolderSampleSize: 10, HolderConcurrency: 4}

	provs, derived := BuildProviders(cfg, cache.NewMemory())
	assert.Equal(t, []checks.Source{
		checks.SourceGoPlus,
		checks.SourceRugCheck,
		checks.SourceDexScreener,
		checks.SourceEtherscan,
		checks.SourceHolders,
	}, sources(provs))
	if assert.Len(t, derived, 1) {
		assert.Equal(t, checks.SourceSocial, derived[0].Source())
		assert.Equal(t, checks.SourceDexScreener, derived[0].Base())
	}
}

func TestBuildProviders_Disabled(t *testing.T) {
	p := config.DefaultProviders()
	for _, name := range []string{config.DexScreener, config.SolanaRPC} {
		pc := p.Providers[name]
		pc.Disabled = true
		p.Providers[name] = pc
	}

	provs, derived := BuildProviders(config.Config{Providers: p}, cache.NewMemory())
	// Etherscan has no key, so no EVM explorer and no holder analysis.
	assert.Equal(t, []checks.Source{checks.SourceGoPlus, checks.SourceRugCheck, checks.SourceEtherscan}, sources(provs))
	assert.Empty(t, derived)
}
