// Package app wires configuration into a ready orchestrator. Both the worker
// and the CLI build on it.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yourorg/vetting-worker/internal/cache"
	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/db"
	"github.com/yourorg/vetting-worker/internal/holders"
	"github.com/yourorg/vetting-worker/internal/model"
	"github.com/yourorg/vetting-worker/internal/orchestrator"
	"github.com/yourorg/vetting-worker/internal/providers"
	s3c "github.com/yourorg/vetting-worker/internal/s3"
)

type App struct {
	Config       config.Config
	Store        *db.Store
	Payloads     *s3c.Client
	Orchestrator *orchestrator.Orchestrator

	closers []func() error
}

// New opens the database, cache and payload archive and builds the
// orchestrator over every enabled provider.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, func() error { store.Close(); return nil })

	c, closeCache, err := cache.Open(ctx, cfg.RedisURL, cfg.CachePrefix)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.closers = append(a.closers, closeCache)

	var opts []orchestrator.Option
	if cfg.ArchiveEnabled() {
		payloads, err := s3c.New(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Region, cfg.S3UseSSL, cfg.PayloadsBucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		if err := payloads.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.PayloadsBucket).Msg("app: payload bucket check failed")
		}
		a.Payloads = payloads
		opts = append(opts, orchestrator.WithArchiver(payloads))
	}

	provs, derived := BuildProviders(cfg, c)
	a.Orchestrator = orchestrator.New(store, provs, derived, opts...)
	return a, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("app: close failed")
		}
	}
	a.closers = nil
}

// BuildProviders instantiates every enabled data source. The holder analysis
// source is added when at least one chain has an explorer.
func BuildProviders(cfg config.Config, c cache.Cache) ([]orchestrator.Provider, []orchestrator.DerivedProvider) {
	var (
		out     []orchestrator.Provider
		derived []orchestrator.DerivedProvider
	)
	explorers := map[model.Chain]holders.Explorer{}
	resolvers := map[model.Chain]holders.WalletResolver{}

	if pc, ok := cfg.Providers.Get(config.GoPlus); ok {
		out = append(out, providers.NewGoPlus(pc))
	}
	if pc, ok := cfg.Providers.Get(config.RugCheck); ok {
		out = append(out, providers.NewRugCheck(pc))
	}
	if pc, ok := cfg.Providers.Get(config.DexScreener); ok {
		out = append(out, providers.NewDexScreener(pc))
		derived = append(derived, providers.NewSocial())
	}
	if pc, ok := cfg.Providers.Get(config.Etherscan); ok {
		es := providers.NewEtherscan(pc)
		out = append(out, es)
		for _, chain := range []model.Chain{model.ChainEthereum, model.ChainBSC, model.ChainBase, model.ChainPolygon, model.ChainArbitrum} {
			if !es.Supports(chain) {
				continue
			}
			x := es.Explorer(chain)
			explorers[chain] = x
			resolvers[chain] = holders.NewCachedResolver(x, c, chain, cfg.CacheTTL)
		}
	}
	if pc, ok := cfg.Providers.Get(config.SolanaRPC); ok {
		sol := providers.NewSolanaRPC(pc)
		explorers[model.ChainSolana] = sol
		resolvers[model.ChainSolana] = holders.NewCachedResolver(sol, c, model.ChainSolana, cfg.CacheTTL)
	}

	if len(explorers) > 0 {
		hc := holders.DefaultConfig()
		hc.SampleSize = cfg.HolderSampleSize
		hc.Concurrency = cfg.HolderConcurrency
		out = append(out, holders.NewProvider(holders.NewAnalyzer(hc, resolvers), explorers))
	}

	names := make([]string, 0, len(out)+len(derived))
	for _, p := range out {
		names = append(names, p.Source().String())
	}
	for _, d := range derived {
		names = append(names, d.Source().String())
	}
	log.Info().Strs("sources", names).Int("explorer_chains", len(explorers)).Msg("app: providers configured")
	return out, derived
}
