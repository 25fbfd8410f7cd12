package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/vetting")
	t.Setenv("PROVIDERS_FILE", "")
	t.Setenv("WORKER_CONCURRENCY", "")
	t.Setenv("ETHERSCAN_API_KEY", "k-123")
	t.Setenv("SOLANA_RPC_URL", "https://rpc.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.WorkerConcurrency)
	assert.Equal(t, 10, cfg.HolderSampleSize)
	assert.Equal(t, 4, cfg.HolderConcurrency)
	assert.Equal(t, 15*time.Minute, cfg.StaleAfter)

	es, ok := cfg.Providers.Get(Etherscan)
	require.True(t, ok)
	assert.Equal(t, "k-123", es.APIKey)

	sol, ok := cfg.Providers.Get(SolanaRPC)
	require.True(t, ok)
	assert.Equal(t, "https://rpc.example", sol.BaseURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/vetting")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("HOLDER_CONCURRENCY", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.True(t, cfg.S3UseSSL)
	assert.Equal(t, 4, cfg.HolderConcurrency)
}

func TestParseProviders_MergesOverDefaults(t *testing.T) {
	t.Parallel()

	p, err := ParseProviders([]byte(`
providers:
  goplus:
    rps: 3
    timeout: 4s
    breaker:
      consecutive_failures: 2
  rugcheck:
    disabled: true
`))
	require.NoError(t, err)

	gp, ok := p.Get(GoPlus)
	require.True(t, ok)
	assert.Equal(t, 3.0, gp.RPS)
	assert.Equal(t, 4*time.Second, gp.Timeout)
	assert.Equal(t, uint32(2), gp.Breaker.ConsecutiveFailures)
	assert.Equal(t, "https://api.gopluslabs.io", gp.BaseURL)
	assert.Equal(t, 30*time.Second, gp.Breaker.OpenTimeout)

	_, ok = p.Get(RugCheck)
	assert.False(t, ok)

	_, ok = p.Get(DexScreener)
	assert.True(t, ok)
}

func TestParseProviders_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ParseProviders([]byte("providers: [not, a, map]"))
	assert.Error(t, err)

	_, err = ParseProviders([]byte(`
providers:
  custom:
    rps: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestLoadProviders_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  dexscreener:\n    base_url: http://127.0.0.1:9999\n"), 0o600))

	p, err := LoadProviders(path)
	require.NoError(t, err)
	ds, _ := p.Get(DexScreener)
	assert.Equal(t, "http://127.0.0.1:9999", ds.BaseURL)

	_, err = LoadProviders(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
