package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"RunsTotal", RunsTotal},
		{"RunDuration", RunDuration},
		{"CheckResults", CheckResults},
		{"SourceErrors", SourceErrors},
		{"ProviderRequests", ProviderRequests},
		{"ProviderLatency", ProviderLatency},
		{"WalletLookups", WalletLookups},
		{"CacheRequests", CacheRequests},
		{"WorkerProcessesClaimed", WorkerProcessesClaimed},
		{"WorkerInFlight", WorkerInFlight},
	}

	for _, v := range vars {
		assert.NotNilf(t, v.val, "%s should not be nil", v.name)
	}
}

func TestMetrics_IncrementNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { RunsTotal.WithLabelValues("solana", "ok").Inc() })
	assert.NotPanics(t, func() { RunDuration.WithLabelValues("solana").Observe(1.2) })
	assert.NotPanics(t, func() { CheckResults.WithLabelValues("goplus", "COMPLETED").Inc() })
	assert.NotPanics(t, func() { SourceErrors.WithLabelValues("rugcheck").Inc() })
	assert.NotPanics(t, func() { ProviderRequests.WithLabelValues("dexscreener", "2xx").Inc() })
	assert.NotPanics(t, func() { ProviderLatency.WithLabelValues("dexscreener").Observe(0.3) })
	assert.NotPanics(t, func() { WalletLookups.WithLabelValues("ethereum", "funding_source", "ok").Inc() })
	assert.NotPanics(t, func() { CacheRequests.WithLabelValues("first_activity", "hit").Inc() })
	assert.NotPanics(t, func() { WorkerProcessesClaimed.Inc() })
	assert.NotPanics(t, func() { WorkerInFlight.Inc(); WorkerInFlight.Dec() })
}
