package checks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Weight(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, SeverityCritical.Weight())
	assert.Equal(t, 0.75, SeverityHigh.Weight())
	assert.Equal(t, 0.5, SeverityMedium.Weight())
	assert.Equal(t, 0.25, SeverityLow.Weight())
	assert.Equal(t, 0.0, Severity("BOGUS").Weight())
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	s, err := ParseSeverity(" high ")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, s)

	_, err = ParseSeverity("urgent")
	assert.Error(t, err)
}

func TestTaxonomies_AreDisjoint(t *testing.T) {
	t.Parallel()

	for _, ct := range Automatic.Types() {
		_, inManual := Manual.Lookup(ct)
		assert.Falsef(t, inManual, "%s is in both catalogs", ct)
	}
	for _, ct := range Manual.Types() {
		def, _ := Manual.Lookup(ct)
		assert.Equal(t, SourceManual, def.Source)
	}
}

func TestAutomatic_SourceCoverage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Source{
		SourceGoPlus, SourceRugCheck, SourceDexScreener, SourceSocial, SourceEtherscan, SourceHolders,
	}, Automatic.Sources())

	holders := Automatic.BySource(SourceHolders)
	require.Len(t, holders, 3)
	assert.Equal(t, FreshWallets, holders[0].Type)
	assert.Equal(t, WalletClustering, holders[1].Type)
	assert.Equal(t, WashTrading, holders[2].Type)
}

func TestSpec_EffectiveWeight(t *testing.T) {
	t.Parallel()

	honeypot, ok := Automatic.Lookup(HoneypotDetection)
	require.True(t, ok)
	assert.Equal(t, 1.0, honeypot.EffectiveWeight())

	mint, ok := Automatic.Lookup(MintFunction)
	require.True(t, ok)
	assert.InDelta(t, 0.5625, mint.EffectiveWeight(), 1e-9)
}

func TestNew_RejectsInvalidSpecs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		defs []Definition
	}{
		{"duplicate", []Definition{
			{Type: "A", Weight: 1, Severity: SeverityLow, Source: SourceManual},
			{Type: "A", Weight: 1, Severity: SeverityLow, Source: SourceManual},
		}},
		{"zero weight", []Definition{{Type: "A", Weight: 0, Severity: SeverityLow, Source: SourceManual}}},
		{"weight above one", []Definition{{Type: "A", Weight: 1.5, Severity: SeverityLow, Source: SourceManual}}},
		{"bad severity", []Definition{{Type: "A", Weight: 1, Severity: "NOPE", Source: SourceManual}}},
		{"no source", []Definition{{Type: "A", Weight: 1, Severity: SeverityLow}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(KindManual, tc.defs)
			assert.Error(t, err)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	ct, kind, ok := Resolve("AUDIT_REPORT")
	require.True(t, ok)
	assert.Equal(t, AuditReport, ct)
	assert.Equal(t, KindManual, kind)

	_, kind, ok = Resolve("WASH_TRADING")
	require.True(t, ok)
	assert.Equal(t, KindAutomatic, kind)

	_, _, ok = Resolve("NOT_A_CHECK")
	assert.False(t, ok)
}

func TestNotable_OnlyGreenFlagged(t *testing.T) {
	t.Parallel()

	for _, ct := range Automatic.Notable() {
		def, _ := Automatic.Lookup(ct)
		assert.NotEmpty(t, def.GreenFlag)
	}
	assert.NotContains(t, Automatic.Notable(), MintFunction)
	assert.Contains(t, Manual.Notable(), AuditReport)
}
