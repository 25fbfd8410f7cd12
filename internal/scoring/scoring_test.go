package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/model"
)

func completed(ct checks.Type, o model.Outcome) model.CheckResult {
	return model.CheckResult{CheckType: ct, Status: model.CheckCompleted, Outcome: o}
}

func ptr(v float64) *float64 { return &v }

func TestWeightedScore_NoCompletedChecksIsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WeightedScore(nil, checks.Automatic))
	assert.Nil(t, WeightedScore([]model.CheckResult{
		{CheckType: checks.HoneypotDetection, Status: model.CheckSkipped},
		{CheckType: checks.MintFunction, Status: model.CheckFailed},
		completed("UNKNOWN_CHECK", model.Failed),
	}, checks.Automatic))
}

func TestWeightedScore_AllPassAndAllFail(t *testing.T) {
	t.Parallel()

	types := []checks.Type{checks.HoneypotDetection, checks.MintFunction, checks.PairAge, checks.TradingVolume}

	var pass, fail []model.CheckResult
	for _, ct := range types {
		pass = append(pass, completed(ct, model.Passed))
		fail = append(fail, completed(ct, model.Failed))
	}

	got := WeightedScore(pass, checks.Automatic)
	require.NotNil(t, got)
	assert.Equal(t, 100.0, *got)

	got = WeightedScore(fail, checks.Automatic)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)
}

func TestWeightedScore_HoneypotAndMint(t *testing.T) {
	t.Parallel()

	got := WeightedScore([]model.CheckResult{
		completed(checks.HoneypotDetection, model.Passed),
		completed(checks.MintFunction, model.Failed),
	}, checks.Automatic)

	require.NotNil(t, got)
	assert.Equal(t, 64.0, *got)
}

func TestWeightedScore_ExcludesNonCompletedAndUnknown(t *testing.T) {
	t.Parallel()

	base := []model.CheckResult{
		completed(checks.HoneypotDetection, model.Passed),
		completed(checks.MintFunction, model.Failed),
	}
	noisy := append(append([]model.CheckResult(nil), base...),
		model.CheckResult{CheckType: checks.SellTax, Status: model.CheckFailed},
		model.CheckResult{CheckType: checks.FreshWallets, Status: model.CheckSkipped},
		completed(checks.AuditReport, model.Failed), // manual check in the automatic set
	)

	assert.Equal(t, *WeightedScore(base, checks.Automatic), *WeightedScore(noisy, checks.Automatic))
}

func TestOverallScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		auto, manual *float64
		want         *float64
	}{
		{"auto only", ptr(80), nil, ptr(80)},
		{"manual only", nil, ptr(70), ptr(70)},
		{"both", ptr(80), ptr(70), ptr(74)},
		{"rounded", ptr(63), ptr(0), ptr(25)},
		{"neither", nil, nil, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := OverallScore(tc.auto, tc.manual)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestRiskLevelFor(t *testing.T) {
	t.Parallel()

	assert.Nil(t, RiskLevelFor(nil))

	tests := []struct {
		score float64
		want  model.RiskLevel
	}{
		{100, model.RiskLow},
		{80, model.RiskLow},
		{79, model.RiskMedium},
		{60, model.RiskMedium},
		{59, model.RiskHigh},
		{40, model.RiskHigh},
		{39, model.RiskExtreme},
		{0, model.RiskExtreme},
	}
	for _, tc := range tests {
		got := RiskLevelFor(ptr(tc.score))
		require.NotNil(t, got)
		assert.Equalf(t, tc.want, *got, "score %.0f", tc.score)
	}
}

func TestRedFlags(t *testing.T) {
	t.Parallel()

	results := []model.CheckResult{
		{CheckType: checks.SellTax, Status: model.CheckCompleted, Outcome: model.Failed, Details: "Sell tax is 35%"},
		completed(checks.PairAge, model.Failed),           // LOW: no flag
		completed(checks.HoneypotDetection, model.Failed), // CRITICAL, no details
		completed(checks.MintFunction, model.Passed),
		{CheckType: checks.HiddenOwner, Status: model.CheckSkipped},
		{CheckType: checks.BuyTax, Status: model.CheckCompleted, Outcome: model.Failed, Severity: checks.SeverityHigh, Details: "Buy tax is 40%"},
	}

	flags := RedFlags(results, checks.Automatic, model.FlagAutomatic)
	require.Len(t, flags, 3)

	assert.Equal(t, checks.BuyTax, flags[0].CheckType)
	assert.Equal(t, checks.SeverityHigh, flags[0].Severity, "row severity overrides catalog")

	assert.Equal(t, checks.HoneypotDetection, flags[1].CheckType)
	assert.Equal(t, "Honeypot detection failed", flags[1].Message)
	assert.Equal(t, checks.SeverityCritical, flags[1].Severity)

	assert.Equal(t, checks.SellTax, flags[2].CheckType)
	assert.Equal(t, "Sell tax is 35%", flags[2].Message)
	assert.Equal(t, model.FlagAutomatic, flags[2].Source)
}

func TestGreenFlags_OnlyNotable(t *testing.T) {
	t.Parallel()

	results := []model.CheckResult{
		completed(checks.OwnershipRenounced, model.Passed),
		completed(checks.TradingVolume, model.Passed), // not notable
		completed(checks.ContractVerified, model.Failed),
		{CheckType: checks.LPLocked, Status: model.CheckSkipped},
	}

	flags := GreenFlags(results, checks.Automatic, model.FlagAutomatic)
	require.Len(t, flags, 1)
	assert.Equal(t, checks.OwnershipRenounced, flags[0].CheckType)
	assert.Equal(t, "Contract ownership has been renounced", flags[0].Message)
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	t.Parallel()

	automatic := []model.CheckResult{
		completed(checks.MintFunction, model.Failed),
		completed(checks.HoneypotDetection, model.Passed),
		completed(checks.ContractVerified, model.Passed),
	}
	manual := []model.CheckResult{
		completed(checks.AuditReport, model.Passed),
		completed(checks.TeamDoxxed, model.Failed),
	}

	first := Evaluate(automatic, manual)
	reversed := []model.CheckResult{automatic[2], automatic[1], automatic[0]}
	second := Evaluate(reversed, []model.CheckResult{manual[1], manual[0]})

	assert.Equal(t, first, second)
	require.NotNil(t, first.ManualScore)
	require.NotNil(t, first.OverallScore)
	require.NotNil(t, first.RiskLevel)

	// manual: audit 1.0 earned of 1.0 + 0.5625 -> 64
	assert.Equal(t, 64.0, *first.ManualScore)
	assert.Len(t, first.Flags.Red, 2)
	assert.Equal(t, model.FlagManual, first.Flags.Red[1].Source)
	assert.Len(t, first.Flags.Green, 3)
}

func TestEvaluate_NoChecks(t *testing.T) {
	t.Parallel()

	res := Evaluate(nil, nil)
	assert.Nil(t, res.AutomaticScore)
	assert.Nil(t, res.ManualScore)
	assert.Nil(t, res.OverallScore)
	assert.Nil(t, res.RiskLevel)
	assert.Empty(t, res.Flags.Red)
	assert.Empty(t, res.Flags.Green)
}
