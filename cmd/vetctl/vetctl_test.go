package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/model"
	"github.com/yourorg/vetting-worker/internal/orchestrator"
)

func TestManualResult(t *testing.T) {
	id := uuid.New()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	r, err := manualResult(id, "team_doxxed", "pass", "KYC done", now)
	require.NoError(t, err)
	assert.Equal(t, checks.TeamDoxxed, r.CheckType)
	assert.Equal(t, model.CheckCompleted, r.Status)
	assert.Equal(t, model.Passed, r.Outcome)
	assert.Equal(t, checks.SeverityHigh, r.Severity)
	assert.NoError(t, r.Validate())

	r, err = manualResult(id, "AUDIT_REPORT", "skip", "", now)
	require.NoError(t, err)
	assert.Equal(t, model.CheckSkipped, r.Status)
	assert.Equal(t, model.Undecidable, r.Outcome)
	assert.NoError(t, r.Validate())

	_, err = manualResult(id, "HONEYPOT_DETECTION", "pass", "", now)
	assert.ErrorContains(t, err, "automatic check")

	_, err = manualResult(id, "NOPE", "pass", "", now)
	assert.ErrorContains(t, err, "unknown check type")

	_, err = manualResult(id, "AUDIT_REPORT", "maybe", "", now)
	assert.Error(t, err)
}

func TestPrintTaxonomy_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTaxonomy(&buf, "json"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Len(t, rows, len(checks.Automatic.Types())+len(checks.Manual.Types()))
}

func TestPrintResult(t *testing.T) {
	score := 72.0
	risk := model.RiskMedium
	res := &orchestrator.RunResult{
		ProcessID:    uuid.New(),
		Status:       model.ProcessInReview,
		OverallScore: &score,
		RiskLevel:    &risk,
		Flags: model.Flags{
			Red: []model.RedFlag{{CheckType: checks.SellTax, Message: "Sell tax is 35.0%", Severity: checks.SeverityHigh}},
		},
		Errors: []orchestrator.SourceError{{Source: checks.SourceGoPlus, Error: "timeout"}},
	}

	viper.Set("output", "table")
	var table bytes.Buffer
	require.NoError(t, printResult(&table, res))
	assert.Contains(t, table.String(), "[HIGH] Sell tax is 35.0%")
	assert.Contains(t, table.String(), "goplus: timeout")

	viper.Set("output", "json")
	defer viper.Set("output", "table")
	var js bytes.Buffer
	require.NoError(t, printResult(&js, res))
	var v resultView
	require.NoError(t, json.Unmarshal(js.Bytes(), &v))
	assert.Equal(t, "IN_REVIEW", v.Status)
	assert.Equal(t, "MEDIUM", *v.RiskLevel)
	assert.Nil(t, v.AutomaticScore)
	assert.Empty(t, v.GreenFlags)
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"enqueue", "run", "rescore", "review", "decide", "taxonomy", "payload"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
