package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/viper"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/orchestrator"
)

func printValue(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type resultView struct {
	ProcessID      string                     `json:"process_id"`
	Status         string                     `json:"status"`
	AutomaticScore *float64                   `json:"automatic_score"`
	ManualScore    *float64                   `json:"manual_score"`
	OverallScore   *float64                   `json:"overall_score"`
	RiskLevel      *string                    `json:"risk_level"`
	RedFlags       []string                   `json:"red_flags"`
	GreenFlags     []string                   `json:"green_flags"`
	Errors         []orchestrator.SourceError `json:"errors,omitempty"`
}

func viewOf(res *orchestrator.RunResult) resultView {
	v := resultView{
		ProcessID:      res.ProcessID.String(),
		Status:         string(res.Status),
		AutomaticScore: res.AutomaticScore,
		ManualScore:    res.ManualScore,
		OverallScore:   res.OverallScore,
		RedFlags:       []string{},
		GreenFlags:     []string{},
		Errors:         res.Errors,
	}
	if res.RiskLevel != nil {
		s := string(*res.RiskLevel)
		v.RiskLevel = &s
	}
	for _, f := range res.Flags.Red {
		v.RedFlags = append(v.RedFlags, fmt.Sprintf("[%s] %s", f.Severity, f.Message))
	}
	for _, f := range res.Flags.Green {
		v.GreenFlags = append(v.GreenFlags, f.Message)
	}
	return v
}

func printResult(w io.Writer, res *orchestrator.RunResult) error {
	v := viewOf(res)
	if viper.GetString("output") == "json" {
		return printValue(w, v)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "process\t%s\n", v.ProcessID)
	fmt.Fprintf(tw, "status\t%s\n", v.Status)
	fmt.Fprintf(tw, "automatic\t%s\n", scoreText(v.AutomaticScore))
	fmt.Fprintf(tw, "manual\t%s\n", scoreText(v.ManualScore))
	fmt.Fprintf(tw, "overall\t%s\n", scoreText(v.OverallScore))
	risk := "-"
	if v.RiskLevel != nil {
		risk = *v.RiskLevel
	}
	fmt.Fprintf(tw, "risk\t%s\n", risk)
	for _, f := range v.RedFlags {
		fmt.Fprintf(tw, "red flag\t%s\n", f)
	}
	for _, f := range v.GreenFlags {
		fmt.Fprintf(tw, "green flag\t%s\n", f)
	}
	for _, e := range v.Errors {
		fmt.Fprintf(tw, "source error\t%s: %s\n", e.Source, e.Error)
	}
	return tw.Flush()
}

func scoreText(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 0, 64)
}

func printTaxonomy(w io.Writer, format string) error {
	type row struct {
		Type     checks.Type     `json:"type"`
		Kind     checks.Kind     `json:"kind"`
		Title    string          `json:"title"`
		Source   checks.Source   `json:"source"`
		Weight   float64         `json:"weight"`
		Severity checks.Severity `json:"severity"`
	}
	var rows []row
	for _, tax := range []*checks.Taxonomy{checks.Automatic, checks.Manual} {
		for _, ct := range tax.Types() {
			def, _ := tax.Lookup(ct)
			rows = append(rows, row{ct, tax.Kind(), def.Title, def.Source, def.Weight, def.Severity})
		}
	}
	if format == "json" {
		return printValue(w, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tKIND\tSOURCE\tWEIGHT\tSEVERITY\tTITLE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\n", r.Type, r.Kind, r.Source, r.Weight, r.Severity, r.Title)
	}
	return tw.Flush()
}
