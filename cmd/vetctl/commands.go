package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yourorg/vetting-worker/internal/app"
	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/config"
	"github.com/yourorg/vetting-worker/internal/model"
)

// withApp loads configuration from the environment and hands a connected app
// to fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func parseProcessID(args []string) (uuid.UUID, error) {
	if len(args) == 0 {
		return uuid.Nil, errors.New("process id is required")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid process id %q: %w", args[0], err)
	}
	return id, nil
}

func newEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "enqueue",
		Short:   "Register a token and queue a vetting process for it",
		Example: "vetctl enqueue --chain solana --address DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		RunE: func(cmd *cobra.Command, _ []string) error {
			chain, err := model.ParseChain(viper.GetString("enqueue.chain"))
			if err != nil {
				return err
			}
			address := strings.TrimSpace(viper.GetString("enqueue.address"))
			if address == "" {
				return errors.New("--address is required")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.EnsureSchema(ctx); err != nil {
					return fmt.Errorf("ensure schema: %w", err)
				}
				tok, err := a.Store.CreateToken(ctx, chain, address)
				if err != nil {
					return err
				}
				proc, err := a.Store.CreateProcess(ctx, tok.ID)
				if err != nil {
					return err
				}
				return printValue(cmd.OutOrStdout(), map[string]string{
					"process_id": proc.ID.String(),
					"token_id":   tok.ID.String(),
					"status":     string(proc.Status),
				})
			})
		},
	}
	cmd.Flags().String("chain", "", "Chain: solana, ethereum, bsc, base, polygon, arbitrum")
	cmd.Flags().String("address", "", "Token contract or mint address")
	_ = viper.BindPFlag("enqueue.chain", cmd.Flags().Lookup("chain"))
	_ = viper.BindPFlag("enqueue.address", cmd.Flags().Lookup("address"))
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <process-id>",
		Short: "Run every automatic check for a process now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProcessID(args)
			if err != nil {
				return err
			}
			timeout := viper.GetDuration("run.timeout")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				res, err := a.Orchestrator.RunChecks(ctx, id)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().Duration("timeout", 2*time.Minute, "Overall run timeout")
	_ = viper.BindPFlag("run.timeout", cmd.Flags().Lookup("timeout"))
	return cmd
}

func newRescoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rescore [process-id]",
		Short: "Recompute scores and flags from stored checks",
		Long:  "Recompute scores and flags without calling any provider. With --open, every AUTO_COMPLETE and IN_REVIEW process is rescored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			open := viper.GetBool("rescore.open")
			if !open && len(args) == 0 {
				return errors.New("pass a process id or --open")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if !open {
					id, err := parseProcessID(args)
					if err != nil {
						return err
					}
					res, err := a.Orchestrator.Rescore(ctx, id)
					if err != nil {
						return err
					}
					return printResult(cmd.OutOrStdout(), res)
				}

				procs, err := a.Store.ListByStatus(ctx, []model.ProcessStatus{model.ProcessAutoComplete, model.ProcessInReview}, viper.GetInt("rescore.limit"))
				if err != nil {
					return err
				}
				var failed int
				for _, p := range procs {
					if _, err := a.Orchestrator.Rescore(ctx, p.ID); err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "rescore %s: %v\n", p.ID, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rescored %d processes (%d failed)\n", len(procs)-failed, failed)
				return nil
			})
		},
	}
	cmd.Flags().Bool("open", false, "Rescore every open process")
	cmd.Flags().Int("limit", 500, "Maximum processes to rescore with --open")
	_ = viper.BindPFlag("rescore.open", cmd.Flags().Lookup("open"))
	_ = viper.BindPFlag("rescore.limit", cmd.Flags().Lookup("limit"))
	return cmd
}

// manualResult builds the stored row for a reviewer verdict.
func manualResult(processID uuid.UUID, checkName, verdict, details string, now time.Time) (model.CheckResult, error) {
	ct, kind, ok := checks.Resolve(strings.ToUpper(strings.TrimSpace(checkName)))
	if !ok {
		return model.CheckResult{}, fmt.Errorf("unknown check type %q", checkName)
	}
	if kind != checks.KindManual {
		return model.CheckResult{}, fmt.Errorf("%s is an automatic check and cannot be reviewed", ct)
	}
	def, _ := checks.Manual.Lookup(ct)

	r := model.CheckResult{
		ProcessID: processID,
		CheckType: ct,
		Severity:  def.Severity,
		Details:   details,
		CheckedAt: now.UTC(),
	}
	switch strings.ToLower(verdict) {
	case "pass", "passed":
		score := 100.0
		r.Status, r.Outcome, r.Score = model.CheckCompleted, model.Passed, &score
	case "fail", "failed":
		score := 0.0
		r.Status, r.Outcome, r.Score = model.CheckCompleted, model.Failed, &score
	case "skip", "skipped":
		r.Status = model.CheckSkipped
	default:
		return model.CheckResult{}, fmt.Errorf("verdict must be pass, fail or skip, got %q", verdict)
	}
	return r, nil
}

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "review <process-id>",
		Short:   "Record a manual review verdict and rescore",
		Example: "vetctl review 6f1c1f5e-4b7a-4d8e-9c3a-2f1e0d9c8b7a --check TEAM_DOXXED --verdict pass --details 'KYC with auditor'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProcessID(args)
			if err != nil {
				return err
			}
			r, err := manualResult(id, viper.GetString("review.check"), viper.GetString("review.verdict"), viper.GetString("review.details"), time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.UpsertManualCheck(ctx, r, viper.GetString("review.reviewer")); err != nil {
					return err
				}
				res, err := a.Orchestrator.Rescore(ctx, id)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().String("check", "", "Manual check type, e.g. AUDIT_REPORT")
	cmd.Flags().String("verdict", "", "pass, fail or skip")
	cmd.Flags().String("details", "", "Reviewer notes")
	cmd.Flags().String("reviewer", "", "Reviewer name")
	for _, f := range []string{"check", "verdict", "details", "reviewer"} {
		_ = viper.BindPFlag("review."+f, cmd.Flags().Lookup(f))
	}
	return cmd
}

func newDecideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "decide <process-id> <approve|reject>",
		Short:     "Approve or reject a reviewed process",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"approve", "reject"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProcessID(args)
			if err != nil {
				return err
			}
			var verdict model.ProcessStatus
			switch strings.ToLower(args[1]) {
			case "approve":
				verdict = model.ProcessApproved
			case "reject":
				verdict = model.ProcessRejected
			default:
				return fmt.Errorf("decision must be approve or reject, got %q", args[1])
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Orchestrator.Decide(ctx, id, verdict, viper.GetString("decide.note")); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id, verdict)
				return nil
			})
		},
	}
	cmd.Flags().String("note", "", "Decision note for the activity log")
	_ = viper.BindPFlag("decide.note", cmd.Flags().Lookup("note"))
	return cmd
}

func newTaxonomyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "List every check type with its weight, severity and source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printTaxonomy(cmd.OutOrStdout(), viper.GetString("output"))
		},
	}
}

func newPayloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payload <process-id> <source>",
		Short: "Print the archived raw provider payload of a run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProcessID(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Payloads == nil {
					return errors.New("payload archive is not configured (set S3_ENDPOINT)")
				}
				raw, err := a.Payloads.GetPayload(ctx, id, checks.Source(args[1]))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(append(raw, '\n'))
				return err
			})
		},
	}
}
