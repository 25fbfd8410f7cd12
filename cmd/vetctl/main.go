package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yourorg/vetting-worker/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vetctl",
		Short:         "Operate the token vetting pipeline",
		Long:          "vetctl enqueues tokens for vetting, runs or rescores processes, records manual review verdicts and inspects archived provider payloads.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.Setup(viper.GetString("log-level"), "console", os.Stderr)
		},
	}

	root.PersistentFlags().StringP("output", "o", "table", "Output format: table or json")
	root.PersistentFlags().String("log-level", "warn", "Log level")
	_ = viper.BindPFlag("output", root.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))

	// VETCTL_OUTPUT, VETCTL_LOG_LEVEL, ...
	viper.SetEnvPrefix("VETCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	root.AddCommand(
		newEnqueueCmd(),
		newRunCmd(),
		newRescoreCmd(),
		newReviewCmd(),
		newDecideCmd(),
		newTaxonomyCmd(),
		newPayloadCmd(),
	)
	return root
}

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
