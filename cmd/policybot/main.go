package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// exitError carries its own exit code and has already been reported.
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "policybot",
		Short:         "Check pull requests against content policies",
		Long:          "policybot packs pull-request changes into token-bounded batches and checks them against a policy evaluation service.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (default "+defaultConfigHint+")")
	rootCmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd(g))
	rootCmd.AddCommand(scanCmd(g))
	rootCmd.AddCommand(planCmd(g))
	rootCmd.AddCommand(statsCmd(g))
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}
