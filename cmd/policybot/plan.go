package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/whitecircle/policybot/check"
	"github.com/whitecircle/policybot/fragment"
)

func planCmd(g *globalFlags) *cobra.Command {
	var (
		asJSON   bool
		override overrides
	)

	cmd := &cobra.Command{
		Use:   "plan <patch-file>",
		Short: "Show how a unified diff would be batched, without calling the service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, _, err := g.loadConfig("")
			if err != nil {
				return err
			}
			if cfg, err = override.apply(cfg); err != nil {
				return err
			}
			opts, err := runnerOptions(cfg)
			if err != nil {
				return err
			}

			runner := &check.Runner{
				Source:  &check.PatchSource{Path: args[0], Filter: cfg.Paths.Filter()},
				Counter: newCounter(cfg),
				Logger:  logger,
				Options: opts,
			}
			prep, err := runner.Prepare(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(prep)
			}

			fmt.Fprintf(out, "%d fragments in %d batches (limit %d tokens per batch, policy %s)\n\n",
				prep.Fragments, len(prep.Plan.Batches), prep.Plan.MaxTokens, opts.Oversize)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BATCH\tFRAGMENTS\tTOKENS\tFREE\tOVERSIZED\tSOURCES")
			for i, b := range prep.Plan.Batches {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%t\t%s\n",
					i, b.Len(), b.TotalTokens, opts.Budget.Remaining(b.TotalTokens), b.Oversized, sourceList(b.Fragments))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			for _, s := range prep.Skipped {
				fmt.Fprintf(out, "skipped: %s\n", s.Reason())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	override.register(cmd)

	return cmd
}

func sourceList(frags []fragment.Fragment) string {
	ids := make([]string, len(frags))
	for i, f := range frags {
		ids[i] = f.SourceID
	}
	return strings.Join(ids, ", ")
}
