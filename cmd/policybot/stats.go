package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/whitecircle/policybot/action"
	"github.com/whitecircle/policybot/pull"
	"github.com/whitecircle/policybot/report"
)

func statsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report file, line and comment counts for the current pull request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			gha := action.New(out, nil)
			logger, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				gha.Fail(err)
				return &exitError{code: 1}
			}

			fmt.Fprintln(out, "Starting policybot statistics...")
			if err := runStats(cmd, gha); err != nil {
				logger.Error("stats failed", slog.Any("error", err))
				gha.Fail(err)
				return &exitError{code: 1}
			}
			return nil
		},
	}
}

func runStats(cmd *cobra.Command, gha *action.Action) error {
	in, err := gha.Inputs(false)
	if err != nil {
		return err
	}
	ev, err := pull.ReadEvent(in.EventPath)
	if err != nil {
		return err
	}
	ref, err := pull.RefFromEvent(in.Repository, ev)
	if errors.Is(err, pull.ErrNotPullRequest) {
		gha.Skip()
		return nil
	}
	if err != nil {
		return err
	}

	gh, err := pull.NewClient(nil, in.GitHubToken, in.APIEndpoint)
	if err != nil {
		return err
	}
	stats, err := gh.Stats(cmd.Context(), ref)
	if err != nil {
		return err
	}

	text, err := report.Stats(ref, stats)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)

	gha.SetResult(action.StatusSuccess, report.StatsMessage(ref, stats))
	return nil
}
