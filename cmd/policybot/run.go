package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whitecircle/policybot/action"
	"github.com/whitecircle/policybot/check"
	"github.com/whitecircle/policybot/config"
	"github.com/whitecircle/policybot/policy"
	"github.com/whitecircle/policybot/pull"
	"github.com/whitecircle/policybot/report"
)

func runCmd(g *globalFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check the pull request of the current GitHub Actions run",
		Long: `Check the pull request that triggered the current workflow run.

Inputs are read from INPUT_* variables (github_token, api_key,
api_endpoint, policy_endpoint, config_path) and the runner context from
GITHUB_REPOSITORY and GITHUB_EVENT_PATH. Results are written to
GITHUB_OUTPUT as status, message, violations, batches and the
rendered report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gha := action.New(cmd.OutOrStdout(), nil)
			logger, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				gha.Fail(err)
				return &exitError{code: 1}
			}

			failed, err := runAction(cmd.Context(), gha, g, logger, dryRun)
			if err != nil {
				err = explainError(err)
				logger.Error("check failed", slog.Any("error", err))
				gha.Fail(err)
				return &exitError{code: 1}
			}
			if failed {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "use a local evaluator and do not comment")

	return cmd
}

// runAction checks the pull request and reports through gha. It returns
// true when the job should fail because of a violation.
func runAction(ctx context.Context, gha *action.Action, g *globalFlags, logger *slog.Logger, dryRun bool) (bool, error) {
	in, err := gha.Inputs(!dryRun)
	if err != nil {
		return false, err
	}

	ev, err := pull.ReadEvent(in.EventPath)
	if err != nil {
		return false, err
	}
	ref, err := pull.RefFromEvent(in.Repository, ev)
	if errors.Is(err, pull.ErrNotPullRequest) {
		gha.Skip()
		return false, nil
	}
	if err != nil {
		return false, err
	}

	cfg, cfgPath, err := g.loadConfig(in.ConfigPath)
	if err != nil {
		return false, err
	}
	logger.Debug("loaded config", slog.String("path", cfgPath))

	ctx, cancel := withTimeout(ctx, cfg)
	defer cancel()

	gh, err := pull.NewClient(nil, in.GitHubToken, in.APIEndpoint)
	if err != nil {
		return false, err
	}

	var eval policy.Evaluator
	if dryRun {
		eval = policy.NewMockEvaluator()
	} else {
		eval, err = newEvaluator(cfg, in.PolicyEndpoint, in.APIKey, logger)
		if err != nil {
			return false, err
		}
	}

	opts, err := runnerOptions(cfg)
	if err != nil {
		return false, err
	}
	opts.Metadata = map[string]string{
		"repository":   in.Repository,
		"pull_request": strconv.Itoa(ref.Number),
		"head_sha":     ref.HeadSHA,
	}

	runner := &check.Runner{
		Source: &pull.Source{
			API:              gh,
			Ref:              ref,
			Filter:           cfg.Paths.Filter(),
			Logger:           logger,
			IncludeCommits:   cfg.IncludeCommits,
			IncludeFullFiles: cfg.IncludeFullFiles,
		},
		Evaluator: eval,
		Counter:   newCounter(cfg),
		Logger:    logger,
		Options:   opts,
	}

	gha.Infof("Analyzing PR #%d: %s", ref.Number, ref.Title)
	res, err := runner.Run(ctx)
	if err != nil {
		return false, err
	}

	body, err := report.Render(res, report.Options{RunURL: in.RunURL})
	if err != nil {
		return false, err
	}
	gha.Summary(body)

	annotate(gha, res)

	if !dryRun {
		if err := publish(ctx, gh, ref, cfg, res, body, logger); err != nil {
			return false, err
		}
	}

	gha.SetResult(string(res.Status()), report.Summary(res))
	gha.SetOutput("violations", strconv.Itoa(len(res.Violations())))
	gha.SetOutput("batches", strconv.Itoa(len(res.Batches)))
	gha.SetMultilineOutput("report", body)

	return res.Violation && cfg.FailOnViolation, nil
}

// annotate writes one workflow annotation per violation and skipped
// fragment.
func annotate(gha *action.Action, res *check.Result) {
	if len(res.Batches) > 0 {
		gha.Group(fmt.Sprintf("Checked %d batches", len(res.Batches)))
		for _, br := range res.Batches {
			gha.Infof("batch %d: %d fragments, %d tokens, violation=%t",
				br.Index, br.Batch.Len(), br.Batch.TotalTokens, br.Flagged())
		}
		gha.EndGroup()
	}

	for _, v := range res.Violations() {
		names := make([]string, len(v.Policies))
		for i, p := range v.Policies {
			names[i] = p.Name
		}
		source := v.SourceID
		if source == "" {
			source = fmt.Sprintf("batch %d", v.Batch)
		}
		gha.Errorf("Policy violation in %s: %s", source, strings.Join(names, ", "))
	}
	for _, s := range res.Skipped {
		gha.Warningf("Not checked: %s", s.Reason())
	}
}

// publish keeps the bot's pull-request comment in step with res.
func publish(ctx context.Context, gh *pull.Client, ref pull.Ref, cfg config.Config, res *check.Result, body string, logger *slog.Logger) error {
	if !cfg.Comment {
		return nil
	}

	if res.Violation {
		id, err := gh.UpsertComment(ctx, ref, report.Marker, body)
		if err != nil {
			return err
		}
		logger.Info("posted comment", slog.String("pr", ref.String()), slog.Int64("comment_id", id))
		return nil
	}

	if cfg.ClearOnPass {
		deleted, err := gh.DeleteComment(ctx, ref, report.Marker)
		if err != nil {
			return err
		}
		if deleted {
			logger.Info("removed comment", slog.String("pr", ref.String()))
		}
		return nil
	}

	// A passing run updates an earlier failure comment but never creates one.
	existing, err := gh.FindComment(ctx, ref, report.Marker)
	if err != nil || existing == 0 {
		return err
	}
	_, err = gh.UpsertComment(ctx, ref, report.Marker, body)
	return err
}
