package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/whitecircle/policybot/check"
	"github.com/whitecircle/policybot/config"
	"github.com/whitecircle/policybot/policy"
	"github.com/whitecircle/policybot/report"
)

type scanOptions struct {
	patch    string
	endpoint string
	apiKey   string
	dryRun   bool
	keywords []string
	asJSON   bool
	override overrides
}

func scanCmd(g *globalFlags) *cobra.Command {
	var (
		opts    scanOptions
		watch   bool
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "scan <patch-file>",
		Short: "Check a unified diff file locally",
		Long: `Check a unified diff (as produced by git diff) against the policy service.

The endpoint and API key default to POLICYBOT_ENDPOINT and POLICYBOT_API_KEY,
which may be loaded from a .env file with --env-file. With --dry-run a local
evaluator flags fragments containing the --flag keywords instead.

Exits 1 when a violation is found and fail_on_violation is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.patch = args[0]
			logger, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if envFile != "" {
				if err := config.LoadEnvFile(envFile); err != nil {
					return err
				}
			}
			if opts.endpoint == "" {
				opts.endpoint = os.Getenv(config.EnvPrefix + "ENDPOINT")
			}
			if opts.apiKey == "" {
				opts.apiKey = os.Getenv(config.EnvPrefix + "API_KEY")
			}

			if !watch {
				res, failOn, err := scanOnce(cmd.Context(), cmd.OutOrStdout(), g, opts, logger)
				if err != nil {
					return explainError(err)
				}
				if res.Violation && failOn {
					return &exitError{code: 1}
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchScan(ctx, cmd.OutOrStdout(), g, opts, logger)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-run when the patch or config file changes")
	cmd.Flags().StringVar(&envFile, "env-file", "", "load environment variables from a .env file")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "policy service base URL")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "policy service API key")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "evaluate locally without calling the service")
	cmd.Flags().StringArrayVar(&opts.keywords, "flag", nil, "with --dry-run, flag fragments containing keyword (keyword=policy)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	opts.override.register(cmd)

	return cmd
}

// scanOnce loads the config and patch from disk and checks them. It also
// reports whether the config asks for a violation to fail.
func scanOnce(ctx context.Context, w io.Writer, g *globalFlags, opts scanOptions, logger *slog.Logger) (*check.Result, bool, error) {
	cfg, _, err := g.loadConfig("")
	if err != nil {
		return nil, false, err
	}
	if cfg, err = opts.override.apply(cfg); err != nil {
		return nil, false, err
	}
	ctx, cancel := withTimeout(ctx, cfg)
	defer cancel()

	var eval policy.Evaluator
	if opts.dryRun {
		eval, err = parseKeywords(opts.keywords)
	} else {
		eval, err = newEvaluator(cfg, opts.endpoint, opts.apiKey, logger)
	}
	if err != nil {
		return nil, false, err
	}

	runnerOpts, err := runnerOptions(cfg)
	if err != nil {
		return nil, false, err
	}
	runnerOpts.Metadata = map[string]string{"patch": opts.patch}

	runner := &check.Runner{
		Source:    &check.PatchSource{Path: opts.patch, Filter: cfg.Paths.Filter()},
		Evaluator: eval,
		Counter:   newCounter(cfg),
		Logger:    logger,
		Options:   runnerOpts,
	}
	res, err := runner.Run(ctx)
	if err != nil {
		return nil, false, err
	}

	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return nil, false, err
		}
		return res, cfg.FailOnViolation, nil
	}

	body, err := report.Render(res, report.Options{})
	if err != nil {
		return nil, false, err
	}
	fmt.Fprintln(w, body)
	return res, cfg.FailOnViolation, nil
}

// watchScan runs a scan, then again on every change of the patch or config
// file until ctx is done. Scan errors are logged, not returned.
func watchScan(ctx context.Context, w io.Writer, g *globalFlags, opts scanOptions, logger *slog.Logger) error {
	run := func() {
		if _, _, err := scanOnce(ctx, w, g, opts, logger); err != nil {
			logger.Error("scan failed", slog.Any("error", explainError(err)))
		}
	}
	run()

	configPath := g.configPath
	if configPath == "" {
		configPath = config.DefaultPath
	}
	logger.Info("watching for changes", slog.String("patch", opts.patch), slog.String("config", configPath))

	return config.Watch(ctx, logger, func(path string) {
		logger.Info("change detected, re-running", slog.String("path", path))
		run()
	}, opts.patch, configPath)
}
