package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whitecircle/policybot/batch"
	"github.com/whitecircle/policybot/check"
	"github.com/whitecircle/policybot/config"
	"github.com/whitecircle/policybot/policy"
	"github.com/whitecircle/policybot/tokens"
)

const defaultConfigHint = config.DefaultPath

// exitError is an error that signals a specific exit code
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

type globalFlags struct {
	configPath string
	logFormat  string
	verbose    bool
}

// logger builds the command's logger writing to w.
func (g *globalFlags) logger(w io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if g.verbose {
		opts.Level = slog.LevelDebug
	}
	switch strings.ToLower(g.logFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q: want text or json", g.logFormat)
	}
}

// loadConfig loads the config file named by the --config flag, fallback or
// the default path, in that order.
func (g *globalFlags) loadConfig(fallback string) (config.Config, string, error) {
	path := g.configPath
	if path == "" {
		path = fallback
	}
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

func runnerOptions(cfg config.Config) (check.Options, error) {
	oversize, err := cfg.OversizePolicy()
	if err != nil {
		return check.Options{}, err
	}
	strategy, err := cfg.TruncateStrategy()
	if err != nil {
		return check.Options{}, err
	}
	opts := check.DefaultOptions()
	opts.Budget = cfg.Budget()
	opts.Oversize = oversize
	opts.Truncate = strategy
	opts.Marker = cfg.TruncateMarker
	opts.Policies = cfg.Policies
	opts.Concurrency = cfg.Concurrency
	return opts, nil
}

// overrides holds config values set on the command line.
type overrides struct {
	policies []string
	oversize string
}

func (o *overrides) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringArrayVar(&o.policies, "policy", nil, "policy to evaluate (repeatable; replaces the configured list)")
	fs.StringVar(&o.oversize, "oversize", "", "oversize policy: isolate, truncate or skip")
}

func (o overrides) apply(cfg config.Config) (config.Config, error) {
	if len(o.policies) > 0 {
		cfg = cfg.WithPolicies(o.policies...)
	}
	if o.oversize != "" {
		p, err := batch.ParseOversizePolicy(o.oversize)
		if err != nil {
			return cfg, fmt.Errorf("--oversize: %w", err)
		}
		cfg = cfg.WithOversize(p)
	}
	return cfg, nil
}

func newCounter(cfg config.Config) tokens.Counter {
	return tokens.NewEstimatingCounterWithRatio(cfg.CharsPerToken)
}

func newEvaluator(cfg config.Config, endpoint, apiKey string, logger *slog.Logger) (policy.Evaluator, error) {
	// In the config file 0 retries means none; the client treats 0 as
	// "use the default".
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return policy.NewHTTPClient(policy.ClientConfig{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		RateLimit:  cfg.RateLimit,
		MaxRetries: retries,
		Logger:     logger,
	})
}

// parseKeywords turns "keyword=policy" pairs into a mock evaluator.
func parseKeywords(pairs []string) (*policy.MockEvaluator, error) {
	mock := policy.NewMockEvaluator()
	for _, pair := range pairs {
		keyword, name, ok := strings.Cut(pair, "=")
		if !ok || keyword == "" || name == "" {
			return nil, fmt.Errorf("invalid --flag %q: want keyword=policy", pair)
		}
		mock.WithKeyword(keyword, name)
	}
	return mock, nil
}

func withTimeout(ctx context.Context, cfg config.Config) (context.Context, context.CancelFunc) {
	if cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cfg.Timeout.Std())
}

// explainError adds a hint to errors a user can act on.
func explainError(err error) error {
	if policy.IsAuthError(err) {
		return fmt.Errorf("policy service rejected the API key: %w", err)
	}
	return err
}
