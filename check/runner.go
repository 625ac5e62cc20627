package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/whitecircle/policybot/batch"
	"github.com/whitecircle/policybot/policy"
	"github.com/whitecircle/policybot/tokens"
	"github.com/whitecircle/policybot/truncate"
)

// ErrNoEvaluator is returned by Run when the runner has no Evaluator.
var ErrNoEvaluator = errors.New("check: no evaluator")

// ErrNoSource is returned by Run when the runner has no Source.
var ErrNoSource = errors.New("check: no source")

// Options tune a run.
type Options struct {
	// Budget derives the batch limit and the per-fragment header cost.
	Budget tokens.RequestBudget

	// Oversize decides what happens to fragments larger than a batch.
	// Empty selects batch.DefaultOversizePolicy.
	Oversize batch.OversizePolicy

	// Truncate is the strategy used when Oversize is batch.Truncate and the
	// runner builds its own truncator.
	Truncate truncate.Strategy

	// Marker replaces cut text when the runner builds its own truncator.
	// Empty uses truncate.DefaultMarker.
	Marker string

	// Policies are forwarded to the service with every request.
	Policies []string

	// Metadata is attached to every request, alongside the batch index.
	Metadata map[string]string

	// Concurrency bounds in-flight evaluations. 1 or less is sequential.
	Concurrency int
}

// DefaultOptions returns options matching the default configuration.
func DefaultOptions() Options {
	return Options{
		Budget:      tokens.DefaultRequestBudget(),
		Oversize:    batch.DefaultOversizePolicy,
		Truncate:    truncate.FromEnd,
		Concurrency: 1,
	}
}

// Runner wires a Source to an Evaluator.
type Runner struct {
	Source    Source
	Evaluator policy.Evaluator

	// Counter measures fragment text. Defaults to the estimating counter.
	// The runner adds Options.Budget.PerFragment to every measurement so
	// batch totals account for message headers.
	Counter tokens.Counter

	// Truncator overrides the truncator built from Options.Truncate. It
	// should measure with the same costs as the runner.
	Truncator batch.Truncator

	Logger  *slog.Logger
	Options Options

	// newID generates request IDs. Tests replace it.
	newID func() string
}

// Counting returns the counter the runner measures fragments with:
// Counter plus the per-fragment header reservation.
func (r *Runner) Counting() tokens.Counter {
	base := r.Counter
	if base == nil {
		base = tokens.NewEstimatingCounter()
	}
	budget := r.Options.Budget
	if budget.PerFragment == 0 {
		return base
	}
	return tokens.CounterFunc(func(text string) int {
		return budget.FragmentCost(base.Count(text))
	})
}

// Prepared is a resolved batch plan ready for dispatch.
type Prepared struct {
	Plan    batch.Plan      `json:"plan"`
	Skipped []batch.Skipped `json:"skipped,omitempty"`

	// Fragments is the number of fragments the source produced.
	Fragments int `json:"fragments"`
}

// Prepare collects fragments and returns the resolved batch plan without
// calling the evaluator.
func (r *Runner) Prepare(ctx context.Context) (*Prepared, error) {
	if r.Source == nil {
		return nil, ErrNoSource
	}
	counter := r.Counting()

	frags, err := r.Source.Fragments(ctx, counter)
	if err != nil {
		return nil, fmt.Errorf("collect fragments: %w", err)
	}

	plan, err := batch.Pack(frags, r.Options.Budget.BatchLimit())
	if err != nil {
		return nil, err
	}

	oversize := r.Options.Oversize
	if oversize == "" {
		oversize = batch.DefaultOversizePolicy
	}
	tr := r.Truncator
	if tr == nil && oversize == batch.Truncate {
		t := truncate.New(r.Options.Truncate, counter)
		if r.Options.Marker != "" {
			t = t.WithMarker(r.Options.Marker)
		}
		tr = t
	}
	resolved, skipped, err := batch.Resolve(plan, oversize, tr)
	if err != nil {
		return nil, err
	}

	logger := r.logger()
	for _, i := range resolved.Oversized() {
		b := resolved.Batches[i]
		logger.Warn("batch exceeds token limit",
			slog.Int("batch", i),
			slog.String("source", b.Fragments[0].SourceID),
			slog.Int("tokens", b.TotalTokens),
			slog.Int("limit", resolved.MaxTokens))
	}
	for _, s := range skipped {
		logger.Warn("skipping oversized fragment", slog.String("reason", s.Reason()))
	}
	return &Prepared{Plan: resolved, Skipped: skipped, Fragments: len(frags)}, nil
}

// Run collects, packs and evaluates. An evaluation error for any batch
// cancels the remaining ones and fails the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.Evaluator == nil {
		return nil, ErrNoEvaluator
	}

	prep, err := r.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	plan := prep.Plan

	logger := r.logger()
	logger.Info("packed fragments",
		slog.Int("fragments", prep.Fragments),
		slog.Int("batches", len(plan.Batches)),
		slog.Int("tokens", plan.TotalTokens()),
		slog.Int("limit", plan.MaxTokens))

	results := make([]BatchResult, len(plan.Batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Options.Concurrency, 1))
	for i, b := range plan.Batches {
		g.Go(func() error {
			br, err := r.evaluate(gctx, i, b)
			if err != nil {
				return fmt.Errorf("evaluate batch %d: %w", i, err)
			}
			results[i] = br
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Batches:   results,
		Skipped:   prep.Skipped,
		Fragments: prep.Fragments,
		Tokens:    plan.TotalTokens(),
	}
	for _, br := range results {
		if br.Flagged() {
			res.Violation = true
		}
	}

	logger.Info("check complete",
		slog.String("status", string(res.Status())),
		slog.Int("violations", len(res.Violations())),
		slog.Int("skipped", len(prep.Skipped)))
	return res, nil
}

func (r *Runner) evaluate(ctx context.Context, index int, b batch.Batch) (BatchResult, error) {
	id := policy.NewRequestID()
	if r.newID != nil {
		id = r.newID()
	}

	meta := maps.Clone(r.Options.Metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta["batch"] = strconv.Itoa(index)

	req := policy.NewRequest(id, b, r.Options.Policies, meta)
	verdict, err := r.Evaluator.Evaluate(ctx, req)
	if err != nil {
		return BatchResult{}, err
	}

	r.logger().Debug("batch evaluated",
		slog.Int("batch", index),
		slog.String("request_id", id),
		slog.Int("fragments", b.Len()),
		slog.Int("tokens", b.TotalTokens),
		slog.Bool("violation", verdict.Violation))

	return BatchResult{Index: index, Batch: b, RequestID: id, Verdict: verdict}, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
