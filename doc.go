// Package policybot checks pull-request changes against content policies.
//
// A run collects fragments (diff hunks, full files, commit messages),
// measures each with a token counter, packs them into token-bounded
// batches and submits every batch to a policy evaluation service. Each
// subpackage can be used on its own:
//
//   - fragment: measured text units and their builders from diffs and commits
//   - batch: greedy, order-preserving batch packing and oversize policies
//   - tokens: token counting and request budgets
//   - truncate: token-aware text truncation strategies
//   - policy: evaluation service client, errors and a mock evaluator
//   - pull: GitHub pull-request data and the bot's comment
//   - check: end-to-end orchestration with bounded concurrency
//   - report: comment and summary rendering
//   - action: GitHub Actions inputs, outputs and workflow commands
//   - config: YAML/TOML/JSON configuration, env overrides and file watching
//
// # Quick Start
//
// Packing fragments:
//
//	import "github.com/whitecircle/policybot/batch"
//	counter := tokens.NewEstimatingCounter()
//	frags, _ := fragment.FromUnifiedDiff(diff, counter)
//	plan, err := batch.Pack(frags, 4096)
//
// Running a check:
//
//	runner := &check.Runner{Source: src, Evaluator: client, Options: check.DefaultOptions()}
//	result, err := runner.Run(ctx)
//
// The policybot command in cmd/policybot wires these together for GitHub
// Actions (policybot run) and local use (policybot scan).
package policybot
