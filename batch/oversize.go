package batch

import (
	"fmt"
	"strings"

	"github.com/whitecircle/policybot/fragment"
	"github.com/whitecircle/policybot/tokens"
)

// OversizePolicy selects what happens to a batch flagged Oversized.
type OversizePolicy string

const (
	// Isolate sends the oversized fragment as-is in its own request.
	Isolate OversizePolicy = "isolate"

	// Truncate cuts the fragment down to the plan's limit before sending.
	Truncate OversizePolicy = "truncate"

	// Skip drops the batch and reports it as skipped.
	Skip OversizePolicy = "skip"
)

// DefaultOversizePolicy avoids silently dropping content.
const DefaultOversizePolicy = Isolate

// ParseOversizePolicy converts a configuration value into a policy.
// The empty string selects DefaultOversizePolicy.
func ParseOversizePolicy(s string) (OversizePolicy, error) {
	switch p := OversizePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultOversizePolicy, nil
	case Isolate, Truncate, Skip:
		return p, nil
	default:
		return "", &ConfigurationError{Field: "oversize", Value: s}
	}
}

// Truncator shortens text to fit a token limit. *truncate.Truncator
// satisfies it.
type Truncator interface {
	Truncate(text string, maxTokens int) (string, bool)
	Counter() tokens.Counter
}

// Skipped records a fragment dropped by the Skip policy.
type Skipped struct {
	Fragment fragment.Fragment `json:"fragment"`
	Limit    int               `json:"limit"`
}

// Reason returns a one-line explanation suitable for logs and comments.
func (s Skipped) Reason() string {
	return fmt.Sprintf("%s is %d tokens, over the %d token batch limit",
		s.Fragment.SourceID, s.Fragment.Tokens, s.Limit)
}

// Resolve applies policy to every oversized batch of plan and returns the
// resulting plan. The input plan is not modified. tr is only required for
// the Truncate policy.
//
// Under Truncate, a fragment is re-measured after cutting; if the counter
// still reports it over the limit the batch stays flagged Oversized.
func Resolve(plan Plan, policy OversizePolicy, tr Truncator) (Plan, []Skipped, error) {
	switch policy {
	case Isolate, Skip:
	case Truncate:
		if tr == nil {
			return Plan{}, nil, &ConfigurationError{Field: "truncator", Value: nil}
		}
	default:
		return Plan{}, nil, &ConfigurationError{Field: "oversize", Value: string(policy)}
	}

	out := Plan{MaxTokens: plan.MaxTokens, Batches: make([]Batch, 0, len(plan.Batches))}
	var skipped []Skipped

	for _, b := range plan.Batches {
		if !b.Oversized || policy == Isolate {
			out.Batches = append(out.Batches, b)
			continue
		}

		switch policy {
		case Skip:
			for _, f := range b.Fragments {
				skipped = append(skipped, Skipped{Fragment: f, Limit: plan.MaxTokens})
			}
		case Truncate:
			frags := make([]fragment.Fragment, len(b.Fragments))
			total := 0
			for i, f := range b.Fragments {
				text, _ := tr.Truncate(f.Text, plan.MaxTokens)
				frags[i] = f.WithText(text, tr.Counter())
				total += frags[i].Tokens
			}
			out.Batches = append(out.Batches, Batch{
				Fragments:   frags,
				TotalTokens: total,
				Oversized:   total > plan.MaxTokens,
			})
		}
	}

	return out, skipped, nil
}
