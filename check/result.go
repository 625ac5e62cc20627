package check

import (
	"github.com/whitecircle/policybot/batch"
	"github.com/whitecircle/policybot/policy"
)

// Status is the overall outcome of a run.
type Status string

const (
	// StatusPassed means every batch was evaluated and none was flagged.
	StatusPassed Status = "passed"

	// StatusFailed means at least one batch was flagged.
	StatusFailed Status = "failed"

	// StatusSkipped means there was nothing to evaluate.
	StatusSkipped Status = "skipped"
)

// BatchResult pairs a dispatched batch with the service's verdict.
type BatchResult struct {
	Index     int             `json:"index"`
	Batch     batch.Batch     `json:"batch"`
	RequestID string          `json:"request_id"`
	Verdict   *policy.Verdict `json:"verdict"`
}

// Flagged reports whether the service found a violation in the batch.
func (r BatchResult) Flagged() bool {
	return r.Verdict != nil && r.Verdict.Violation
}

// Violation attributes flagged policies to a fragment.
type Violation struct {
	// Batch is the index of the batch the fragment was sent in.
	Batch int `json:"batch"`

	// SourceID names the flagged fragment. Empty when the service did not
	// say which message of the batch triggered the violation.
	SourceID string `json:"source_id,omitempty"`

	Policies []policy.PolicyResult `json:"policies"`
}

// Result is the aggregate of a run. Batches are in plan order regardless
// of the order evaluations completed in.
type Result struct {
	Batches   []BatchResult   `json:"batches"`
	Skipped   []batch.Skipped `json:"skipped,omitempty"`
	Violation bool            `json:"violation"`

	// Fragments is the number of fragments collected, including skipped ones.
	Fragments int `json:"fragments"`

	// Tokens is the number of tokens sent across all batches.
	Tokens int `json:"tokens"`
}

// Status returns the overall outcome.
func (r *Result) Status() Status {
	switch {
	case r.Violation:
		return StatusFailed
	case len(r.Batches) == 0:
		return StatusSkipped
	default:
		return StatusPassed
	}
}

// Violations lists flagged fragments in batch order. A flagged batch whose
// verdict names no valid message index yields a single entry without a SourceID.
func (r *Result) Violations() []Violation {
	var out []Violation
	for _, br := range r.Batches {
		if !br.Flagged() {
			continue
		}
		flagged := flaggedPolicies(br.Verdict)
		attributed := 0
		for _, i := range br.Verdict.FlaggedMessages {
			if i < 0 || i >= len(br.Batch.Fragments) {
				continue
			}
			out = append(out, Violation{
				Batch:    br.Index,
				SourceID: br.Batch.Fragments[i].SourceID,
				Policies: flagged,
			})
			attributed++
		}
		if attributed == 0 {
			out = append(out, Violation{Batch: br.Index, Policies: flagged})
		}
	}
	return out
}

func flaggedPolicies(v *policy.Verdict) []policy.PolicyResult {
	var out []policy.PolicyResult
	for _, p := range v.Policies {
		if p.Flagged {
			out = append(out, p)
		}
	}
	return out
}
