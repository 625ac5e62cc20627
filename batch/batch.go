package batch

import (
	"github.com/whitecircle/policybot/fragment"
)

// Batch is a group of fragments sent together in one evaluation request.
type Batch struct {
	Fragments   []fragment.Fragment `json:"fragments"`
	TotalTokens int                 `json:"total_tokens"`

	// Oversized marks a batch holding a single fragment that alone exceeds
	// the plan's limit.
	Oversized bool `json:"oversized,omitempty"`
}

// Len returns the number of fragments in the batch.
func (b Batch) Len() int {
	return len(b.Fragments)
}

// Plan is the ordered result of packing.
type Plan struct {
	Batches []Batch `json:"batches"`

	// MaxTokens is the limit the plan was packed against.
	MaxTokens int `json:"max_tokens"`
}

// Fragments returns every fragment in plan order.
func (p Plan) Fragments() []fragment.Fragment {
	out := make([]fragment.Fragment, 0, p.FragmentCount())
	for _, b := range p.Batches {
		out = append(out, b.Fragments...)
	}
	return out
}

// FragmentCount returns the total number of fragments across batches.
func (p Plan) FragmentCount() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b.Fragments)
	}
	return n
}

// TotalTokens returns the sum of all batch totals.
func (p Plan) TotalTokens() int {
	n := 0
	for _, b := range p.Batches {
		n += b.TotalTokens
	}
	return n
}

// Oversized returns the indexes of batches flagged oversized.
func (p Plan) Oversized() []int {
	var idx []int
	for i, b := range p.Batches {
		if b.Oversized {
			idx = append(idx, i)
		}
	}
	return idx
}

// Pack partitions fragments into batches of at most maxTokens tokens,
// preserving order. maxTokens must be positive.
func Pack(fragments []fragment.Fragment, maxTokens int) (Plan, error) {
	if maxTokens <= 0 {
		return Plan{}, &ConfigurationError{Field: "max_batch_tokens", Value: maxTokens}
	}

	plan := Plan{MaxTokens: maxTokens}
	var cur Batch

	flush := func() {
		if len(cur.Fragments) > 0 {
			plan.Batches = append(plan.Batches, cur)
		}
		cur = Batch{}
	}

	for _, f := range fragments {
		switch {
		case f.Tokens > maxTokens:
			flush()
			plan.Batches = append(plan.Batches, Batch{
				Fragments:   []fragment.Fragment{f},
				TotalTokens: f.Tokens,
				Oversized:   true,
			})
		case cur.TotalTokens+f.Tokens > maxTokens:
			flush()
			fallthrough
		default:
			cur.Fragments = append(cur.Fragments, f)
			cur.TotalTokens += f.Tokens
		}
	}
	flush()

	return plan, nil
}
