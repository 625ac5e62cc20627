package tokens

// DefaultRequestLimit is the evaluation API's default per-request token limit.
const DefaultRequestLimit = 8192

// DefaultOverhead is reserved per request for the JSON envelope, policy
// names and metadata.
const DefaultOverhead = 256

// DefaultPerFragment is reserved per fragment for the source header that
// precedes its text in the request.
const DefaultPerFragment = 16

// RequestBudget describes how much of a single evaluation request is
// available for fragment text.
type RequestBudget struct {
	// RequestLimit is the maximum number of tokens the API accepts per request.
	RequestLimit int

	// Overhead is reserved once per request.
	Overhead int

	// PerFragment is reserved for every fragment header. It is not part of
	// the batch limit; callers add it to each fragment's measured cost.
	PerFragment int
}

// DefaultRequestBudget returns the budget for the default API limits.
func DefaultRequestBudget() RequestBudget {
	return RequestBudget{
		RequestLimit: DefaultRequestLimit,
		Overhead:     DefaultOverhead,
		PerFragment:  DefaultPerFragment,
	}
}

// BatchLimit returns the number of tokens available to fragments in one
// batch. The result may be zero or negative when Overhead consumes the whole
// request; the packer rejects such limits.
func (b RequestBudget) BatchLimit() int {
	return b.RequestLimit - b.Overhead
}

// FragmentCost returns the cost of a fragment with the given text tokens,
// including its header reservation.
func (b RequestBudget) FragmentCost(textTokens int) int {
	if b.PerFragment < 0 {
		return textTokens
	}
	return textTokens + b.PerFragment
}

// Remaining returns the tokens left in a batch after used tokens,
// clamped at zero.
func (b RequestBudget) Remaining(used int) int {
	remaining := b.BatchLimit() - used
	if remaining < 0 {
		return 0
	}
	return remaining
}
