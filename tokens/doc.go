// Package tokens provides token counting and request budgeting for policy
// evaluation requests.
//
// The default Counter estimates tokens from rune counts (about 4 characters
// per token for English text and source code). Callers that have access to a
// real tokenizer wrap it with CounterFunc and pass it to the fragment
// builders; nothing in this module keeps a counter in package state.
//
// # Counter
//
//	counter := tokens.NewEstimatingCounter()
//	n := counter.Count("func main() {}")
//	ok := counter.FitsInLimit(patch, 4000)
//
// Wrapping an external tokenizer:
//
//	counter := tokens.CounterFunc(enc.CountTokens)
//
// # RequestBudget
//
// RequestBudget converts the evaluation API's per-request token limit into
// the per-batch limit handed to the packer, after reserving room for the
// request envelope and the header written in front of every fragment:
//
//	b := tokens.RequestBudget{RequestLimit: 8192, Overhead: 256, PerFragment: 16}
//	limit := b.BatchLimit()
package tokens
