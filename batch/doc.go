// Package batch packs measured fragments into token-bounded batches.
//
// Pack is a pure, deterministic greedy bin-fill: fragments are taken in input
// order and appended to the current batch until the next one would push it
// over the limit. Order is preserved within and across batches, so
// flattening a Plan reproduces the input exactly.
//
// A fragment whose own token count exceeds the limit is never split by Pack.
// It is placed alone in a batch flagged Oversized, and Resolve applies the
// configured OversizePolicy to such batches before dispatch:
//
//	plan, err := batch.Pack(frags, budget.BatchLimit())
//	if err != nil {
//	    return err // errors.Is(err, batch.ErrConfiguration)
//	}
//	plan, skipped, err := batch.Resolve(plan, batch.Truncate, truncator)
package batch
