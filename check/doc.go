// Package check runs a policy check end to end: it collects fragments from
// a Source, packs them into token-bounded batches, applies the oversize
// policy and submits every batch to a policy.Evaluator.
//
// Basic usage:
//
//	runner := &check.Runner{
//		Source:    src,
//		Evaluator: client,
//		Counter:   tokens.NewEstimatingCounter(),
//		Logger:    logger,
//		Options:   check.DefaultOptions(),
//	}
//	result, err := runner.Run(ctx)
//	if err != nil {
//		return err
//	}
//	if result.Violation {
//		// fail the job
//	}
package check
