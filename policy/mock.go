package policy

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MockEvaluator is a test double for Evaluator.
// It supports a fixed verdict, keyword-triggered violations, and custom
// handlers.
type MockEvaluator struct {
	mu       sync.Mutex
	verdict  Verdict
	err      error
	keywords map[string]string
	evalFunc func(ctx context.Context, req Request) (*Verdict, error)

	// Calls tracks all requests for assertions.
	Calls []Request
}

// NewMockEvaluator creates a mock that passes every request.
func NewMockEvaluator() *MockEvaluator {
	return &MockEvaluator{}
}

// WithVerdict configures the verdict returned for every request.
func (m *MockEvaluator) WithVerdict(v Verdict) *MockEvaluator {
	m.verdict = v
	return m
}

// WithError configures the mock to always return an error.
func (m *MockEvaluator) WithError(err error) *MockEvaluator {
	m.err = err
	return m
}

// WithKeyword flags policyName for any message containing keyword.
// Used by dry runs to exercise the violation path without the service.
func (m *MockEvaluator) WithKeyword(keyword, policyName string) *MockEvaluator {
	if m.keywords == nil {
		m.keywords = make(map[string]string)
	}
	m.keywords[keyword] = policyName
	return m
}

// WithEvaluateFunc sets a custom handler. It takes precedence over all
// other configuration.
func (m *MockEvaluator) WithEvaluateFunc(fn func(ctx context.Context, req Request) (*Verdict, error)) *MockEvaluator {
	m.evalFunc = fn
	return m
}

// Evaluate implements Evaluator.
func (m *MockEvaluator) Evaluate(ctx context.Context, req Request) (*Verdict, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn, err, keywords, verdict := m.evalFunc, m.err, m.keywords, m.verdict
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	v := verdict
	v.RequestID = req.ID
	v.Policies = append([]PolicyResult(nil), verdict.Policies...)
	v.FlaggedMessages = append([]int(nil), verdict.FlaggedMessages...)

	sorted := slices.Sorted(maps.Keys(keywords))
	for i, msg := range req.Messages {
		hit := false
		for _, kw := range sorted {
			if !strings.Contains(msg.Content, kw) {
				continue
			}
			hit = true
			v.Policies = append(v.Policies, PolicyResult{
				Name:    keywords[kw],
				Flagged: true,
				Score:   1,
				Reason:  "matched " + kw,
			})
		}
		if hit {
			v.Violation = true
			v.FlaggedMessages = append(v.FlaggedMessages, i)
		}
	}
	return &v, nil
}

// CallCount returns the number of Evaluate calls.
func (m *MockEvaluator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
