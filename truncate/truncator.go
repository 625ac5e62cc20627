package truncate

import (
	"fmt"
	"strings"

	"github.com/whitecircle/policybot/tokens"
)

// Strategy defines which part of the text is removed.
type Strategy int

const (
	// FromEnd removes content from the end (default).
	FromEnd Strategy = iota

	// FromMiddle removes content from the middle, keeping start and end.
	FromMiddle

	// FromStart removes content from the start.
	FromStart
)

// DefaultMarker is inserted where content was removed.
const DefaultMarker = "\n[... truncated by policybot ...]\n"

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case FromEnd:
		return "end"
	case FromMiddle:
		return "middle"
	case FromStart:
		return "start"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration name ("end", "middle", "start")
// into a Strategy. The empty string selects FromEnd.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "end":
		return FromEnd, nil
	case "middle":
		return FromMiddle, nil
	case "start":
		return FromStart, nil
	default:
		return FromEnd, fmt.Errorf("unknown truncation strategy %q", name)
	}
}

// Truncator cuts text to fit within token limits.
// It holds no mutable state after construction and is safe for concurrent use.
type Truncator struct {
	counter  tokens.Counter
	strategy Strategy
	marker   string
}

// New creates a truncator with the given strategy. A nil counter selects
// the default estimating counter.
func New(strategy Strategy, counter tokens.Counter) *Truncator {
	if counter == nil {
		counter = tokens.NewEstimatingCounter()
	}
	return &Truncator{
		counter:  counter,
		strategy: strategy,
		marker:   DefaultMarker,
	}
}

// WithMarker sets the text inserted where content was removed.
func (t *Truncator) WithMarker(marker string) *Truncator {
	t.marker = marker
	return t
}

// Counter returns the counter used to measure text.
func (t *Truncator) Counter() tokens.Counter {
	return t.counter
}

// Truncate reduces the text to fit within maxTokens.
// Returns the resulting text and whether anything was removed.
func (t *Truncator) Truncate(text string, maxTokens int) (string, bool) {
	if t.counter.FitsInLimit(text, maxTokens) {
		return text, false
	}

	switch t.strategy {
	case FromMiddle:
		return t.truncateMiddle(text, maxTokens), true
	case FromStart:
		return t.truncateStart(text, maxTokens), true
	default:
		return t.truncateEnd(text, maxTokens), true
	}
}
