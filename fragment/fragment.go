// Package fragment defines the unit of text evaluated by the policy service
// and builds fragments from pull-request sources.
//
// A Fragment is measured exactly once, when it is constructed, using the
// tokens.Counter supplied by the caller. Its Tokens field is then carried
// unchanged through packing and dispatch.
package fragment

import (
	"fmt"
	"strings"

	"github.com/whitecircle/policybot/tokens"
)

// Kind identifies what a fragment's text was taken from.
type Kind string

const (
	// Diff is a single unified-diff hunk.
	Diff Kind = "diff"

	// FullFile is the complete content of a changed file at the head commit.
	FullFile Kind = "full_file"

	// CommitMessage is the message of one commit in the pull request.
	CommitMessage Kind = "commit_message"
)

// Label returns a human-readable name used in request headers and comments.
func (k Kind) Label() string {
	switch k {
	case Diff:
		return "diff hunk"
	case FullFile:
		return "file"
	case CommitMessage:
		return "commit message"
	default:
		return string(k)
	}
}

// Fragment is one measured piece of text. Treat it as immutable: packing,
// truncation and dispatch produce new values instead of editing fields.
type Fragment struct {
	SourceID string `json:"source_id"`
	Kind     Kind   `json:"kind"`
	Text     string `json:"text"`
	Tokens   int    `json:"tokens"`
}

// New measures text with counter and returns the fragment.
func New(sourceID string, kind Kind, text string, counter tokens.Counter) Fragment {
	return Fragment{
		SourceID: sourceID,
		Kind:     kind,
		Text:     text,
		Tokens:   counter.Count(text),
	}
}

// WithText returns a copy of f carrying text, re-measured with counter.
// Used when an oversize policy rewrites a fragment.
func (f Fragment) WithText(text string, counter tokens.Counter) Fragment {
	return New(f.SourceID, f.Kind, text, counter)
}

// Path returns the repository path f was taken from, or "" for commit
// messages.
func (f Fragment) Path() string {
	switch f.Kind {
	case Diff:
		if i := strings.LastIndex(f.SourceID, "#L"); i >= 0 {
			return f.SourceID[:i]
		}
		return f.SourceID
	case FullFile:
		return f.SourceID
	default:
		return ""
	}
}

// String returns "kind source (N tokens)".
func (f Fragment) String() string {
	return fmt.Sprintf("%s %s (%d tokens)", f.Kind, f.SourceID, f.Tokens)
}

// TotalTokens sums the token counts of fragments.
func TotalTokens(fragments []Fragment) int {
	total := 0
	for _, f := range fragments {
		total += f.Tokens
	}
	return total
}
