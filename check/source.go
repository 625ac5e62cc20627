package check

import (
	"context"
	"fmt"
	"os"

	"github.com/whitecircle/policybot/fragment"
	"github.com/whitecircle/policybot/tokens"
)

// Source produces the fragments to check, measured with counter.
// *pull.Source is the pull-request implementation.
type Source interface {
	Fragments(ctx context.Context, counter tokens.Counter) ([]fragment.Fragment, error)
}

// PatchSource reads a multi-file unified diff from disk. The file is read
// on every call so a watcher can re-run the same source after edits.
type PatchSource struct {
	Path   string
	Filter fragment.PathFilter
}

// Fragments implements Source.
func (s *PatchSource) Fragments(ctx context.Context, counter tokens.Counter) ([]fragment.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}
	frags, err := fragment.FromUnifiedDiff(data, counter)
	if err != nil {
		return nil, err
	}

	out := frags[:0]
	for _, f := range frags {
		if s.Filter.Allows(f.Path()) {
			out = append(out, f)
		}
	}
	return out, nil
}
