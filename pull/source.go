package pull

import (
	"context"
	"log/slog"

	"github.com/whitecircle/policybot/fragment"
	"github.com/whitecircle/policybot/tokens"
)

// API is the subset of Client used to build fragments. Tests substitute
// a fake.
type API interface {
	Files(ctx context.Context, ref Ref) ([]File, error)
	Commits(ctx context.Context, ref Ref) ([]Commit, error)
	Content(ctx context.Context, ref Ref, path, at string) (string, error)
}

// Source turns a pull request into fragments.
//
// Order: commit messages first, in commit order; then, per changed file in
// API order, its diff hunks followed by its full head content.
type Source struct {
	API    API
	Ref    Ref
	Filter fragment.PathFilter
	Logger *slog.Logger

	IncludeCommits   bool
	IncludeFullFiles bool
}

// Fragments implements check.Source.
func (s *Source) Fragments(ctx context.Context, counter tokens.Counter) ([]fragment.Fragment, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var out []fragment.Fragment

	if s.IncludeCommits {
		commits, err := s.API.Commits(ctx, s.Ref)
		if err != nil {
			return nil, err
		}
		for _, c := range commits {
			out = append(out, fragment.FromCommit(c.SHA, c.Message, counter))
		}
	}

	files, err := s.API.Files(ctx, s.Ref)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if !s.Filter.Allows(f.Path) {
			logger.Debug("skipping filtered file", slog.String("path", f.Path))
			continue
		}

		hunks, err := fragment.FromPatch(f.Path, f.Patch, counter)
		if err != nil {
			return nil, err
		}
		out = append(out, hunks...)

		// Files without a patch are binary or too large for the API to diff.
		if !s.IncludeFullFiles || f.Removed() || f.Patch == "" {
			continue
		}
		content, err := s.API.Content(ctx, s.Ref, f.Path, s.Ref.HeadSHA)
		if err != nil {
			return nil, err
		}
		out = append(out, fragment.FromFile(f.Path, content, counter))
	}

	logger.Info("collected fragments",
		slog.String("pr", s.Ref.String()),
		slog.Int("files", len(files)),
		slog.Int("fragments", len(out)))
	return out, nil
}
