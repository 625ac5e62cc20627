package fragment

import (
	"bytes"
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/whitecircle/policybot/tokens"
)

// FromCommit builds a CommitMessage fragment. The source id is the
// abbreviated commit SHA.
func FromCommit(sha, message string, counter tokens.Counter) Fragment {
	return New("commit:"+shortSHA(sha), CommitMessage, strings.TrimSpace(message), counter)
}

// FromFile builds a FullFile fragment for the content of path.
func FromFile(path, content string, counter tokens.Counter) Fragment {
	return New(path, FullFile, content, counter)
}

// FromPatch splits the per-file patch GitHub reports for path (hunks only,
// no file headers) into one Diff fragment per hunk, in order.
func FromPatch(path, patch string, counter tokens.Counter) ([]Fragment, error) {
	if strings.TrimSpace(patch) == "" {
		return nil, nil
	}
	hunks, err := godiff.ParseHunks([]byte(patch))
	if err != nil {
		return nil, fmt.Errorf("parse patch for %s: %w", path, err)
	}
	return fromHunks(path, hunks, counter)
}

// FromUnifiedDiff parses multi-file unified diff output (as produced by
// git diff) into per-hunk Diff fragments, in file order. Deleted files are
// attributed to their original path.
func FromUnifiedDiff(data []byte, counter tokens.Counter) ([]Fragment, error) {
	fileDiffs, err := godiff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	var out []Fragment
	for _, fd := range fileDiffs {
		path := DiffPath(fd)
		frags, err := fromHunks(path, fd.Hunks, counter)
		if err != nil {
			return nil, err
		}
		out = append(out, frags...)
	}
	return out, nil
}

// DiffPath returns the repository path a file diff applies to.
func DiffPath(fd *godiff.FileDiff) string {
	name := strings.TrimPrefix(fd.NewName, "b/")
	if name == "" || name == "/dev/null" {
		name = strings.TrimPrefix(fd.OrigName, "a/")
	}
	return name
}

func fromHunks(path string, hunks []*godiff.Hunk, counter tokens.Counter) ([]Fragment, error) {
	out := make([]Fragment, 0, len(hunks))
	for _, h := range hunks {
		text, err := godiff.PrintHunks([]*godiff.Hunk{h})
		if err != nil {
			return nil, fmt.Errorf("print hunk for %s: %w", path, err)
		}
		id := fmt.Sprintf("%s#L%d", path, h.NewStartLine)
		out = append(out, New(id, Diff, string(bytes.TrimRight(text, "\n")), counter))
	}
	return out, nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
