// Package pull reads pull-request data from GitHub and posts the bot's
// comment back, using go-github.
package pull

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/go-github/v61/github"
)

// ErrNotPullRequest indicates the workflow event has no pull_request payload.
var ErrNotPullRequest = errors.New("not a pull request event")

// Ref identifies one pull request.
type Ref struct {
	Owner   string
	Repo    string
	Number  int
	Title   string
	HeadSHA string
}

// String returns "owner/repo#number".
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ReadEvent decodes the workflow event payload at path.
func ReadEvent(path string) (*github.PullRequestEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}
	var ev github.PullRequestEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event file %s: %w", path, err)
	}
	return &ev, nil
}

// RefFromEvent builds a Ref from the event and the "owner/name" repository
// slug. Returns ErrNotPullRequest when the event carries no pull request.
func RefFromEvent(repository string, ev *github.PullRequestEvent) (Ref, error) {
	if ev == nil || ev.PullRequest == nil {
		return Ref{}, ErrNotPullRequest
	}
	owner, repo, err := SplitRepository(repository)
	if err != nil {
		return Ref{}, err
	}
	pr := ev.GetPullRequest()
	number := pr.GetNumber()
	if number == 0 {
		number = ev.GetNumber()
	}
	return Ref{
		Owner:   owner,
		Repo:    repo,
		Number:  number,
		Title:   pr.GetTitle(),
		HeadSHA: pr.GetHead().GetSHA(),
	}, nil
}

// SplitRepository splits "owner/name".
func SplitRepository(repository string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q: want owner/name", repository)
	}
	return owner, repo, nil
}
