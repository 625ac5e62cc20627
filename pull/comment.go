package pull

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v61/github"
)

// FindComment returns the id of the first issue comment on the pull request
// whose body contains marker, or 0 if there is none.
func (c *Client) FindComment(ctx context.Context, ref Ref, marker string) (int64, error) {
	opt := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, ref.Owner, ref.Repo, ref.Number, opt)
		if err != nil {
			return 0, fmt.Errorf("list comments for %s: %w", ref, err)
		}
		for _, cm := range comments {
			if strings.Contains(cm.GetBody(), marker) {
				return cm.GetID(), nil
			}
		}
		if resp.NextPage == 0 {
			return 0, nil
		}
		opt.Page = resp.NextPage
	}
}

// UpsertComment edits the comment carrying marker, or creates one.
// body must contain marker for later runs to find it.
func (c *Client) UpsertComment(ctx context.Context, ref Ref, marker, body string) (int64, error) {
	existing, err := c.FindComment(ctx, ref, marker)
	if err != nil {
		return 0, err
	}

	if existing != 0 {
		cm, _, err := c.gh.Issues.EditComment(ctx, ref.Owner, ref.Repo, existing,
			&github.IssueComment{Body: &body})
		if err != nil {
			return 0, fmt.Errorf("edit comment %d: %w", existing, err)
		}
		return cm.GetID(), nil
	}

	cm, _, err := c.gh.Issues.CreateComment(ctx, ref.Owner, ref.Repo, ref.Number,
		&github.IssueComment{Body: &body})
	if err != nil {
		return 0, fmt.Errorf("create comment on %s: %w", ref, err)
	}
	return cm.GetID(), nil
}

// DeleteComment removes the comment carrying marker, if any. Returns whether
// a comment was deleted.
func (c *Client) DeleteComment(ctx context.Context, ref Ref, marker string) (bool, error) {
	existing, err := c.FindComment(ctx, ref, marker)
	if err != nil || existing == 0 {
		return false, err
	}
	if _, err := c.gh.Issues.DeleteComment(ctx, ref.Owner, ref.Repo, existing); err != nil {
		return false, fmt.Errorf("delete comment %d: %w", existing, err)
	}
	return true, nil
}
