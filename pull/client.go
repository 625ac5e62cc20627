package pull

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v61/github"
)

// DefaultAPIEndpoint is the public GitHub REST endpoint.
const DefaultAPIEndpoint = "https://api.github.com"

const perPage = 100

// File is one changed file in a pull request.
type File struct {
	Path      string
	Status    string // added, modified, removed, renamed, ...
	Additions int
	Deletions int
	Changes   int
	Patch     string // empty for binary or very large files
}

// Removed reports whether the file was deleted by the pull request.
func (f File) Removed() bool {
	return f.Status == "removed"
}

// Commit is one commit in a pull request.
type Commit struct {
	SHA     string
	Message string
}

// Client wraps the GitHub REST API calls the bot needs.
type Client struct {
	gh *github.Client
}

// NewClient creates a client authenticated with token. endpoint overrides the
// API base URL (GitHub Enterprise); empty selects DefaultAPIEndpoint.
// httpClient may be nil.
func NewClient(httpClient *http.Client, token, endpoint string) (*Client, error) {
	gh := github.NewClient(httpClient)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if endpoint != "" && strings.TrimRight(endpoint, "/") != DefaultAPIEndpoint {
		u, err := url.Parse(strings.TrimRight(endpoint, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse api endpoint: %w", err)
		}
		gh.BaseURL = u
	}
	return &Client{gh: gh}, nil
}

// Files lists every changed file, following pagination.
func (c *Client) Files(ctx context.Context, ref Ref) ([]File, error) {
	var all []File
	opt := &github.ListOptions{PerPage: perPage}
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, ref.Owner, ref.Repo, ref.Number, opt)
		if err != nil {
			return nil, fmt.Errorf("list files for %s: %w", ref, err)
		}
		for _, f := range files {
			all = append(all, File{
				Path:      f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Changes:   f.GetChanges(),
				Patch:     f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// Commits lists the pull request's commits in order, following pagination.
func (c *Client) Commits(ctx context.Context, ref Ref) ([]Commit, error) {
	var all []Commit
	opt := &github.ListOptions{PerPage: perPage}
	for {
		commits, resp, err := c.gh.PullRequests.ListCommits(ctx, ref.Owner, ref.Repo, ref.Number, opt)
		if err != nil {
			return nil, fmt.Errorf("list commits for %s: %w", ref, err)
		}
		for _, rc := range commits {
			all = append(all, Commit{
				SHA:     rc.GetSHA(),
				Message: rc.GetCommit().GetMessage(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// Content returns the decoded content of path at ref (a commit SHA or branch).
func (c *Client) Content(ctx context.Context, ref Ref, path, at string) (string, error) {
	file, _, _, err := c.gh.Repositories.GetContents(ctx, ref.Owner, ref.Repo, path,
		&github.RepositoryContentGetOptions{Ref: at})
	if err != nil {
		return "", fmt.Errorf("get contents of %s: %w", path, err)
	}
	if file == nil {
		return "", fmt.Errorf("get contents of %s: path is a directory", path)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode contents of %s: %w", path, err)
	}
	return content, nil
}

// ReviewComments counts the pull request's review comments.
func (c *Client) ReviewComments(ctx context.Context, ref Ref) (int, error) {
	n := 0
	opt := &github.PullRequestListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, ref.Owner, ref.Repo, ref.Number, opt)
		if err != nil {
			return 0, fmt.Errorf("list review comments for %s: %w", ref, err)
		}
		n += len(comments)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return n, nil
}
