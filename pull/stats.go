package pull

import "context"

// Stats summarises a pull request's size.
type Stats struct {
	Files     []File
	Additions int
	Deletions int
	Comments  int
}

// LineChanges returns additions plus deletions.
func (s Stats) LineChanges() int {
	return s.Additions + s.Deletions
}

// Stats collects changed files and review-comment counts for ref.
func (c *Client) Stats(ctx context.Context, ref Ref) (Stats, error) {
	files, err := c.Files(ctx, ref)
	if err != nil {
		return Stats{}, err
	}
	comments, err := c.ReviewComments(ctx, ref)
	if err != nil {
		return Stats{}, err
	}

	s := Stats{Files: files, Comments: comments}
	for _, f := range files {
		s.Additions += f.Additions
		s.Deletions += f.Deletions
	}
	return s, nil
}
