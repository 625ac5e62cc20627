package policy

import (
	"fmt"
	"strings"

	"github.com/whitecircle/policybot/batch"
	"github.com/whitecircle/policybot/fragment"
)

// Role is the author role attached to a message.
type Role string

const (
	// RoleUser marks content authored by the pull-request author.
	RoleUser Role = "user"
)

// Message is one fragment as sent to the service.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single evaluation call. One batch maps to one request.
type Request struct {
	ID       string            `json:"request_id"`
	Policies []string          `json:"policies,omitempty"`
	Messages []Message         `json:"messages"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PolicyResult is the service's decision for one policy.
type PolicyResult struct {
	Name    string  `json:"name"`
	Flagged bool    `json:"flagged"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason,omitempty"`
}

// Verdict is the service's response to a Request.
type Verdict struct {
	RequestID string         `json:"request_id"`
	Violation bool           `json:"violation"`
	Policies  []PolicyResult `json:"policies"`

	// FlaggedMessages holds indexes into Request.Messages the service
	// attributes the violation to. May be empty even when Violation is set.
	FlaggedMessages []int `json:"flagged_messages,omitempty"`
}

// Flagged returns the names of flagged policies in response order.
func (v *Verdict) Flagged() []string {
	var names []string
	for _, p := range v.Policies {
		if p.Flagged {
			names = append(names, p.Name)
		}
	}
	return names
}

// Header returns the line written in front of a fragment's text.
func Header(f fragment.Fragment) string {
	return fmt.Sprintf("### %s: %s\n", f.Kind.Label(), f.SourceID)
}

// NewRequest builds the request for b. Each fragment becomes one message
// whose content is its header followed by its text.
func NewRequest(id string, b batch.Batch, policies []string, metadata map[string]string) Request {
	msgs := make([]Message, len(b.Fragments))
	for i, f := range b.Fragments {
		var sb strings.Builder
		sb.WriteString(Header(f))
		sb.WriteString(f.Text)
		msgs[i] = Message{Role: RoleUser, Content: sb.String()}
	}
	return Request{
		ID:       id,
		Policies: policies,
		Messages: msgs,
		Metadata: metadata,
	}
}
