package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whitecircle/policybot/batch"
	"github.com/whitecircle/policybot/fragment"
)

func TestNewRequest(t *testing.T) {
	b := batch.Batch{
		Fragments: []fragment.Fragment{
			{SourceID: "main.go#L3", Kind: fragment.Diff, Text: "+x := 1", Tokens: 2},
			{SourceID: "commit:abc1234", Kind: fragment.CommitMessage, Text: "fix things", Tokens: 3},
		},
		TotalTokens: 5,
	}

	req := NewRequest("id-1", b, []string{"secrets"}, map[string]string{"repo": "o/r"})

	assert.Equal(t, "id-1", req.ID)
	assert.Equal(t, []string{"secrets"}, req.Policies)
	assert.Equal(t, "o/r", req.Metadata["repo"])
	require.Len(t, req.Messages, 2)
	assert.Equal(t, RoleUser, req.Messages[0].Role)
	assert.Equal(t, "### diff hunk: main.go#L3\n+x := 1", req.Messages[0].Content)
	assert.Equal(t, "### commit message: commit:abc1234\nfix things", req.Messages[1].Content)
}

func TestVerdict_Flagged(t *testing.T) {
	v := &Verdict{Policies: []PolicyResult{
		{Name: "secrets", Flagged: true},
		{Name: "pii", Flagged: false},
		{Name: "toxicity", Flagged: true},
	}}
	assert.Equal(t, []string{"secrets", "toxicity"}, v.Flagged())
	assert.Nil(t, (&Verdict{}).Flagged())
}
