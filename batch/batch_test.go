package batch

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whitecircle/policybot/fragment"
)

// frags builds diff fragments with the given token counts and ids f0, f1, ...
func frags(counts ...int) []fragment.Fragment {
	out := make([]fragment.Fragment, len(counts))
	for i, n := range counts {
		out[i] = fragment.Fragment{
			SourceID: fmt.Sprintf("f%d", i),
			Kind:     fragment.Diff,
			Text:     fmt.Sprintf("text-%d", i),
			Tokens:   n,
		}
	}
	return out
}

// shape returns the token counts of each batch.
func shape(p Plan) [][]int {
	out := make([][]int, len(p.Batches))
	for i, b := range p.Batches {
		for _, f := range b.Fragments {
			out[i] = append(out[i], f.Tokens)
		}
	}
	return out
}

func TestPack_Examples(t *testing.T) {
	tests := []struct {
		name      string
		counts    []int
		limit     int
		expected  [][]int
		oversized []int
	}{
		{
			name:     "exact fit stops before exceeding",
			counts:   []int{10, 10, 10},
			limit:    20,
			expected: [][]int{{10, 10}, {10}},
		},
		{
			name:      "single oversized fragment",
			counts:    []int{500},
			limit:     100,
			expected:  [][]int{{500}},
			oversized: []int{0},
		},
		{
			name:      "oversized closes current batch",
			counts:    []int{30, 40, 150, 20},
			limit:     100,
			expected:  [][]int{{30, 40}, {150}, {20}},
			oversized: []int{1},
		},
		{
			name:      "consecutive oversized fragments",
			counts:    []int{101, 102},
			limit:     100,
			expected:  [][]int{{101}, {102}},
			oversized: []int{0, 1},
		},
		{
			name:     "fragment equal to limit is not oversized",
			counts:   []int{100, 1},
			limit:    100,
			expected: [][]int{{100}, {1}},
		},
		{
			name:     "zero token fragments merge",
			counts:   []int{0, 5, 0, 0},
			limit:    5,
			expected: [][]int{{0, 5, 0, 0}},
		},
		{
			name:     "greedy not balanced",
			counts:   []int{6, 5, 5},
			limit:    10,
			expected: [][]int{{6}, {5, 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Pack(frags(tt.counts...), tt.limit)
			require.NoError(t, err)

			assert.Equal(t, tt.expected, shape(plan))
			assert.Equal(t, tt.limit, plan.MaxTokens)
			assert.Equal(t, tt.oversized, plan.Oversized())
		})
	}
}

func TestPack_EmptyInput(t *testing.T) {
	plan, err := Pack(nil, 10)
	require.NoError(t, err)
	assert.Empty(t, plan.Batches)
	assert.Equal(t, 0, plan.FragmentCount())

	plan, err = Pack([]fragment.Fragment{}, 10)
	require.NoError(t, err)
	assert.Empty(t, plan.Batches)
}

func TestPack_ConfigurationError(t *testing.T) {
	for _, limit := range []int{0, -5} {
		t.Run(fmt.Sprint(limit), func(t *testing.T) {
			_, err := Pack(frags(1, 2), limit)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "max_batch_tokens", cfgErr.Field)
			assert.Equal(t, limit, cfgErr.Value)
		})
	}
}

func TestPack_BatchTotals(t *testing.T) {
	plan, err := Pack(frags(3, 4, 5, 6, 7), 10)
	require.NoError(t, err)

	for _, b := range plan.Batches {
		assert.Equal(t, fragment.TotalTokens(b.Fragments), b.TotalTokens)
	}
	assert.Equal(t, 25, plan.TotalTokens())
}

func TestPack_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := range 500 {
		n := rng.IntN(40)
		counts := make([]int, n)
		for j := range counts {
			counts[j] = rng.IntN(120)
		}
		limit := 1 + rng.IntN(100)
		input := frags(counts...)

		plan, err := Pack(input, limit)
		require.NoError(t, err, "case %d", i)

		// Completeness and order preservation.
		assert.Equal(t, len(input), plan.FragmentCount(), "case %d", i)
		if len(input) == 0 {
			assert.Empty(t, plan.Fragments(), "case %d", i)
		} else {
			assert.Equal(t, input, plan.Fragments(), "case %d", i)
		}

		for _, b := range plan.Batches {
			require.NotEmpty(t, b.Fragments, "case %d", i)
			assert.Equal(t, fragment.TotalTokens(b.Fragments), b.TotalTokens, "case %d", i)
			if b.Oversized {
				// Only a lone fragment over the limit is flagged.
				assert.Len(t, b.Fragments, 1, "case %d", i)
				assert.Greater(t, b.TotalTokens, limit, "case %d", i)
			} else {
				assert.LessOrEqual(t, b.TotalTokens, limit, "case %d", i)
			}
		}

		// Determinism.
		again, err := Pack(input, limit)
		require.NoError(t, err)
		assert.Equal(t, plan, again, "case %d", i)
	}
}

func TestPack_DoesNotMutateInput(t *testing.T) {
	input := frags(5, 50, 5)
	snapshot := append([]fragment.Fragment(nil), input...)

	_, err := Pack(input, 10)
	require.NoError(t, err)
	assert.Equal(t, snapshot, input)
}

func TestPack_Concurrent(t *testing.T) {
	input := frags(7, 3, 9, 1, 12, 4, 4, 4)
	want, err := Pack(input, 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Pack(input, 10)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func BenchmarkPack(b *testing.B) {
	counts := make([]int, 5000)
	for i := range counts {
		counts[i] = (i * 37) % 300
	}
	input := frags(counts...)

	b.ResetTimer()
	for range b.N {
		_, _ = Pack(input, 4000)
	}
}
