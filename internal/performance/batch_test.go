package performance

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchProcessor(t *testing.T) {
	var batches [][]int
	processor := NewBatchProcessor(5, func(items []int) error {
		batch := make([]int, len(items))
		copy(batch, items)
		batches = append(batches, batch)
		return nil
	})

	for i := 0; i < 12; i++ {
		require.NoError(t, processor.Add(i))
	}
	require.NoError(t, processor.Flush())

	require.Len(t, batches, 3)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, batches[0])
	assert.Equal(t, []int{10, 11}, batches[2])
	assert.Equal(t, 12, processor.Processed())

	// nothing buffered
	require.NoError(t, processor.Flush())
	assert.Len(t, batches, 3)
}

func TestBatchProcessor_Error(t *testing.T) {
	boom := errors.New("disk full")
	calls := 0
	processor := NewBatchProcessor(2, func(items []string) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})

	err := processor.AddAll([]string{"a", "b", "c", "d", "e"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, processor.Processed())
}

func TestBatchProcessor_ZeroSize(t *testing.T) {
	calls := 0
	processor := NewBatchProcessor(0, func(items []int) error {
		calls++
		return nil
	})
	require.NoError(t, processor.AddAll([]int{1, 2, 3}))
	assert.Equal(t, 3, calls)
}

func TestProperty_BatchesPreserveItems(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every item is processed once, in order", prop.ForAll(
		func(items []int, size int) bool {
			var seen []int
			maxBatch := 0
			processor := NewBatchProcessor(size, func(batch []int) error {
				seen = append(seen, batch...)
				maxBatch = max(maxBatch, len(batch))
				return nil
			})
			if processor.AddAll(items) != nil || processor.Flush() != nil {
				return false
			}
			if len(seen) != len(items) || maxBatch > size {
				return false
			}
			for i := range items {
				if seen[i] != items[i] {
					return false
				}
			}
			return processor.Processed() == len(items)
		},
		gen.SliceOf(gen.Int()),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
