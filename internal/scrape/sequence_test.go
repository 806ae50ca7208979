package scrape

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequencerStartsAtOne(t *testing.T) {
	t.Parallel()

	seq := NewSequencer()
	require.EqualValues(t, 1, seq.NextArticleID())
	require.EqualValues(t, 2, seq.NextArticleID())
	require.EqualValues(t, 1, seq.NextCommentID())
}

func TestSequencerSeedContinuesPastExistingIDs(t *testing.T) {
	t.Parallel()

	seq := NewSequencer()
	seq.Seed(10, 250)
	require.EqualValues(t, 11, seq.NextArticleID())
	require.EqualValues(t, 251, seq.NextCommentID())
}

func TestSequencerSeedNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	seq := NewSequencer()
	seq.Seed(10, 20)
	seq.Seed(5, 3)
	require.EqualValues(t, 11, seq.NextArticleID())
	require.EqualValues(t, 21, seq.NextCommentID())
}

func TestReserveCommentsReturnsContiguousBlocks(t *testing.T) {
	t.Parallel()

	seq := NewSequencer()
	first := seq.ReserveComments(3)
	second := seq.ReserveComments(2)
	require.EqualValues(t, 1, first)
	require.EqualValues(t, 4, second)
	require.EqualValues(t, 6, seq.NextCommentID())
}

func TestReserveCommentsConcurrentBlocksNeverOverlap(t *testing.T) {
	t.Parallel()

	seq := NewSequencer()
	const goroutines = 16
	const blockSize = 5

	starts := make([]int64, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			starts[slot] = seq.ReserveComments(blockSize)
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, start := range starts {
		for id := start; id < start+blockSize; id++ {
			require.False(t, seen[id], "id %d assigned twice", id)
			seen[id] = true
		}
	}
	require.Len(t, seen, goroutines*blockSize)
}
