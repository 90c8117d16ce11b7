package ramtracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTakeFreeSaturatesAtZero(t *testing.T) {
	tr := New()
	tr.Take(100)
	require.Equal(t, uint64(100), tr.RAMInUse())

	tr.Free(40)
	require.Equal(t, uint64(60), tr.RAMInUse())

	tr.Free(1000)
	require.Equal(t, uint64(0), tr.RAMInUse())
}

func TestEnqueuePeekPopOrdering(t *testing.T) {
	tr := New()
	h1 := NewHandle(10, time.Unix(1, 0))
	h2 := NewHandle(20, time.Unix(2, 0))
	h3 := NewHandle(30, time.Unix(3, 0))
	tr.Enqueue(h1)
	tr.Enqueue(h2)
	tr.Enqueue(h3)

	peeked, ok := tr.PeekOldest()
	require.True(t, ok)
	require.Same(t, h1, peeked)
	require.Equal(t, 3, tr.Len())

	popped, ok := tr.PopOldest()
	require.True(t, ok)
	require.Same(t, h1, popped)

	popped, ok = tr.PopOldest()
	require.True(t, ok)
	require.Same(t, h2, popped)

	require.Equal(t, 1, tr.Len())
}

func TestRemoveIsIdempotentAndSkipsDeadEntries(t *testing.T) {
	tr := New()
	h1 := NewHandle(10, time.Unix(1, 0))
	h2 := NewHandle(20, time.Unix(2, 0))
	tr.Enqueue(h1)
	tr.Enqueue(h2)

	tr.Remove(h1)
	tr.Remove(h1)
	require.False(t, h1.Alive())

	next, ok := tr.PeekOldest()
	require.True(t, ok)
	require.Same(t, h2, next)
}

func TestPopOldestOnEmptyQueue(t *testing.T) {
	tr := New()
	_, ok := tr.PopOldest()
	require.False(t, ok)

	h := NewHandle(1, time.Unix(0, 0))
	tr.Enqueue(h)
	tr.Remove(h)

	_, ok = tr.PeekOldest()
	require.False(t, ok)
}
