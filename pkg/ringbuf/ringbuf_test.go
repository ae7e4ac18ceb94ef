package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferNewestFirst(t *testing.T) {
	b := New[int](3)
	assert.Empty(t, b.Snapshot())

	b.Push(1)
	b.Push(2)
	assert.Equal(t, []int{2, 1}, b.Snapshot())

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 2, latest)
}

func TestBufferEvictsOldest(t *testing.T) {
	b := New[string](3)
	for _, v := range []string{"a", "b", "c"} {
		require.False(t, b.Push(v))
	}
	require.True(t, b.Push("d"))
	require.True(t, b.Push("e"))

	assert.Equal(t, []string{"e", "d", "c"}, b.Snapshot())
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 3, b.Cap())
}

func TestBufferNeverExceedsCapacity(t *testing.T) {
	b := New[int](50)
	for i := 0; i < 1000; i++ {
		b.Push(i)
		require.LessOrEqual(t, b.Len(), 50)
		snap := b.Snapshot()
		require.Equal(t, i, snap[0])
	}
	snap := b.Snapshot()
	assert.Equal(t, 999, snap[0])
	assert.Equal(t, 950, snap[49])
}

func TestBufferMinimumCapacity(t *testing.T) {
	b := New[int](0)
	b.Push(1)
	b.Push(2)
	assert.Equal(t, []int{2}, b.Snapshot())
}

func TestBufferClear(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	b.Clear()
	_, ok := b.Latest()
	assert.False(t, ok)
	assert.Zero(t, b.Len())
	b.Push(5)
	assert.Equal(t, []int{5}, b.Snapshot())
}
