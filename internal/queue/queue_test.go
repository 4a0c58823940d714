package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int]()
	require.Zero(t, q.Len())

	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)
	require.Equal(t, 3, q.Len())

	v, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, 1, v)

	require.Equal(t, []int{2, 3}, q.Drain())
	require.Zero(t, q.Len())

	_, ok = q.Dequeue()
	require.False(t, ok)
}

func TestDrainEmpty(t *testing.T) {
	q := New[[]byte]()
	require.Nil(t, q.Drain())
}
