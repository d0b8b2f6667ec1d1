package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueueOrder(t *testing.T) {
	pq := NewPriorityQueue[string]()
	pq.Enqueue("low", 0.1)
	pq.Enqueue("high", 0.9)
	pq.Enqueue("mid", 0.5)

	require.Equal(t, 3, pq.Len())

	top, ok := pq.Peek()
	require.True(t, ok)
	assert.Equal(t, "high", top)

	var order []string
	for {
		v, ok := pq.Dequeue()
		if !ok {
			break
		}
		order = append(order, v)
	}
	assert.Equal(t, []string{"high", "mid", "low"}, order)
	assert.True(t, pq.IsEmpty())
}

func TestPriorityQueueEmpty(t *testing.T) {
	pq := NewPriorityQueue[int]()
	_, ok := pq.Dequeue()
	assert.False(t, ok)
	_, ok = pq.Peek()
	assert.False(t, ok)
}

func TestPriorityQueueUpdate(t *testing.T) {
	pq := NewPriorityQueue[string]()
	item := pq.Enqueue("a", 0.1)
	pq.Enqueue("b", 0.5)

	pq.Update(item, "a", 0.9)
	top, _ := pq.Peek()
	assert.Equal(t, "a", top)
}

func TestPriorityQueueClear(t *testing.T) {
	pq := NewPriorityQueue[int]()
	for i := 0; i < 10; i++ {
		pq.Enqueue(i, float64(i))
	}
	pq.Clear()
	assert.True(t, pq.IsEmpty())

	pq.Enqueue(42, 1)
	v, ok := pq.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 42, v)
}
