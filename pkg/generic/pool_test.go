package generic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObj struct {
	id int
}

func TestBoundedPoolReuseIdentity(t *testing.T) {
	p := NewBoundedPool[*testObj](4)

	_, ok := p.Acquire()
	assert.False(t, ok, "empty pool must report no value")

	obj := &testObj{id: 7}
	p.Release(obj)

	got, ok := p.Acquire()
	require.True(t, ok)
	assert.Same(t, obj, got, "acquire must return the released instance")

	_, ok = p.Acquire()
	assert.False(t, ok)
}

func TestBoundedPoolLIFO(t *testing.T) {
	p := NewBoundedPool[*testObj](4)
	a := &testObj{id: 1}
	b := &testObj{id: 2}
	p.Release(a)
	p.Release(b)

	got, ok := p.Acquire()
	require.True(t, ok)
	assert.Same(t, b, got)
	got, ok = p.Acquire()
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestBoundedPoolCapacity(t *testing.T) {
	p := NewBoundedPool[*testObj](2)
	for i := 0; i < 10; i++ {
		p.Release(&testObj{id: i})
	}
	assert.Equal(t, 2, p.Len(), "releases beyond maxSize must not grow the pool")
	assert.Equal(t, 2, p.Cap())
}

func TestBoundedPoolClear(t *testing.T) {
	p := NewBoundedPool[*testObj](4)
	p.Release(&testObj{})
	p.Release(&testObj{})
	p.Clear()
	assert.Equal(t, 0, p.Len())
	_, ok := p.Acquire()
	assert.False(t, ok)
}

func TestBoundedPoolZeroSize(t *testing.T) {
	p := NewBoundedPool[*testObj](0)
	p.Release(&testObj{})
	assert.Equal(t, 0, p.Len())
}

func TestHotPool(t *testing.T) {
	n := 0
	p := NewHotPool(func() *testObj {
		n++
		return &testObj{id: n}
	}, 3)
	require.Equal(t, 3, n, "hot pool must pre-warm")

	v := p.Get()
	require.NotNil(t, v)
	p.Put(v)
}
