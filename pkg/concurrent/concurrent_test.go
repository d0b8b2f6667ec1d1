package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEachN(t *testing.T) {
	var calls int64
	err := ForEachN(context.Background(), 100, 8, func(_ context.Context, i int) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), calls)
}

func TestForEachNPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEachN(context.Background(), 50, 4, func(_ context.Context, i int) error {
		if i == 13 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEachNZeroItems(t *testing.T) {
	assert.NoError(t, ForEachN(context.Background(), 0, 4, func(context.Context, int) error {
		t.Fatal("must not be called")
		return nil
	}))
}

func TestMapPreservesOrder(t *testing.T) {
	in := []int{5, 3, 8, 1}
	out, err := Map(context.Background(), in, 2, func(_ context.Context, v int) (int, error) {
		return v * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 30, 80, 10}, out)
}

func TestMapError(t *testing.T) {
	boom := errors.New("boom")
	out, err := Map(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
}
