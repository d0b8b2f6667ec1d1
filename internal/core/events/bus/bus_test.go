package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversByType(t *testing.T) {
	b := New()

	var got []Event
	b.Subscribe("lodChanged", func(e Event) error {
		got = append(got, e)
		return nil
	})

	require.NoError(t, b.Publish(NewEvent("lodChanged", "engine", map[string]any{"id": "v1"})))
	require.NoError(t, b.Publish(NewEvent("entityCreated", "engine", nil)))

	require.Len(t, got, 1)
	assert.Equal(t, "lodChanged", got[0].Type)
	assert.NotEmpty(t, got[0].ID)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	sub := b.Subscribe("qualityChanged", func(Event) error {
		calls++
		return nil
	})
	require.True(t, sub.IsActive())

	_ = b.Publish(NewEvent("qualityChanged", "engine", nil))
	sub.Cancel()
	assert.False(t, sub.IsActive())
	_ = b.Publish(NewEvent("qualityChanged", "engine", nil))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.SubscriberCount("qualityChanged"))
}

func TestHandlerErrorsJoined(t *testing.T) {
	b := New()
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	b.Subscribe("entityRemoved", func(Event) error { return errA })
	b.Subscribe("entityRemoved", func(Event) error { return errB })
	reached := false
	b.Subscribe("entityRemoved", func(Event) error {
		reached = true
		return nil
	})

	err := b.Publish(NewEvent("entityRemoved", "engine", nil))
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.True(t, reached, "one failing handler never blocks the others")
}

func TestMetrics(t *testing.T) {
	b := New()
	b.Subscribe("performanceUpdate", func(Event) error { return nil })
	_ = b.PublishBatch(
		NewEvent("performanceUpdate", "engine", nil),
		NewEvent("performanceUpdate", "engine", nil),
	)

	m := b.GetMetrics()
	assert.Equal(t, uint64(2), m.Published)
	assert.Equal(t, uint64(2), m.DeliveredHandlers)
	assert.Equal(t, uint64(0), m.Errors)
}
