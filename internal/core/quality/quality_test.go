package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globekit/globekit/internal/core/scene"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := New(cfg, nil)
	require.NoError(t, err)
	return c
}

// simulate records frames at the given rate for one window ending at now.
func simulate(c *Controller, fps int, now time.Time) {
	start := now.Add(-time.Second)
	for i := 0; i < fps; i++ {
		c.RecordFrame(start.Add(time.Duration(i) * time.Second / time.Duration(fps)))
	}
}

func TestFPSWindow(t *testing.T) {
	c := newController(t, DefaultConfig())
	simulate(c, 24, t0)
	assert.InDelta(t, 24, c.FPS(t0), 1)

	// Old frames age out of the window.
	assert.InDelta(t, 0, c.FPS(t0.Add(2*time.Second)), 0.01)
}

func TestRetuneStepsDown(t *testing.T) {
	c := newController(t, DefaultConfig()) // target 30
	require.Equal(t, 1.0, c.Quality())

	simulate(c, 20, t0) // below 80% of target
	q, changed := c.Retune(t0)
	assert.True(t, changed)
	assert.Equal(t, 0.75, q)
}

func TestRetuneStepsUp(t *testing.T) {
	cfg := DefaultConfig()
	c := newController(t, cfg)
	simulate(c, 20, t0)
	_, changed := c.Retune(t0)
	require.True(t, changed)
	require.Equal(t, 0.75, c.Quality())

	simulate(c, 40, t0.Add(5*time.Second)) // above 110% of target
	q, changed := c.Retune(t0.Add(5 * time.Second))
	assert.True(t, changed)
	assert.Equal(t, 1.0, q)
}

func TestRetuneHysteresis(t *testing.T) {
	c := newController(t, DefaultConfig())
	simulate(c, 10, t0)
	_, changed := c.Retune(t0)
	require.True(t, changed)

	// A second retune inside the interval never changes quality again,
	// however bad the frame rate.
	simulate(c, 5, t0.Add(time.Second))
	q, changed := c.Retune(t0.Add(time.Second))
	assert.False(t, changed)
	assert.Equal(t, 0.75, q)

	_, changed = c.Retune(t0.Add(3 * time.Second))
	assert.True(t, changed, "past the interval retuning resumes")
}

func TestRetuneStableInBand(t *testing.T) {
	c := newController(t, DefaultConfig())
	simulate(c, 30, t0) // exactly on target
	_, changed := c.Retune(t0)
	assert.False(t, changed, "in-band FPS changes nothing")
}

func TestRetuneClampsAtEnds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Levels = []float64{0.5, 1.0}
	c := newController(t, cfg)

	simulate(c, 5, t0)
	_, changed := c.Retune(t0)
	require.True(t, changed)
	require.Equal(t, 0.5, c.Quality())

	simulate(c, 5, t0.Add(5*time.Second))
	_, changed = c.Retune(t0.Add(5 * time.Second))
	assert.False(t, changed, "already at the bottom notch")
}

func TestHistoryRing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistorySize = 3
	cfg.MinRetuneInterval = time.Millisecond
	cfg.Levels = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7}
	c := newController(t, cfg)

	now := t0
	for i := 0; i < 5; i++ {
		simulate(c, 5, now)
		_, changed := c.Retune(now)
		require.True(t, changed)
		now = now.Add(time.Second)
	}

	hist := c.History()
	require.Len(t, hist, 3, "history is bounded")
	assert.True(t, hist[0].Time.Before(hist[1].Time))
	assert.True(t, hist[1].Time.Before(hist[2].Time))
	assert.Equal(t, 0.3, hist[2].From)
	assert.Equal(t, 0.2, hist[2].To)
}

func TestEffectStates(t *testing.T) {
	c := newController(t, DefaultConfig())
	states := c.EffectStates()
	assert.True(t, states[scene.EffectShadows])
	assert.True(t, states[scene.EffectAntiAliasing])

	simulate(c, 10, t0)
	_, changed := c.Retune(t0)
	require.True(t, changed) // now 0.75

	states = c.EffectStates()
	assert.False(t, states[scene.EffectShadows], "shadows shed below full quality")
	assert.True(t, states[scene.EffectAntiAliasing])
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Levels = nil
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidQualityConfig)

	cfg = DefaultConfig()
	cfg.Levels = []float64{1.0, 0.5}
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidQualityConfig)

	cfg = DefaultConfig()
	cfg.TargetFPS = 0
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidQualityConfig)
}
