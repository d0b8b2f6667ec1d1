package lod

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globekit/globekit/internal/core/entity"
)

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg, nil)
	require.NoError(t, err)
	return e
}

func TestTierFor(t *testing.T) {
	e := newEngine(t, Config{Distances: []float64{1000, 10_000}})

	tests := []struct {
		distance float64
		tier     int
	}{
		{0, 0},
		{500, 0},
		{1000, 0},
		{1001, 1},
		{10_000, 1},
		{50_000, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, e.TierFor(tt.distance), "distance %.0f", tt.distance)
	}
	assert.Equal(t, 2, e.HiddenTier())
}

func TestTierMonotonicity(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	rng := rand.New(rand.NewSource(1))

	distances := make([]float64, 200)
	for i := range distances {
		distances[i] = rng.Float64() * 1e6
	}
	sort.Float64s(distances)

	prev := -1
	for _, d := range distances {
		tier := e.TierFor(d)
		assert.GreaterOrEqual(t, tier, prev, "tier must not decrease with distance")
		prev = tier
	}
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidLodConfig, "empty thresholds rejected")

	_, err = New(Config{Distances: []float64{1000, 1000}}, nil)
	assert.ErrorIs(t, err, ErrInvalidLodConfig, "non-ascending thresholds rejected")

	_, err = New(Config{Distances: []float64{-5, 10}}, nil)
	assert.ErrorIs(t, err, ErrInvalidLodConfig)

	// A feature re-enabled at a farther tier breaks the monotonic shape.
	_, err = New(Config{
		Distances: []float64{1000, 10_000},
		Tiers: [][]Feature{
			{FeatureIcon},
			{FeatureIcon, FeatureLabel},
		},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidLodConfig)

	_, err = New(Config{
		Distances: []float64{1000, 10_000},
		Tiers: [][]Feature{
			{FeatureIcon, FeatureLabel},
			{FeatureIcon},
		},
	}, nil)
	assert.NoError(t, err, "monotonically shrinking tiers are valid")

	_, err = New(Config{
		Distances: []float64{1000},
		Tiers:     [][]Feature{{FeatureIcon}, {FeatureIcon}},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidLodConfig, "tier count must match threshold count")
}

func TestDefaultTiersShape(t *testing.T) {
	tiers := DefaultTiers(4)
	require.Len(t, tiers, 4)
	for i := 1; i < len(tiers); i++ {
		assert.LessOrEqual(t, len(tiers[i]), len(tiers[i-1]))
	}
	cfg := Config{Distances: []float64{1, 2, 3, 4}, Tiers: tiers}
	assert.NoError(t, cfg.Validate())
}

func TestHasFeature(t *testing.T) {
	e := newEngine(t, Config{
		Distances: []float64{1000, 10_000},
		Tiers: [][]Feature{
			{FeatureIcon, FeatureLabel, FeatureShadow},
			{FeatureIcon},
		},
	})

	assert.True(t, e.HasFeature(0, FeatureShadow))
	assert.True(t, e.HasFeature(1, FeatureIcon))
	assert.False(t, e.HasFeature(1, FeatureLabel))
	assert.False(t, e.HasFeature(e.HiddenTier(), FeatureIcon), "hidden tier keeps nothing")
}

func TestRecomputeThrottle(t *testing.T) {
	e := newEngine(t, Config{
		Distances:         []float64{1000},
		MinUpdateInterval: 100 * time.Millisecond,
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ent := &entity.Entity{ID: "a", LODLevel: 1}
	dist := func(*entity.Entity) (float64, bool) { return 500, true }

	changes := e.Recompute(now, []*entity.Entity{ent}, dist)
	require.Len(t, changes, 1)
	assert.Equal(t, 1, changes[0].From)
	assert.Equal(t, 0, changes[0].To)
	assert.Equal(t, 0, ent.LODLevel)

	// Within the interval nothing runs, even if distances changed.
	ent.LODLevel = 1
	changes = e.Recompute(now.Add(50*time.Millisecond), []*entity.Entity{ent}, dist)
	assert.Nil(t, changes, "pass inside the min update interval is skipped")

	changes = e.Recompute(now.Add(150*time.Millisecond), []*entity.Entity{ent}, dist)
	assert.Len(t, changes, 1)
}

func TestRecomputeOnlyReportsChanges(t *testing.T) {
	e := newEngine(t, Config{Distances: []float64{1000, 10_000}})
	now := time.Now()

	stable := &entity.Entity{ID: "stable", LODLevel: 0}
	moved := &entity.Entity{ID: "moved", LODLevel: 0}
	unresolved := &entity.Entity{ID: "unresolved", LODLevel: 0}

	dist := func(e *entity.Entity) (float64, bool) {
		switch e.ID {
		case "stable":
			return 500, true
		case "moved":
			return 5000, true
		default:
			return 0, false
		}
	}

	changes := e.Recompute(now, []*entity.Entity{stable, moved, unresolved}, dist)
	require.Len(t, changes, 1)
	assert.Equal(t, "moved", changes[0].Entity.ID)
	assert.Equal(t, 0, unresolved.LODLevel, "unresolvable entities keep their tier")
}

func TestQualityScaleShiftsThresholds(t *testing.T) {
	e := newEngine(t, Config{Distances: []float64{1000, 10_000}})

	assert.Equal(t, 0, e.TierFor(900))
	e.SetQualityScale(0.5)
	assert.Equal(t, 1, e.TierFor(900), "lower quality degrades entities sooner")
	assert.Equal(t, 2, e.TierFor(6000))

	e.SetQualityScale(1)
	assert.Equal(t, 0, e.TierFor(900))
}
