package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globekit/globekit/internal/core/entity"
	"github.com/globekit/globekit/internal/core/events/bus"
	"github.com/globekit/globekit/internal/core/geo"
	"github.com/globekit/globekit/internal/core/interp"
	"github.com/globekit/globekit/internal/core/quality"
	"github.com/globekit/globekit/internal/core/scene"
)

var frameTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// quietQuality pins the controller to a single level so frame-rate noise in
// tests never retunes anything.
func quietQuality() quality.Config {
	cfg := quality.DefaultConfig()
	cfg.Levels = []float64{1.0}
	return cfg
}

func testEngine(t *testing.T, mutate func(*Config)) (*Engine, *scene.FakeProvider) {
	t.Helper()
	provider := scene.NewFakeProvider()
	provider.LookAt(geo.Vec3{}, geo.Vec3{X: 1000}, 1.0, 16.0/9.0, 1, 1e6)

	cfg := DefaultConfig()
	cfg.Quality = quietQuality()
	cfg.Layers = []LayerConfig{DefaultLayerConfig("L1")}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(cfg, provider, nil)
	require.NoError(t, err)
	return e, provider
}

func pointSpec(id string, pos geo.Vec3) EntitySpec {
	return EntitySpec{
		ID:       id,
		LayerID:  "L1",
		Type:     entity.TypePoint,
		Position: &pos,
		Visual: scene.Primitive{
			Icon:  &scene.IconFeature{Image: "vessel.png", Shadow: true},
			Label: &scene.LabelFeature{Text: id},
		},
	}
}

func TestAddEntityErrors(t *testing.T) {
	e, _ := testEngine(t, nil)

	require.NoError(t, e.AddEntity(pointSpec("v1", geo.Vec3{X: 100})))

	err := e.AddEntity(pointSpec("v1", geo.Vec3{X: 100}))
	assert.ErrorIs(t, err, ErrDuplicateID)

	spec := pointSpec("v2", geo.Vec3{})
	spec.LayerID = "ghost"
	assert.ErrorIs(t, e.AddEntity(spec), ErrLayerNotFound)

	spec = pointSpec("", geo.Vec3{})
	assert.ErrorIs(t, e.AddEntity(spec), ErrInvalidSpec)

	spec = EntitySpec{ID: "v3", LayerID: "L1", Type: entity.TypePoint}
	assert.ErrorIs(t, e.AddEntity(spec), ErrInvalidSpec, "position or trajectory required")
}

func TestCapacity(t *testing.T) {
	e, _ := testEngine(t, func(c *Config) { c.MaxEntities = 2 })

	require.NoError(t, e.AddEntity(pointSpec("a", geo.Vec3{})))
	require.NoError(t, e.AddEntity(pointSpec("b", geo.Vec3{})))

	err := e.AddEntity(pointSpec("c", geo.Vec3{}))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 2, e.Count(), "rejected adds leave no partial mutation")

	require.NoError(t, e.RemoveEntity("a"))
	assert.NoError(t, e.AddEntity(pointSpec("c", geo.Vec3{})), "capacity frees on remove")
}

func TestUpdateRemoveUnknown(t *testing.T) {
	e, _ := testEngine(t, nil)
	assert.ErrorIs(t, e.UpdateEntity("ghost", Patch{}), ErrNotFound)
	assert.ErrorIs(t, e.RemoveEntity("ghost"), ErrNotFound)
}

func TestPoolReuse(t *testing.T) {
	e, _ := testEngine(t, nil)

	require.NoError(t, e.AddEntity(pointSpec("v1", geo.Vec3{X: 1})))
	first, ok := e.Entity("v1")
	require.True(t, ok)

	require.NoError(t, e.RemoveEntity("v1"))
	require.NoError(t, e.AddEntity(pointSpec("v2", geo.Vec3{X: 2})))
	second, ok := e.Entity("v2")
	require.True(t, ok)

	assert.Same(t, first, second, "same-type add after remove reuses the pooled instance")
	assert.Equal(t, "v2", second.ID, "reused instance is fully reset")
}

func TestIndexConsistency(t *testing.T) {
	e, _ := testEngine(t, func(c *Config) {
		c.Layers = append(c.Layers, DefaultLayerConfig("L2"))
	})
	rng := rand.New(rand.NewSource(7))
	layers := []string{"L1", "L2"}
	types := []entity.Type{entity.TypePoint, entity.TypeEvent, entity.TypeRoute}
	live := map[string]bool{}

	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("e-%d", rng.Intn(80))
		switch rng.Intn(3) {
		case 0:
			spec := pointSpec(id, geo.Vec3{X: rng.Float64() * 1000})
			spec.LayerID = layers[rng.Intn(len(layers))]
			spec.Type = types[rng.Intn(len(types))]
			if err := e.AddEntity(spec); err == nil {
				live[id] = true
			}
		case 1:
			_ = e.UpdateEntity(id, Patch{Importance: ptr(rng.Float64())})
		default:
			if err := e.RemoveEntity(id); err == nil {
				delete(live, id)
			}
		}
	}

	assert.Equal(t, len(live), e.Count())

	// Every ID in the secondary indices appears in the primary map and
	// vice versa.
	fromLayers := map[string]bool{}
	for _, layerID := range layers {
		for _, ent := range e.QueryByLayer(layerID) {
			_, inPrimary := e.Entity(ent.ID)
			assert.True(t, inPrimary, "layer index entry %s missing from primary", ent.ID)
			assert.Equal(t, layerID, ent.LayerID)
			fromLayers[ent.ID] = true
		}
	}
	assert.Len(t, fromLayers, e.Count())

	fromTypes := 0
	for _, typ := range types {
		for _, ent := range e.QueryByType(typ) {
			_, inPrimary := e.Entity(ent.ID)
			assert.True(t, inPrimary)
			fromTypes++
		}
	}
	assert.Equal(t, e.Count(), fromTypes)
}

func ptr[T any](v T) *T { return &v }

func TestDrainFrameMaterializesEntities(t *testing.T) {
	e, provider := testEngine(t, nil)

	require.NoError(t, e.AddEntity(pointSpec("v1", geo.Vec3{X: 500})))
	require.Equal(t, 0, provider.PrimitiveCount(), "nothing hits the scene before a frame")

	report := e.DrainFrame(frameTime)
	assert.Equal(t, 1, report.AppliedOps)
	assert.Equal(t, 1, provider.PrimitiveCount())

	prim, ok := provider.Primitive("v1")
	require.True(t, ok)
	assert.True(t, prim.Show)
	assert.Equal(t, 500.0, prim.Position.X)

	require.NoError(t, e.RemoveEntity("v1"))
	e.DrainFrame(frameTime.Add(time.Second))
	assert.Equal(t, 0, provider.PrimitiveCount())
}

func TestDrainFrameOpBudget(t *testing.T) {
	e, provider := testEngine(t, func(c *Config) { c.MaxOpsPerFrame = 10 })

	for i := 0; i < 25; i++ {
		require.NoError(t, e.AddEntity(pointSpec(fmt.Sprintf("v%d", i), geo.Vec3{X: 500})))
	}

	report := e.DrainFrame(frameTime)
	assert.Equal(t, 10, report.AppliedOps, "ops are bounded per frame")
	assert.Equal(t, 10, provider.PrimitiveCount())

	e.DrainFrame(frameTime.Add(time.Second))
	e.DrainFrame(frameTime.Add(2 * time.Second))
	assert.Equal(t, 25, provider.PrimitiveCount(), "the backlog drains across frames")
}

func TestProviderFailureIsolatedAndRetried(t *testing.T) {
	e, provider := testEngine(t, nil)
	boom := errors.New("gpu exploded")
	provider.FailOn("bad", boom)

	require.NoError(t, e.AddEntity(pointSpec("bad", geo.Vec3{X: 500})))
	require.NoError(t, e.AddEntity(pointSpec("good", geo.Vec3{X: 600})))

	report := e.DrainFrame(frameTime)
	assert.Equal(t, 1, report.FailedOps)
	assert.Equal(t, 1, report.AppliedOps, "one bad entity never blocks the batch")
	_, ok := provider.Primitive("good")
	assert.True(t, ok)

	provider.FailOn("bad", nil)
	report = e.DrainFrame(frameTime.Add(time.Second))
	assert.Equal(t, 1, report.AppliedOps, "failed op retries on the next frame")
	_, ok = provider.Primitive("bad")
	assert.True(t, ok)
}

func TestEndToEndLODScenario(t *testing.T) {
	e, provider := testEngine(t, func(c *Config) {
		c.LOD.Distances = []float64{1000, 10_000}
	})

	specs := []EntitySpec{
		pointSpec("near", geo.Vec3{X: 500}),
		pointSpec("mid", geo.Vec3{X: 5000}),
		pointSpec("far", geo.Vec3{X: 50_000}),
	}
	results, err := e.AddEntitiesBatch(context.Background(), specs)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	e.DrainFrame(frameTime)

	tier := func(id string) int {
		ent, ok := e.Entity(id)
		require.True(t, ok)
		return ent.LODLevel
	}
	assert.Equal(t, 0, tier("near"))
	assert.Equal(t, 1, tier("mid"))
	assert.Equal(t, 2, tier("far"), "beyond the last threshold is the hidden tier")

	// Moving the camera 2000 m toward the far entity leaves every visible
	// entity in its tier, so no lodChanged fires.
	count := 0
	e.Events().Subscribe(EventLODChanged, func(bus.Event) error {
		count++
		return nil
	})

	provider.LookAt(geo.Vec3{X: 2000}, geo.Vec3{X: 50_000}, 1.0, 16.0/9.0, 1, 1e6)
	e.DrainFrame(frameTime.Add(200 * time.Millisecond))

	assert.Equal(t, 0, count, "no tier changed, no lodChanged")
	assert.Equal(t, 1, tier("mid"), "3000 m is still tier 1")
	assert.Equal(t, 2, tier("far"), "48000 m is still tier 2")
}

func TestLODStripsFeatures(t *testing.T) {
	e, provider := testEngine(t, func(c *Config) {
		c.LOD.Distances = []float64{1000, 10_000, 100_000}
	})

	require.NoError(t, e.AddEntity(pointSpec("near", geo.Vec3{X: 500})))
	require.NoError(t, e.AddEntity(pointSpec("mid", geo.Vec3{X: 50_000})))
	e.DrainFrame(frameTime)
	// Tier assignment happens on the first frame; the queued update lands
	// on the second.
	e.DrainFrame(frameTime.Add(time.Second))

	nearPrim, ok := provider.Primitive("near")
	require.True(t, ok)
	assert.NotNil(t, nearPrim.Label, "tier 0 keeps the label")

	midPrim, ok := provider.Primitive("mid")
	require.True(t, ok)
	assert.NotNil(t, midPrim.Icon, "tier 2 keeps the icon")
	assert.Nil(t, midPrim.Label, "tier 2 drops the label")
	assert.False(t, midPrim.Icon.Shadow, "shadow sheds before the label tier")
}

func TestSetLayerVisible(t *testing.T) {
	e, provider := testEngine(t, nil)
	require.NoError(t, e.AddEntity(pointSpec("v1", geo.Vec3{X: 500})))
	e.DrainFrame(frameTime)

	require.NoError(t, e.SetLayerVisible("L1", false))
	e.DrainFrame(frameTime.Add(time.Second))

	prim, ok := provider.Primitive("v1")
	require.True(t, ok)
	assert.False(t, prim.Show)

	visible, err := e.LayerVisible("L1")
	require.NoError(t, err)
	assert.False(t, visible)

	assert.ErrorIs(t, e.SetLayerVisible("ghost", true), ErrLayerNotFound)
}

func TestRemoveLayerCascades(t *testing.T) {
	e, provider := testEngine(t, nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, e.AddEntity(pointSpec(fmt.Sprintf("v%d", i), geo.Vec3{X: 500})))
	}
	e.DrainFrame(frameTime)
	require.Equal(t, 5, provider.PrimitiveCount())

	require.NoError(t, e.RemoveLayer("L1"))
	assert.Equal(t, 0, e.Count())
	assert.Empty(t, e.QueryByLayer("L1"))

	e.DrainFrame(frameTime.Add(time.Second))
	assert.Equal(t, 0, provider.PrimitiveCount())

	assert.ErrorIs(t, e.AddEntity(pointSpec("vX", geo.Vec3{})), ErrLayerNotFound)
}

func TestTimeVaryingEntityAnimates(t *testing.T) {
	e, provider := testEngine(t, nil)

	start := frameTime
	spec := EntitySpec{
		ID:      "vessel",
		LayerID: "L1",
		Type:    entity.TypeTrajectory,
		Trajectory: []interp.Sample{
			{Time: start, Position: geo.Vec3{X: 1000}},
			{Time: start.Add(10 * time.Second), Position: geo.Vec3{X: 2000}},
		},
		Visual: scene.Primitive{Icon: &scene.IconFeature{Image: "vessel.png"}},
	}
	require.NoError(t, e.AddEntity(spec))

	e.DrainFrame(start)
	prim, ok := provider.Primitive("vessel")
	require.True(t, ok)
	assert.InDelta(t, 1000, prim.Position.X, 1e-9)

	e.DrainFrame(start.Add(5 * time.Second))
	prim, _ = provider.Primitive("vessel")
	assert.InDelta(t, 1500, prim.Position.X, 1e-9, "dispatch refreshes the interpolated position")

	pos, ok := e.PositionAt("vessel", start.Add(2500*time.Millisecond))
	require.True(t, ok)
	assert.InDelta(t, 1250, pos.X, 1e-9)
}

func TestBatchPartialFailure(t *testing.T) {
	e, _ := testEngine(t, nil)
	require.NoError(t, e.AddEntity(pointSpec("dup", geo.Vec3{})))

	specs := []EntitySpec{
		pointSpec("a", geo.Vec3{}),
		pointSpec("dup", geo.Vec3{}), // fails
		pointSpec("b", geo.Vec3{}),
	}
	results, err := e.AddEntitiesBatch(context.Background(), specs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrDuplicateID)
	assert.NoError(t, results[2].Err, "partial failure does not roll back or stop the batch")
	assert.Equal(t, 3, e.Count())
}

func TestBatchCursorYields(t *testing.T) {
	e, _ := testEngine(t, func(c *Config) { c.BatchChunkSize = 10 })

	specs := make([]EntitySpec, 25)
	for i := range specs {
		specs[i] = pointSpec(fmt.Sprintf("v%d", i), geo.Vec3{X: float64(i)})
	}
	cur := e.NewAddBatch(specs)

	done, err := cur.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 10, e.Count(), "one step processes one chunk")
	assert.Equal(t, 15, cur.Remaining())

	// Other public calls interleave between steps.
	require.NoError(t, e.RemoveEntity("v0"))

	require.NoError(t, cur.Run(context.Background()))
	assert.True(t, cur.Done())
	assert.Equal(t, 24, e.Count())

	_, err = cur.Step(context.Background())
	assert.ErrorIs(t, err, ErrBatchExhausted)
}

func TestBatchCancellation(t *testing.T) {
	e, _ := testEngine(t, func(c *Config) { c.BatchChunkSize = 5 })

	specs := make([]EntitySpec, 20)
	for i := range specs {
		specs[i] = pointSpec(fmt.Sprintf("v%d", i), geo.Vec3{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cur := e.NewAddBatch(specs)
	_, err := cur.Step(ctx)
	require.NoError(t, err)
	cancel()

	_, err = cur.Step(ctx)
	assert.ErrorIs(t, err, context.Canceled, "cancellation honored between chunks")
	assert.Equal(t, 5, e.Count(), "already-applied chunks stay applied")
}

func TestEntityEventsEmitted(t *testing.T) {
	e, _ := testEngine(t, nil)

	var types []string
	for _, et := range []string{EventEntityCreated, EventEntityUpdated, EventEntityRemoved} {
		et := et
		e.Events().Subscribe(et, func(bus.Event) error {
			types = append(types, et)
			return nil
		})
	}

	require.NoError(t, e.AddEntity(pointSpec("v1", geo.Vec3{})))
	require.NoError(t, e.UpdateEntity("v1", Patch{Importance: ptr(0.5)}))
	require.NoError(t, e.RemoveEntity("v1"))

	assert.Equal(t, []string{EventEntityCreated, EventEntityUpdated, EventEntityRemoved}, types)
}

func TestStats(t *testing.T) {
	e, _ := testEngine(t, nil)
	require.NoError(t, e.AddEntity(pointSpec("v1", geo.Vec3{X: 500})))
	e.DrainFrame(frameTime)

	stats := e.Stats()
	assert.Equal(t, 1, stats["entities"])
	assert.Equal(t, 1, stats["layers"])
	assert.Equal(t, int64(1), stats["frame"])
}
