// Package engine ties the per-frame optimization stages together: it owns
// the entity store and its indices, feeds the culler, the LOD engine, the
// quality controller and the render-queue scheduler in a fixed order, and
// applies the resulting scene mutations under a frame budget.
//
// The engine is single-threaded by contract: all state is touched only from
// the frame callback (DrainFrame) and from synchronous public calls made
// between frames. An embedding that adds worker goroutines must marshal
// results back onto the frame thread before calling in.
package engine

import (
	"fmt"
	"time"

	"github.com/globekit/globekit/internal/core/cull"
	"github.com/globekit/globekit/internal/core/entity"
	"github.com/globekit/globekit/internal/core/events/bus"
	"github.com/globekit/globekit/internal/core/geo"
	"github.com/globekit/globekit/internal/core/interp"
	"github.com/globekit/globekit/internal/core/lod"
	"github.com/globekit/globekit/internal/core/observability/log"
	"github.com/globekit/globekit/internal/core/quality"
	"github.com/globekit/globekit/internal/core/sched"
	"github.com/globekit/globekit/internal/core/scene"
	"github.com/globekit/globekit/pkg/generic"
)

type layer struct {
	cfg     LayerConfig
	visible bool
	// lod overrides the engine-wide LOD engine when the layer declares its
	// own thresholds.
	lod *lod.Engine
}

// Engine is the entity store and frame pipeline. See the package comment
// for the threading contract.
type Engine struct {
	cfg      Config
	log      log.Log
	provider scene.Provider
	events   *bus.Bus

	interp  *interp.Interpolator
	culler  *cull.Culler
	lod     *lod.Engine
	quality *quality.Controller
	sched   *sched.Scheduler

	entities map[string]*entity.Entity
	byLayer  map[string]map[string]*entity.Entity
	byType   map[entity.Type]map[string]*entity.Entity
	layers   map[string]*layer
	pools    map[entity.Type]*generic.BoundedPool[*entity.Entity]

	pending []sceneOp
	inScene map[string]bool

	// scratch recycles the per-frame entity slices built for the cull and
	// visibility passes.
	scratch *generic.Pool[[]*entity.Entity]

	lastCull cull.Result
	frame    int64
	now      time.Time
}

// New builds an engine over the given scene provider.
func New(cfg Config, provider scene.Provider, lg log.Log) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: scene provider is required", ErrInvalidConfig)
	}
	if cfg.BatchChunkSize <= 0 {
		cfg.BatchChunkSize = DefaultConfig().BatchChunkSize
	}
	if cfg.MaxOpsPerFrame <= 0 {
		cfg.MaxOpsPerFrame = DefaultConfig().MaxOpsPerFrame
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultConfig().PoolSize
	}
	if lg == nil {
		lg = log.NewNop()
	}

	in, err := interp.New(cfg.Interp, lg)
	if err != nil {
		return nil, err
	}
	lodEngine, err := lod.New(cfg.LOD, lg)
	if err != nil {
		return nil, err
	}
	qc, err := quality.New(cfg.Quality, lg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		log:      lg,
		provider: provider,
		events:   bus.New(),
		interp:   in,
		culler:   cull.New(cfg.Cull, lg),
		lod:      lodEngine,
		quality:  qc,
		sched:    sched.New(cfg.Sched, lg),
		entities: make(map[string]*entity.Entity),
		byLayer:  make(map[string]map[string]*entity.Entity),
		byType:   make(map[entity.Type]map[string]*entity.Entity),
		layers:   make(map[string]*layer),
		pools:    make(map[entity.Type]*generic.BoundedPool[*entity.Entity]),
		inScene:  make(map[string]bool),
		scratch: generic.NewHotPool(func() []*entity.Entity {
			return make([]*entity.Entity, 0, 1024)
		}, 2),
	}

	for _, lc := range cfg.Layers {
		if err := e.AddLayer(lc); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Events exposes the notification bus for UI/logging collaborators.
func (e *Engine) Events() *bus.Bus { return e.events }

// AddLayer registers a new entity partition.
func (e *Engine) AddLayer(cfg LayerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, exists := e.layers[cfg.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateLayer, cfg.ID)
	}
	l := &layer{cfg: cfg, visible: true}
	if len(cfg.LODDistances) > 0 {
		engineLOD, err := lod.New(lod.Config{
			Distances:         cfg.LODDistances,
			MinUpdateInterval: e.cfg.LOD.MinUpdateInterval,
		}, e.log)
		if err != nil {
			return err
		}
		engineLOD.SetQualityScale(e.quality.Quality())
		l.lod = engineLOD
	}
	e.layers[cfg.ID] = l
	e.byLayer[cfg.ID] = make(map[string]*entity.Entity)
	return nil
}

// RemoveLayer deletes the layer and cascades an explicit batch remove of
// all its entities.
func (e *Engine) RemoveLayer(layerID string) error {
	if _, ok := e.layers[layerID]; !ok {
		return fmt.Errorf("%w: %q", ErrLayerNotFound, layerID)
	}
	ids := make([]string, 0, len(e.byLayer[layerID]))
	for id := range e.byLayer[layerID] {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if err := e.RemoveEntity(id); err != nil {
			return err
		}
	}
	delete(e.layers, layerID)
	delete(e.byLayer, layerID)
	return nil
}

// SetLayerVisible toggles caller-requested visibility for a whole layer.
func (e *Engine) SetLayerVisible(layerID string, visible bool) error {
	l, ok := e.layers[layerID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrLayerNotFound, layerID)
	}
	if l.visible == visible {
		return nil
	}
	l.visible = visible
	for id := range e.byLayer[layerID] {
		e.enqueue(sceneOp{kind: opUpdate, id: id})
	}
	return nil
}

// LayerVisible reports the layer's requested visibility.
func (e *Engine) LayerVisible(layerID string) (bool, error) {
	l, ok := e.layers[layerID]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrLayerNotFound, layerID)
	}
	return l.visible, nil
}

// AddEntity creates one entity from the spec. The entity becomes visible to
// the scene on the next DrainFrame.
func (e *Engine) AddEntity(spec EntitySpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if e.cfg.MaxEntities > 0 && len(e.entities) >= e.cfg.MaxEntities {
		return fmt.Errorf("%w: at %d entities", ErrCapacityExceeded, e.cfg.MaxEntities)
	}
	if _, exists := e.entities[spec.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, spec.ID)
	}
	if _, ok := e.layers[spec.LayerID]; !ok {
		return fmt.Errorf("%w: %q", ErrLayerNotFound, spec.LayerID)
	}

	for _, s := range spec.Trajectory {
		if err := e.interp.AddSample(spec.ID, s.Time, s.Position, s.Attributes); err != nil {
			e.interp.RemoveSeries(spec.ID)
			return fmt.Errorf("entity %q trajectory: %w", spec.ID, err)
		}
	}

	ent := e.acquire(spec.Type)
	now := time.Now()
	ent.ID = spec.ID
	ent.LayerID = spec.LayerID
	ent.Type = spec.Type
	ent.TimeVarying = len(spec.Trajectory) > 0
	if spec.Position != nil {
		ent.Static = *spec.Position
	}
	ent.Visual = spec.Visual.Clone()
	ent.Radius = spec.Radius
	ent.Importance = spec.Importance
	ent.Moving = ent.TimeVarying
	ent.RequestedShow = !spec.Hidden
	ent.CreatedAt = now
	ent.LastUpdateAt = now

	e.index(ent)
	e.enqueue(sceneOp{kind: opAdd, id: ent.ID})
	e.culler.Invalidate()
	e.publish(EventEntityCreated, EntityEvent{ID: ent.ID, LayerID: ent.LayerID, Type: ent.Type})
	return nil
}

// UpdateEntity applies a partial mutation. Unknown IDs report ErrNotFound
// without side effects.
func (e *Engine) UpdateEntity(id string, patch Patch) error {
	ent, ok := e.entities[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	for _, s := range patch.Samples {
		if err := e.interp.AddSample(id, s.Time, s.Position, s.Attributes); err != nil {
			return fmt.Errorf("entity %q trajectory: %w", id, err)
		}
	}
	if len(patch.Samples) > 0 {
		ent.TimeVarying = true
		ent.Moving = true
	}
	if patch.Position != nil {
		ent.Static = *patch.Position
		ent.TimeVarying = false
		e.culler.Invalidate()
	}
	if patch.Visual != nil {
		ent.Visual = patch.Visual.Clone()
	}
	if patch.Importance != nil {
		ent.Importance = geo.Clamp01(*patch.Importance)
	}
	if patch.Show != nil {
		ent.RequestedShow = *patch.Show
	}
	if patch.Selected != nil {
		ent.Selected = *patch.Selected
	}
	if patch.Hovered != nil {
		ent.Hovered = *patch.Hovered
	}
	ent.LastUpdateAt = time.Now()
	e.enqueue(sceneOp{kind: opUpdate, id: id})
	e.publish(EventEntityUpdated, EntityEvent{ID: id, LayerID: ent.LayerID, Type: ent.Type})
	return nil
}

// RemoveEntity deletes the entity, returns its backing object to the pool
// and schedules the scene primitive for removal.
func (e *Engine) RemoveEntity(id string) error {
	ent, ok := e.entities[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	evt := EntityEvent{ID: id, LayerID: ent.LayerID, Type: ent.Type}
	e.unindex(ent)
	e.interp.RemoveSeries(id)
	e.enqueue(sceneOp{kind: opRemove, id: id})
	e.release(ent)
	e.culler.Invalidate()
	e.publish(EventEntityRemoved, evt)
	return nil
}

// AddSamples appends trajectory samples to an existing entity.
func (e *Engine) AddSamples(id string, samples ...interp.Sample) error {
	return e.UpdateEntity(id, Patch{Samples: samples})
}

// Entity returns the stored entity. The pointer stays owned by the engine;
// callers must not retain it across Remove calls.
func (e *Engine) Entity(id string) (*entity.Entity, bool) {
	ent, ok := e.entities[id]
	return ent, ok
}

// Count returns the number of stored entities.
func (e *Engine) Count() int { return len(e.entities) }

// QueryByLayer returns all entities of one layer.
func (e *Engine) QueryByLayer(layerID string) []*entity.Entity {
	return collect(e.byLayer[layerID])
}

// QueryByType returns all entities of one type.
func (e *Engine) QueryByType(t entity.Type) []*entity.Entity {
	return collect(e.byType[t])
}

func collect(m map[string]*entity.Entity) []*entity.Entity {
	out := make([]*entity.Entity, 0, len(m))
	for _, ent := range m {
		out = append(out, ent)
	}
	return out
}

// PositionAt resolves an entity's position at the given time, consulting
// the interpolator for time-varying entities.
func (e *Engine) PositionAt(id string, t time.Time) (geo.Vec3, bool) {
	ent, ok := e.entities[id]
	if !ok {
		return geo.Vec3{}, false
	}
	return e.resolveAt(ent, t)
}

func (e *Engine) resolveAt(ent *entity.Entity, t time.Time) (geo.Vec3, bool) {
	if !ent.TimeVarying {
		return ent.Static, true
	}
	s, ok := e.interp.PositionAt(ent.ID, t)
	if !ok {
		return geo.Vec3{}, false
	}
	return s.Position, true
}

// Stats returns engine diagnostics.
func (e *Engine) Stats() map[string]any {
	cullStats := e.culler.Stats()
	high, medium, low, background := e.sched.BucketSizes()
	return map[string]any{
		"entities":       len(e.entities),
		"layers":         len(e.layers),
		"pending_ops":    len(e.pending),
		"in_scene":       len(e.inScene),
		"frame":          e.frame,
		"quality":        e.quality.Quality(),
		"series":         e.interp.SeriesCount(),
		"cull_passes":    cullStats.Passes,
		"cull_skipped":   cullStats.Skipped,
		"bucket_high":    high,
		"bucket_medium":  medium,
		"bucket_low":     low,
		"bucket_bg":      background,
		"quality_events": len(e.quality.History()),
	}
}

// acquire takes a pooled entity for the type or allocates a fresh one.
func (e *Engine) acquire(t entity.Type) *entity.Entity {
	pool, ok := e.pools[t]
	if !ok {
		pool = generic.NewBoundedPool[*entity.Entity](e.cfg.PoolSize)
		e.pools[t] = pool
	}
	if ent, ok := pool.Acquire(); ok {
		return ent
	}
	return &entity.Entity{}
}

func (e *Engine) release(ent *entity.Entity) {
	t := ent.Type
	ent.Reset()
	if pool, ok := e.pools[t]; ok {
		pool.Release(ent)
	}
}

// index inserts the entity into all three indices. The indices are mutated
// together within one public call so none is ever observably stale.
func (e *Engine) index(ent *entity.Entity) {
	e.entities[ent.ID] = ent
	e.byLayer[ent.LayerID][ent.ID] = ent
	if e.byType[ent.Type] == nil {
		e.byType[ent.Type] = make(map[string]*entity.Entity)
	}
	e.byType[ent.Type][ent.ID] = ent
}

func (e *Engine) unindex(ent *entity.Entity) {
	delete(e.entities, ent.ID)
	if m, ok := e.byLayer[ent.LayerID]; ok {
		delete(m, ent.ID)
	}
	if m, ok := e.byType[ent.Type]; ok {
		delete(m, ent.ID)
	}
}

func (e *Engine) publish(eventType string, data any) {
	if err := e.events.Publish(bus.NewEvent(eventType, eventSource, data)); err != nil {
		e.log.Warn("event handler failed", log.String("event", eventType), log.Err(err))
	}
}
