package engine

import (
	"time"

	"github.com/globekit/globekit/internal/core/entity"
	"github.com/globekit/globekit/internal/core/geo"
	"github.com/globekit/globekit/internal/core/lod"
	"github.com/globekit/globekit/internal/core/observability/log"
	"github.com/globekit/globekit/internal/core/scene"
)

type opKind uint8

const (
	opAdd opKind = iota
	opUpdate
	opRemove
)

// sceneOp references entities by ID, not pointer, so pooled objects can be
// recycled while ops are still queued.
type sceneOp struct {
	kind opKind
	id   string
}

func (e *Engine) enqueue(op sceneOp) {
	e.pending = append(e.pending, op)
}

// FrameReport summarizes one DrainFrame pass.
type FrameReport struct {
	AppliedOps  int
	FailedOps   int
	Visible     int
	Culled      int
	Skipped     int
	TierChanges int
	Dispatched  int
	Background  int
	Quality     float64
	FPS         float64
}

// DrainFrame is the per-frame entry point. It applies pending scene
// mutations under the op budget, then runs cull, LOD, quality retune,
// scheduler rebuild and budgeted dispatch in that fixed order. now is both
// the wall-clock frame time and the simulated time used to resolve
// time-varying positions.
func (e *Engine) DrainFrame(now time.Time) FrameReport {
	e.now = now
	e.frame++
	var report FrameReport

	report.AppliedOps, report.FailedOps = e.applyPendingOps()

	cam := e.provider.Camera()
	resolve := func(ent *entity.Entity) (geo.Vec3, bool) {
		return e.resolveAt(ent, now)
	}

	if e.culler.ShouldRecompute(cam) {
		all := e.allEntities()
		e.lastCull = e.culler.Cull(all, cam, now, resolve)
		e.scratch.Put(all)
	}
	visibleEntities := e.applyVisibility(cam, resolve)
	defer e.scratch.Put(visibleEntities)
	report.Visible = len(visibleEntities)
	report.Culled = len(e.lastCull.Culled)
	report.Skipped = e.lastCull.Skipped

	report.TierChanges = e.recomputeLOD(now, cam, visibleEntities, resolve)

	e.quality.RecordFrame(now)
	e.retuneQuality(now)
	report.Quality = e.quality.Quality()
	report.FPS = e.quality.FPS(now)

	e.sched.Rebuild(visibleEntities, cam.Position, resolve)

	report.Dispatched = e.dispatch(e.sched.Drain(e.sched.Budget()))
	report.Background = e.dispatch(e.sched.DrainBackground(e.cfg.BackgroundPerFrame))

	if e.cfg.PerformanceEventEvery > 0 && e.frame%int64(e.cfg.PerformanceEventEvery) == 0 {
		e.publish(EventPerformanceUpdate, PerformanceEvent{
			Frame:      e.frame,
			FPS:        report.FPS,
			Quality:    report.Quality,
			Entities:   len(e.entities),
			Visible:    report.Visible,
			Dispatched: report.Dispatched,
			PendingOps: len(e.pending),
		})
	}
	return report
}

// applyPendingOps processes at most MaxOpsPerFrame queued scene mutations.
// A provider failure is isolated to its entity: the op is logged, requeued
// and retried next frame instead of aborting the batch.
func (e *Engine) applyPendingOps() (applied, failed int) {
	n := len(e.pending)
	if n > e.cfg.MaxOpsPerFrame {
		n = e.cfg.MaxOpsPerFrame
	}
	if n == 0 {
		return 0, 0
	}

	chunk := e.pending[:n]
	rest := e.pending[n:]
	requeue := make([]sceneOp, 0)

	for _, op := range chunk {
		if err := e.applyOp(op); err != nil {
			failed++
			e.log.Warn("scene provider call failed, retrying next frame",
				log.String("entity_id", op.id),
				log.Err(err))
			requeue = append(requeue, op)
			continue
		}
		applied++
	}

	e.pending = append(append(e.pending[:0], rest...), requeue...)
	return applied, failed
}

func (e *Engine) applyOp(op sceneOp) error {
	switch op.kind {
	case opRemove:
		if !e.inScene[op.id] {
			return nil
		}
		if err := e.provider.RemovePrimitive(op.id); err != nil {
			return err
		}
		delete(e.inScene, op.id)
		return nil
	case opAdd, opUpdate:
		ent, ok := e.entities[op.id]
		if !ok {
			// removed before the op was applied
			return nil
		}
		prim := e.buildPrimitive(ent)
		if e.inScene[op.id] {
			return e.provider.UpdatePrimitive(op.id, prim)
		}
		if err := e.provider.AddPrimitive(prim); err != nil {
			return err
		}
		e.inScene[op.id] = true
	}
	return nil
}

// buildPrimitive projects the entity's current state into the provider
// payload: resolved position, layer z-index, visibility and the LOD feature
// mask.
func (e *Engine) buildPrimitive(ent *entity.Entity) scene.Primitive {
	prim := ent.Visual.Clone()
	prim.ID = ent.ID

	if pos, ok := e.resolveAt(ent, e.now); ok {
		prim.Position = pos
	}

	l := e.layers[ent.LayerID]
	lodEngine := e.lodFor(l)
	show := ent.Visible && ent.RequestedShow
	if l != nil {
		prim.ZIndex = l.cfg.ZIndex
		show = show && l.visible
		if l.cfg.EnableLOD && ent.LODLevel >= lodEngine.HiddenTier() {
			show = false
		}
	}
	prim.Show = show

	if l != nil && l.cfg.EnableLOD {
		level := ent.LODLevel
		if !lodEngine.HasFeature(level, lod.FeatureIcon) {
			prim.Icon = nil
		} else if prim.Icon != nil && !lodEngine.HasFeature(level, lod.FeatureShadow) {
			icon := *prim.Icon
			icon.Shadow = false
			prim.Icon = &icon
		}
		if !lodEngine.HasFeature(level, lod.FeatureLabel) {
			prim.Label = nil
		}
		if !lodEngine.HasFeature(level, lod.FeaturePath) {
			prim.Path = nil
		}
		if !lodEngine.HasFeature(level, lod.FeatureModel) {
			prim.Model = nil
		}
	}
	return prim
}

func (e *Engine) lodFor(l *layer) *lod.Engine {
	if l != nil && l.lod != nil {
		return l.lod
	}
	return e.lod
}

// applyVisibility combines the cull result with caller-requested and layer
// visibility, plus the per-layer max-distance cutoff, and returns the
// entities visible this frame.
func (e *Engine) applyVisibility(cam scene.Camera, resolve func(*entity.Entity) (geo.Vec3, bool)) []*entity.Entity {
	visible := e.scratch.Get()[:0]
	for _, ent := range e.entities {
		l := e.layers[ent.LayerID]
		v := ent.RequestedShow && l != nil && l.visible
		if v && l.cfg.EnableCulling {
			_, inFrustum := e.lastCull.Visible[ent.ID]
			v = inFrustum
		}
		if v && l.cfg.MaxDistance > 0 {
			pos, ok := resolve(ent)
			v = ok && geo.Distance(cam.Position, pos) <= l.cfg.MaxDistance
		}
		ent.Visible = v
		if v {
			visible = append(visible, ent)
		}
	}
	return visible
}

// recomputeLOD runs the throttled tier pass per LOD engine and emits
// lodChanged plus a scene update for every entity whose tier moved.
func (e *Engine) recomputeLOD(now time.Time, cam scene.Camera, visible []*entity.Entity, resolve func(*entity.Entity) (geo.Vec3, bool)) int {
	distance := func(ent *entity.Entity) (float64, bool) {
		pos, ok := resolve(ent)
		if !ok {
			return 0, false
		}
		return geo.Distance(cam.Position, pos), true
	}

	// Group by governing LOD engine so per-layer overrides throttle
	// independently.
	groups := make(map[*lod.Engine][]*entity.Entity)
	for _, ent := range visible {
		l := e.layers[ent.LayerID]
		if l == nil || !l.cfg.EnableLOD {
			continue
		}
		engineLOD := e.lodFor(l)
		groups[engineLOD] = append(groups[engineLOD], ent)
	}

	changes := 0
	for engineLOD, ents := range groups {
		for _, ch := range engineLOD.Recompute(now, ents, distance) {
			changes++
			e.enqueue(sceneOp{kind: opUpdate, id: ch.Entity.ID})
			e.publish(EventLODChanged, LODEvent{ID: ch.Entity.ID, From: ch.From, To: ch.To})
		}
	}
	return changes
}

// retuneQuality runs the FPS-driven retune and propagates a quality change
// to the scheduler budget, the LOD thresholds and the scene effects.
func (e *Engine) retuneQuality(now time.Time) (float64, bool) {
	before := e.quality.Quality()
	q, changed := e.quality.Retune(now)
	if !changed {
		return q, false
	}
	e.sched.SetBudgetScale(q)
	e.lod.SetQualityScale(q)
	for _, l := range e.layers {
		if l.lod != nil {
			l.lod.SetQualityScale(q)
		}
	}
	for effect, enabled := range e.quality.EffectStates() {
		e.provider.SetEffect(effect, enabled)
	}
	e.publish(EventQualityChanged, QualityEvent{From: before, To: q, FPS: e.quality.FPS(now)})
	return q, true
}

// dispatch refreshes the scene primitive for each scheduled entity. Only
// entities already materialized in the scene are touched; adds go through
// the pending-op queue.
func (e *Engine) dispatch(ents []*entity.Entity) int {
	count := 0
	for _, ent := range ents {
		if !e.inScene[ent.ID] {
			continue
		}
		if err := e.provider.UpdatePrimitive(ent.ID, e.buildPrimitive(ent)); err != nil {
			e.log.Warn("dispatch update failed",
				log.String("entity_id", ent.ID),
				log.Err(err))
			continue
		}
		count++
	}
	return count
}

func (e *Engine) allEntities() []*entity.Entity {
	out := e.scratch.Get()[:0]
	for _, ent := range e.entities {
		out = append(out, ent)
	}
	return out
}
