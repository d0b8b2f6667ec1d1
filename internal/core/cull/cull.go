package cull

import (
	"time"

	"github.com/globekit/globekit/internal/core/entity"
	"github.com/globekit/globekit/internal/core/geo"
	"github.com/globekit/globekit/internal/core/observability/log"
	"github.com/globekit/globekit/internal/core/scene"
)

// PositionResolver resolves an entity's current position. The second return
// is false when no position is available, in which case the entity is
// skipped by the cull pass.
type PositionResolver func(e *entity.Entity) (geo.Vec3, bool)

// Config tunes a Culler.
type Config struct {
	// PositionThreshold is the camera movement, in meters, below which the
	// previous cull result is kept.
	PositionThreshold float64 `json:"position_threshold" yaml:"position_threshold"`
	// DirectionThreshold is the allowed drop of dot(oldDir, newDir) before
	// a rotation forces recomputation.
	DirectionThreshold float64 `json:"direction_threshold" yaml:"direction_threshold"`
	// DefaultRadius is the bounding-sphere radius used when neither the
	// entity nor its type declares one.
	DefaultRadius float64 `json:"default_radius" yaml:"default_radius"`
	// TypeRadius overrides DefaultRadius per entity type.
	TypeRadius map[entity.Type]float64 `json:"type_radius,omitempty" yaml:"type_radius,omitempty"`
}

// DefaultConfig returns culler defaults tuned for globe-scale scenes.
func DefaultConfig() Config {
	return Config{
		PositionThreshold:  50,
		DirectionThreshold: 1e-4,
		DefaultRadius:      100,
	}
}

// Result is the outcome of one cull pass. Entities whose position could not
// be resolved appear in neither set.
type Result struct {
	Visible map[string]struct{}
	Culled  map[string]struct{}
	Skipped int
}

// Stats are cumulative culler counters for diagnostics.
type Stats struct {
	Passes        int64
	Tested        int64
	Skipped       int64
	LastRecompute time.Time
}

// Culler classifies entities against the camera frustum. Full recomputation
// is gated on camera movement because the camera is typically static for
// many consecutive frames.
type Culler struct {
	cfg Config
	log log.Log

	lastPos geo.Vec3
	lastDir geo.Vec3
	primed  bool

	stats Stats
}

func New(cfg Config, lg log.Log) *Culler {
	if lg == nil {
		lg = log.NewNop()
	}
	if cfg.DefaultRadius <= 0 {
		cfg.DefaultRadius = DefaultConfig().DefaultRadius
	}
	return &Culler{cfg: cfg, log: lg}
}

// ShouldRecompute reports whether the camera has moved or rotated enough
// since the last Cull to invalidate the previous classification.
func (c *Culler) ShouldRecompute(cam scene.Camera) bool {
	if !c.primed {
		return true
	}
	if geo.Distance(cam.Position, c.lastPos) > c.cfg.PositionThreshold {
		return true
	}
	dot := cam.Direction.Normalize().Dot(c.lastDir)
	return 1-dot > c.cfg.DirectionThreshold
}

// Invalidate forces the next ShouldRecompute to report true. Called when the
// entity set changed without camera movement.
func (c *Culler) Invalidate() {
	c.primed = false
}

// Cull classifies every entity against the camera frustum and records the
// camera pose for subsequent gating. An entity straddling the frustum
// boundary is classified visible.
func (c *Culler) Cull(entities []*entity.Entity, cam scene.Camera, now time.Time, resolve PositionResolver) Result {
	res := Result{
		Visible: make(map[string]struct{}, len(entities)),
		Culled:  make(map[string]struct{}),
	}

	for _, e := range entities {
		pos, ok := c.position(e, resolve)
		if !ok {
			res.Skipped++
			c.stats.Skipped++
			c.log.Debug("cull: entity has no resolvable position",
				log.String("entity_id", e.ID),
				log.String("layer_id", e.LayerID))
			continue
		}
		c.stats.Tested++

		sphere := geo.BoundingSphere{Center: pos, Radius: c.radiusFor(e)}
		if cam.Frustum.ContainsSphere(sphere) == geo.Outside {
			res.Culled[e.ID] = struct{}{}
		} else {
			res.Visible[e.ID] = struct{}{}
		}
	}

	c.lastPos = cam.Position
	c.lastDir = cam.Direction.Normalize()
	c.primed = true
	c.stats.Passes++
	c.stats.LastRecompute = now
	return res
}

func (c *Culler) position(e *entity.Entity, resolve PositionResolver) (geo.Vec3, bool) {
	if e.HasPosition() {
		return e.Static, true
	}
	if resolve == nil {
		return geo.Vec3{}, false
	}
	return resolve(e)
}

func (c *Culler) radiusFor(e *entity.Entity) float64 {
	if e.Radius > 0 {
		return e.Radius
	}
	if r, ok := c.cfg.TypeRadius[e.Type]; ok && r > 0 {
		return r
	}
	return c.cfg.DefaultRadius
}

// Stats returns cumulative counters.
func (c *Culler) Stats() Stats { return c.stats }
