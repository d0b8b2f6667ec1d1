package entity

import (
	"time"

	"github.com/globekit/globekit/internal/core/geo"
	"github.com/globekit/globekit/internal/core/scene"
)

// Type is the categorical kind of an entity. It selects pool membership and
// default bounding radius; it carries no visual meaning of its own.
type Type string

const (
	TypePoint      Type = "point"
	TypeTrajectory Type = "trajectory"
	TypeRelation   Type = "relation"
	TypeEvent      Type = "event"
	TypeArea       Type = "area"
	TypeRoute      Type = "route"
)

// Entity is the engine's record of one scene object. Instances are owned by
// the store and may be recycled through an object pool; callers hold IDs,
// not pointers.
type Entity struct {
	ID      string
	LayerID string
	Type    Type

	// Static holds the fixed position. TimeVarying entities resolve their
	// position through the interpolator instead.
	Static      geo.Vec3
	TimeVarying bool

	// Visual is the styling payload forwarded to the scene provider. The ID
	// and Show fields are stamped by the store on dispatch.
	Visual scene.Primitive

	// Radius overrides the bounding-sphere radius for culling. Zero selects
	// the per-type default.
	Radius float64

	// Importance is the caller-supplied priority term in [0,1].
	Importance float64

	Selected bool
	Hovered  bool
	Moving   bool

	// LODLevel is the current detail tier, mutated only by the LOD pass.
	// 0 is nearest, the highest tier hides the entity.
	LODLevel int

	// Visible is the AND of frustum visibility and requested visibility.
	Visible bool
	// RequestedShow is the caller-requested visibility.
	RequestedShow bool

	// Priority is the scheduler score from the last rebuild.
	Priority float64

	CreatedAt    time.Time
	LastUpdateAt time.Time
}

// Reset clears the entity for pool reuse.
func (e *Entity) Reset() {
	*e = Entity{}
}

// HasPosition reports whether the entity has a directly resolvable static
// position. Time-varying entities are resolved through the interpolator.
func (e *Entity) HasPosition() bool {
	return !e.TimeVarying
}
