package scene

import (
	"github.com/globekit/globekit/internal/core/geo"
)

// Effect is a scene-level rendering toggle the quality controller may flip
// at fixed quality breakpoints.
type Effect string

const (
	EffectShadows      Effect = "shadows"
	EffectAntiAliasing Effect = "anti_aliasing"
)

// Camera is the engine's read-only view of the provider's camera.
type Camera struct {
	Position  geo.Vec3
	Direction geo.Vec3
	Up        geo.Vec3
	Frustum   geo.Frustum
}

// Provider is the minimal capability set the engine assumes of its 3D scene
// host. Implementations wrap a concrete globe/scene-graph library; the
// engine never reaches past this interface.
//
// All methods are called from the frame thread only.
type Provider interface {
	// AddPrimitive inserts a primitive into the scene graph. The primitive
	// ID must be unused.
	AddPrimitive(p Primitive) error
	// UpdatePrimitive replaces the primitive previously added under id.
	UpdatePrimitive(id string, p Primitive) error
	// RemovePrimitive drops the primitive from the scene graph.
	RemovePrimitive(id string) error
	// Camera returns the current camera state.
	Camera() Camera
	// SetEffect toggles a scene-level effect.
	SetEffect(effect Effect, enabled bool)
}
