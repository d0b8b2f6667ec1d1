package engine

import (
	"fmt"

	"github.com/globekit/globekit/internal/core/cull"
	"github.com/globekit/globekit/internal/core/entity"
	"github.com/globekit/globekit/internal/core/geo"
	"github.com/globekit/globekit/internal/core/interp"
	"github.com/globekit/globekit/internal/core/lod"
	"github.com/globekit/globekit/internal/core/quality"
	"github.com/globekit/globekit/internal/core/sched"
	"github.com/globekit/globekit/internal/core/scene"
)

// Config wires the engine and its stages. It is an in-process object; the
// JSON/YAML tags exist for embedders that keep tuning in files.
type Config struct {
	// MaxEntities caps the store. Zero means unbounded.
	MaxEntities int `json:"max_entities" yaml:"max_entities"`
	// BatchChunkSize is the number of items a batch cursor processes per
	// step before yielding back to the host.
	BatchChunkSize int `json:"batch_chunk_size" yaml:"batch_chunk_size"`
	// MaxOpsPerFrame bounds scene mutations applied in one DrainFrame.
	MaxOpsPerFrame int `json:"max_ops_per_frame" yaml:"max_ops_per_frame"`
	// BackgroundPerFrame is how many background-bucket entities get
	// opportunistic updates per frame.
	BackgroundPerFrame int `json:"background_per_frame" yaml:"background_per_frame"`
	// PoolSize is the per-type object pool capacity.
	PoolSize int `json:"pool_size" yaml:"pool_size"`
	// PerformanceEventEvery emits a performanceUpdate event every N frames.
	PerformanceEventEvery int `json:"performance_event_every" yaml:"performance_event_every"`

	Cull    cull.Config    `json:"cull" yaml:"cull"`
	LOD     lod.Config     `json:"lod" yaml:"lod"`
	Quality quality.Config `json:"quality" yaml:"quality"`
	Sched   sched.Config   `json:"sched" yaml:"sched"`
	Interp  interp.Config  `json:"interp" yaml:"interp"`

	// Layers created at construction time. More can be added later.
	Layers []LayerConfig `json:"layers,omitempty" yaml:"layers,omitempty"`
}

// DefaultConfig returns engine defaults suitable for a few thousand
// entities.
func DefaultConfig() Config {
	return Config{
		MaxEntities:           50_000,
		BatchChunkSize:        100,
		MaxOpsPerFrame:        200,
		BackgroundPerFrame:    8,
		PoolSize:              512,
		PerformanceEventEvery: 30,
		Cull:                  cull.DefaultConfig(),
		LOD:                   lod.DefaultConfig(),
		Quality:               quality.DefaultConfig(),
		Sched:                 sched.DefaultConfig(),
		Interp:                interp.DefaultConfig(),
	}
}

// Validate checks the engine config and every stage config.
func (c Config) Validate() error {
	if c.MaxEntities < 0 {
		return fmt.Errorf("%w: negative max entities", ErrInvalidConfig)
	}
	if err := c.LOD.Validate(); err != nil {
		return err
	}
	if err := c.Quality.Validate(); err != nil {
		return err
	}
	if err := c.Interp.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Layers))
	for _, lc := range c.Layers {
		if err := lc.Validate(); err != nil {
			return err
		}
		if _, dup := seen[lc.ID]; dup {
			return fmt.Errorf("%w: duplicate layer %q", ErrInvalidConfig, lc.ID)
		}
		seen[lc.ID] = struct{}{}
	}
	return nil
}

// LayerConfig declares one named partition of entities.
type LayerConfig struct {
	ID     string `json:"id" yaml:"id"`
	ZIndex int    `json:"z_index" yaml:"z_index"`
	// MaxDistance hides entities farther than this from the camera. Zero
	// disables the check.
	MaxDistance float64 `json:"max_distance" yaml:"max_distance"`
	// LODDistances overrides the engine LOD thresholds for this layer.
	LODDistances  []float64 `json:"lod_distances,omitempty" yaml:"lod_distances,omitempty"`
	EnableCulling bool      `json:"enable_culling" yaml:"enable_culling"`
	EnableLOD     bool      `json:"enable_lod" yaml:"enable_lod"`
}

// DefaultLayerConfig returns a layer with culling and LOD enabled.
func DefaultLayerConfig(id string) LayerConfig {
	return LayerConfig{
		ID:            id,
		EnableCulling: true,
		EnableLOD:     true,
	}
}

// Validate checks the layer declaration.
func (lc LayerConfig) Validate() error {
	if lc.ID == "" {
		return fmt.Errorf("%w: layer ID is required", ErrInvalidConfig)
	}
	if lc.MaxDistance < 0 {
		return fmt.Errorf("%w: layer %q has negative max distance", ErrInvalidConfig, lc.ID)
	}
	for i := 1; i < len(lc.LODDistances); i++ {
		if lc.LODDistances[i] <= lc.LODDistances[i-1] {
			return fmt.Errorf("%w: layer %q LOD distances not ascending", ErrInvalidConfig, lc.ID)
		}
	}
	return nil
}

// EntitySpec is the per-entity creation payload.
type EntitySpec struct {
	ID      string      `json:"id" yaml:"id"`
	LayerID string      `json:"layer_id" yaml:"layer_id"`
	Type    entity.Type `json:"type" yaml:"type"`

	// Position is the fixed coordinate for static entities. Exactly one of
	// Position and Trajectory must be set.
	Position *geo.Vec3 `json:"position,omitempty" yaml:"position,omitempty"`
	// Trajectory seeds a time-sampled position series.
	Trajectory []interp.Sample `json:"trajectory,omitempty" yaml:"trajectory,omitempty"`

	Visual     scene.Primitive `json:"visual" yaml:"visual"`
	Radius     float64         `json:"radius,omitempty" yaml:"radius,omitempty"`
	Importance float64         `json:"importance,omitempty" yaml:"importance,omitempty"`
	// Hidden creates the entity without requesting visibility.
	Hidden bool `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// Validate checks the spec shape; existence checks happen in AddEntity.
func (s EntitySpec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: entity ID is required", ErrInvalidSpec)
	}
	if s.LayerID == "" {
		return fmt.Errorf("%w: entity %q has no layer", ErrInvalidSpec, s.ID)
	}
	if s.Position == nil && len(s.Trajectory) == 0 {
		return fmt.Errorf("%w: entity %q has neither position nor trajectory", ErrInvalidSpec, s.ID)
	}
	if s.Position != nil && len(s.Trajectory) > 0 {
		return fmt.Errorf("%w: entity %q has both position and trajectory", ErrInvalidSpec, s.ID)
	}
	if s.Importance < 0 || s.Importance > 1 {
		return fmt.Errorf("%w: entity %q importance out of [0,1]", ErrInvalidSpec, s.ID)
	}
	return nil
}

// Patch is a partial entity mutation for UpdateEntity. Nil fields are left
// unchanged.
type Patch struct {
	// Position replaces the static position; Samples append to the
	// trajectory of a time-varying entity.
	Position   *geo.Vec3
	Samples    []interp.Sample
	Visual     *scene.Primitive
	Importance *float64
	Show       *bool
	Selected   *bool
	Hovered    *bool
}
