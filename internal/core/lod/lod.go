package lod

import (
	"errors"
	"fmt"
	"time"

	"github.com/globekit/globekit/internal/core/entity"
	"github.com/globekit/globekit/internal/core/observability/log"
)

// ErrInvalidLodConfig flags a tier configuration rejected at construction
// time, before it can affect runtime behavior.
var ErrInvalidLodConfig = errors.New("invalid LOD configuration")

// Feature is one visual capability toggled per detail tier.
type Feature string

const (
	FeatureIcon   Feature = "icon"
	FeatureLabel  Feature = "label"
	FeaturePath   Feature = "path"
	FeatureShadow Feature = "shadow"
	FeatureModel  Feature = "model"
)

// Config declares the distance tiers and the features each tier keeps.
type Config struct {
	// Distances are the ascending tier thresholds in meters. A distance
	// within Distances[i] maps to tier i; beyond the last threshold the
	// entity lands in the hidden tier len(Distances).
	Distances []float64 `json:"distances" yaml:"distances"`
	// Tiers lists the enabled features per tier, one entry per threshold.
	// The hidden tier has no features and is implicit. A missing table
	// falls back to DefaultTiers.
	Tiers [][]Feature `json:"tiers,omitempty" yaml:"tiers,omitempty"`
	// MinUpdateInterval throttles recomputation passes.
	MinUpdateInterval time.Duration `json:"min_update_interval" yaml:"min_update_interval"`
}

// DefaultTiers returns the stock feature table for n tiers: the nearest tier
// shows everything, farther tiers shed shadow, then label, then path.
func DefaultTiers(n int) [][]Feature {
	full := []Feature{FeatureIcon, FeatureModel, FeaturePath, FeatureLabel, FeatureShadow}
	tiers := make([][]Feature, n)
	for i := range tiers {
		keep := len(full) - i
		if keep < 1 {
			keep = 1
		}
		tiers[i] = append([]Feature(nil), full[:keep]...)
	}
	return tiers
}

// DefaultConfig returns three visible tiers with globe-scale thresholds.
func DefaultConfig() Config {
	return Config{
		Distances:         []float64{5_000, 50_000, 500_000},
		MinUpdateInterval: 100 * time.Millisecond,
	}
}

// Validate rejects non-ascending thresholds and feature tables that
// re-enable a feature at a farther tier than a nearer one. The tier shape
// (monotonically fewer features with distance) is an invariant.
func (c Config) Validate() error {
	if len(c.Distances) == 0 {
		return fmt.Errorf("%w: no distance thresholds", ErrInvalidLodConfig)
	}
	for i, d := range c.Distances {
		if d <= 0 {
			return fmt.Errorf("%w: threshold %d is not positive", ErrInvalidLodConfig, i)
		}
		if i > 0 && d <= c.Distances[i-1] {
			return fmt.Errorf("%w: thresholds not strictly ascending at index %d", ErrInvalidLodConfig, i)
		}
	}
	if c.Tiers == nil {
		return nil
	}
	if len(c.Tiers) != len(c.Distances) {
		return fmt.Errorf("%w: %d tiers for %d thresholds", ErrInvalidLodConfig, len(c.Tiers), len(c.Distances))
	}
	for i := 1; i < len(c.Tiers); i++ {
		nearer := featureSet(c.Tiers[i-1])
		for _, f := range c.Tiers[i] {
			if _, ok := nearer[f]; !ok {
				return fmt.Errorf("%w: feature %q enabled at tier %d but not at tier %d", ErrInvalidLodConfig, f, i, i-1)
			}
		}
	}
	return nil
}

func featureSet(features []Feature) map[Feature]struct{} {
	set := make(map[Feature]struct{}, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	return set
}

// TierChange reports one entity whose tier moved during a Recompute pass.
type TierChange struct {
	Entity *entity.Entity
	From   int
	To     int
}

// Engine maps camera distance to a discrete detail tier and applies the
// per-tier feature toggles. Recomputation is throttled so per-frame calls
// do not thrash.
type Engine struct {
	cfg     Config
	tiers   []map[Feature]struct{}
	scale   float64
	lastRun time.Time
	ran     bool
	log     log.Log
}

func New(cfg Config, lg log.Log) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Tiers == nil {
		cfg.Tiers = DefaultTiers(len(cfg.Distances))
	}
	if cfg.MinUpdateInterval <= 0 {
		cfg.MinUpdateInterval = DefaultConfig().MinUpdateInterval
	}
	if lg == nil {
		lg = log.NewNop()
	}
	tiers := make([]map[Feature]struct{}, len(cfg.Tiers))
	for i, features := range cfg.Tiers {
		tiers[i] = featureSet(features)
	}
	return &Engine{cfg: cfg, tiers: tiers, scale: 1, log: lg}, nil
}

// TierFor maps a camera distance to a tier under the current quality scale.
func (e *Engine) TierFor(distance float64) int {
	for i, d := range e.cfg.Distances {
		if distance <= d*e.scale {
			return i
		}
	}
	return len(e.cfg.Distances)
}

// HiddenTier is the tier at which an entity is not rendered at all.
func (e *Engine) HiddenTier() int { return len(e.cfg.Distances) }

// HasFeature reports whether the tier keeps the feature. The hidden tier
// keeps none.
func (e *Engine) HasFeature(level int, f Feature) bool {
	if level < 0 || level >= len(e.tiers) {
		return false
	}
	_, ok := e.tiers[level][f]
	return ok
}

// SetQualityScale rescales the thresholds: a scale below 1 moves every tier
// switch nearer to the camera, degrading entities sooner.
func (e *Engine) SetQualityScale(s float64) {
	if s <= 0 {
		s = 1
	}
	e.scale = s
}

// QualityScale returns the current threshold scale.
func (e *Engine) QualityScale() float64 { return e.scale }

// Recompute reassigns tiers for the given entities. The pass is skipped
// entirely inside MinUpdateInterval of the previous one, and only entities
// whose tier actually changed are reported.
func (e *Engine) Recompute(now time.Time, entities []*entity.Entity, distance func(*entity.Entity) (float64, bool)) []TierChange {
	if e.ran && now.Sub(e.lastRun) < e.cfg.MinUpdateInterval {
		return nil
	}
	e.lastRun = now
	e.ran = true

	var changes []TierChange
	for _, ent := range entities {
		d, ok := distance(ent)
		if !ok {
			continue
		}
		level := e.TierFor(d)
		if level == ent.LODLevel {
			continue
		}
		changes = append(changes, TierChange{Entity: ent, From: ent.LODLevel, To: level})
		ent.LODLevel = level
	}
	return changes
}
