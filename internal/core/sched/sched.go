package sched

import (
	"sort"

	"github.com/globekit/globekit/internal/core/entity"
	"github.com/globekit/globekit/internal/core/geo"
	"github.com/globekit/globekit/internal/core/observability/log"
	"github.com/globekit/globekit/pkg/sequence"
)

// PositionResolver resolves an entity's current position for distance
// scoring.
type PositionResolver func(e *entity.Entity) (geo.Vec3, bool)

// Weights are the fixed coefficients of the priority score.
type Weights struct {
	Distance    float64 `json:"distance" yaml:"distance"`
	Importance  float64 `json:"importance" yaml:"importance"`
	Moving      float64 `json:"moving" yaml:"moving"`
	Interaction float64 `json:"interaction" yaml:"interaction"`
}

// Config tunes a Scheduler.
type Config struct {
	Weights Weights `json:"weights" yaml:"weights"`
	// Bucket thresholds on the priority score.
	HighThreshold   float64 `json:"high_threshold" yaml:"high_threshold"`
	MediumThreshold float64 `json:"medium_threshold" yaml:"medium_threshold"`
	LowThreshold    float64 `json:"low_threshold" yaml:"low_threshold"`
	// MediumShare is the fraction of leftover budget given to the medium
	// bucket; the low bucket receives the rest.
	MediumShare float64 `json:"medium_share" yaml:"medium_share"`
	// MaxDistance normalizes the distance-proximity term.
	MaxDistance float64 `json:"max_distance" yaml:"max_distance"`
	// BaseBudget is the per-frame entity budget at full quality.
	BaseBudget int `json:"base_budget" yaml:"base_budget"`
}

// DefaultConfig returns the stock scoring weights and bucket split.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Distance:    0.4,
			Importance:  0.3,
			Moving:      0.1,
			Interaction: 0.2,
		},
		HighThreshold:   0.8,
		MediumThreshold: 0.6,
		LowThreshold:    0.3,
		MediumShare:     0.6,
		MaxDistance:     1_000_000,
		BaseBudget:      200,
	}
}

type item struct {
	entity   *entity.Entity
	distance float64
}

// Scheduler buckets visible entities by priority and dispatches them under a
// hard per-frame budget. The high bucket is never rationed; background
// entities are only serviced opportunistically.
type Scheduler struct {
	cfg         Config
	log         log.Log
	budgetScale float64

	high   []item
	medium []item
	low    []item

	background *sequence.PriorityQueue[*entity.Entity]
}

func New(cfg Config, lg log.Log) *Scheduler {
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = DefaultConfig().MaxDistance
	}
	if cfg.BaseBudget <= 0 {
		cfg.BaseBudget = DefaultConfig().BaseBudget
	}
	if cfg.MediumShare <= 0 || cfg.MediumShare > 1 {
		cfg.MediumShare = DefaultConfig().MediumShare
	}
	if lg == nil {
		lg = log.NewNop()
	}
	return &Scheduler{
		cfg:         cfg,
		log:         lg,
		budgetScale: 1,
		background:  sequence.NewPriorityQueue[*entity.Entity](),
	}
}

// Score computes the priority for one entity at the given distance.
func (s *Scheduler) Score(e *entity.Entity, distance float64) float64 {
	w := s.cfg.Weights
	proximity := 1 - geo.Clamp01(distance/s.cfg.MaxDistance)
	score := w.Distance*proximity + w.Importance*geo.Clamp01(e.Importance)
	if e.Moving {
		score += w.Moving
	}
	if e.Selected || e.Hovered {
		score += w.Interaction
	}
	return geo.Clamp01(score)
}

// Rebuild recomputes scores and buckets for the visible set. Each bucket is
// sorted by ascending distance with a stable sort, so equal distances keep
// insertion order. No entity lands in more than one bucket.
func (s *Scheduler) Rebuild(visible []*entity.Entity, cameraPos geo.Vec3, resolve PositionResolver) {
	s.high = s.high[:0]
	s.medium = s.medium[:0]
	s.low = s.low[:0]
	s.background.Clear()

	for _, e := range visible {
		pos := e.Static
		if e.TimeVarying {
			p, ok := resolve(e)
			if !ok {
				continue
			}
			pos = p
		}
		distance := geo.Distance(cameraPos, pos)
		score := s.Score(e, distance)
		e.Priority = score

		it := item{entity: e, distance: distance}
		switch {
		case score >= s.cfg.HighThreshold:
			s.high = append(s.high, it)
		case score >= s.cfg.MediumThreshold:
			s.medium = append(s.medium, it)
		case score >= s.cfg.LowThreshold:
			s.low = append(s.low, it)
		default:
			s.background.Enqueue(e, score)
		}
	}

	sortByDistance(s.high)
	sortByDistance(s.medium)
	sortByDistance(s.low)
}

func sortByDistance(items []item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].distance < items[j].distance
	})
}

// Budget returns the per-frame entity budget under the current quality
// scale, never below 1.
func (s *Scheduler) Budget() int {
	b := int(float64(s.cfg.BaseBudget) * s.budgetScale)
	if b < 1 {
		b = 1
	}
	return b
}

// SetBudgetScale scales the per-frame budget proportionally to the global
// quality level.
func (s *Scheduler) SetBudgetScale(f float64) {
	if f <= 0 {
		f = 1
	}
	s.budgetScale = f
}

// Drain returns the entities to service this frame. The entire high bucket
// is always included regardless of budget; leftover budget is split between
// medium and low by MediumShare. Background entities are never drawn by the
// budgeted path.
func (s *Scheduler) Drain(budget int) []*entity.Entity {
	out := make([]*entity.Entity, 0, budget)
	for _, it := range s.high {
		out = append(out, it.entity)
	}

	leftover := budget - len(s.high)
	if leftover <= 0 {
		return out
	}

	mediumTake := int(float64(leftover) * s.cfg.MediumShare)
	if mediumTake > len(s.medium) {
		mediumTake = len(s.medium)
	}
	lowTake := leftover - mediumTake
	if lowTake > len(s.low) {
		lowTake = len(s.low)
		// hand unused low budget back to medium
		if extra := leftover - mediumTake - lowTake; extra > 0 {
			mediumTake += extra
			if mediumTake > len(s.medium) {
				mediumTake = len(s.medium)
			}
		}
	}

	for _, it := range s.medium[:mediumTake] {
		out = append(out, it.entity)
	}
	for _, it := range s.low[:lowTake] {
		out = append(out, it.entity)
	}
	return out
}

// DrainBackground pops up to n background entities, best score first. Meant
// to be called between budgeted frames.
func (s *Scheduler) DrainBackground(n int) []*entity.Entity {
	if n <= 0 || s.background.IsEmpty() {
		return nil
	}
	out := make([]*entity.Entity, 0, n)
	for len(out) < n {
		e, ok := s.background.Dequeue()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

// BucketSizes returns the current high/medium/low/background counts.
func (s *Scheduler) BucketSizes() (high, medium, low, background int) {
	return len(s.high), len(s.medium), len(s.low), s.background.Len()
}
