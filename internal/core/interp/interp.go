package interp

import (
	"fmt"
	"sort"
	"time"

	"github.com/globekit/globekit/internal/core/geo"
	"github.com/globekit/globekit/internal/core/observability/log"
)

// Method selects how a position between two samples is computed.
type Method string

const (
	// MethodLinear blends the bracketing samples component-wise.
	MethodLinear Method = "linear"
	// MethodStep snaps to the nearer sample with no blending.
	MethodStep Method = "step"
	// MethodSpline is reserved. It currently evaluates as MethodLinear.
	MethodSpline Method = "spline"
)

// Extrapolation selects the behavior for query times outside the sampled span.
type Extrapolation string

const (
	// ExtrapolateClamp holds the nearest endpoint sample.
	ExtrapolateClamp Extrapolation = "clamp"
	// ExtrapolateNone reports the position as not available.
	ExtrapolateNone Extrapolation = "none"
)

// Sample is one time-stamped position with optional per-sample attributes
// (heading, speed and the like). Numeric attributes are interpolated, any
// other kind picks the nearer sample.
type Sample struct {
	Time       time.Time
	Position   geo.Vec3
	Attributes map[string]any
}

// Config tunes an Interpolator.
type Config struct {
	Method        Method        `json:"method" yaml:"method"`
	Extrapolation Extrapolation `json:"extrapolation" yaml:"extrapolation"`
	// CacheSize bounds the result cache. Zero disables caching.
	CacheSize int `json:"cache_size" yaml:"cache_size"`
	// CacheQuantum is the time bucket for cache keys. Queries within the
	// same bucket for the same entity share one cached result.
	CacheQuantum time.Duration `json:"cache_quantum" yaml:"cache_quantum"`
}

// DefaultConfig returns the interpolator defaults: linear blending, clamped
// extrapolation and a small quantized result cache.
func DefaultConfig() Config {
	return Config{
		Method:        MethodLinear,
		Extrapolation: ExtrapolateClamp,
		CacheSize:     4096,
		CacheQuantum:  100 * time.Millisecond,
	}
}

// Validate checks the config against the known methods and policies.
func (c Config) Validate() error {
	switch c.Method {
	case MethodLinear, MethodStep, MethodSpline, "":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, c.Method)
	}
	switch c.Extrapolation {
	case ExtrapolateClamp, ExtrapolateNone, "":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, c.Extrapolation)
	}
	return nil
}

type series struct {
	samples []Sample
}

// Interpolator stores per-entity time-ordered sample series and answers
// position queries at arbitrary times. Reads are pure aside from the result
// cache. Not safe for concurrent use.
type Interpolator struct {
	cfg    Config
	series map[string]*series
	cache  *resultCache
	log    log.Log
}

func New(cfg Config, lg log.Log) (*Interpolator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Method == "" {
		cfg.Method = MethodLinear
	}
	if cfg.Extrapolation == "" {
		cfg.Extrapolation = ExtrapolateClamp
	}
	if lg == nil {
		lg = log.NewNop()
	}
	return &Interpolator{
		cfg:    cfg,
		series: make(map[string]*series),
		cache:  newResultCache(cfg.CacheSize, cfg.CacheQuantum),
		log:    lg,
	}, nil
}

// AddSample appends one sample to the entity's series. Timestamps must be
// strictly increasing; an out-of-order or duplicate timestamp is rejected
// with ErrInvalidSampleOrder and the series is left untouched.
func (in *Interpolator) AddSample(entityID string, t time.Time, pos geo.Vec3, attrs map[string]any) error {
	s := in.series[entityID]
	if s == nil {
		s = &series{}
		in.series[entityID] = s
	}
	if n := len(s.samples); n > 0 && !t.After(s.samples[n-1].Time) {
		return fmt.Errorf("%w: entity %s, %s <= %s",
			ErrInvalidSampleOrder, entityID, t.Format(time.RFC3339Nano), s.samples[n-1].Time.Format(time.RFC3339Nano))
	}
	s.samples = append(s.samples, Sample{Time: t, Position: pos, Attributes: attrs})
	in.cache.invalidate(entityID)
	return nil
}

// PositionAt resolves the entity's position at time t. The second return is
// false when the entity has no samples, or when t lies outside the sampled
// span under the none extrapolation policy.
func (in *Interpolator) PositionAt(entityID string, t time.Time) (Sample, bool) {
	s := in.series[entityID]
	if s == nil || len(s.samples) == 0 {
		return Sample{}, false
	}

	if out, ok := in.cache.get(entityID, t); ok {
		return out, true
	}

	out, ok := in.resolve(s, t)
	if ok {
		in.cache.put(entityID, t, out)
	}
	return out, ok
}

func (in *Interpolator) resolve(s *series, t time.Time) (Sample, bool) {
	samples := s.samples
	first, last := samples[0], samples[len(samples)-1]

	if t.Before(first.Time) {
		if in.cfg.Extrapolation == ExtrapolateNone {
			return Sample{}, false
		}
		return first, true
	}
	if t.After(last.Time) {
		if in.cfg.Extrapolation == ExtrapolateNone {
			return Sample{}, false
		}
		return last, true
	}

	// index of the first sample at or after t
	idx := sort.Search(len(samples), func(i int) bool {
		return !samples[i].Time.Before(t)
	})
	if samples[idx].Time.Equal(t) {
		return samples[idx], true
	}

	before, after := samples[idx-1], samples[idx]
	span := after.Time.Sub(before.Time)
	f := geo.Clamp01(float64(t.Sub(before.Time)) / float64(span))

	method := in.cfg.Method
	if method == MethodSpline {
		method = MethodLinear
	}
	if method == MethodStep {
		if f < 0.5 {
			return before, true
		}
		return after, true
	}
	return lerpSamples(before, after, t, f), true
}

func lerpSamples(before, after Sample, t time.Time, f float64) Sample {
	out := Sample{
		Time:     t,
		Position: geo.Lerp(before.Position, after.Position, f),
	}
	if before.Attributes == nil && after.Attributes == nil {
		return out
	}
	out.Attributes = make(map[string]any, len(before.Attributes))
	nearer := before.Attributes
	if f >= 0.5 {
		nearer = after.Attributes
	}
	for key, bv := range before.Attributes {
		av, ok := after.Attributes[key]
		if !ok {
			out.Attributes[key] = bv
			continue
		}
		bn, bOK := toFloat(bv)
		an, aOK := toFloat(av)
		if bOK && aOK {
			out.Attributes[key] = bn + (an-bn)*f
			continue
		}
		if nv, ok := nearer[key]; ok {
			out.Attributes[key] = nv
		} else {
			out.Attributes[key] = bv
		}
	}
	// attributes present only on the later sample
	for key, av := range after.Attributes {
		if _, ok := before.Attributes[key]; !ok {
			out.Attributes[key] = av
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// RemoveSeries drops all samples for the entity and invalidates its cached
// results.
func (in *Interpolator) RemoveSeries(entityID string) {
	delete(in.series, entityID)
	in.cache.invalidate(entityID)
}

// SampleCount returns the number of stored samples for the entity.
func (in *Interpolator) SampleCount(entityID string) int {
	if s := in.series[entityID]; s != nil {
		return len(s.samples)
	}
	return 0
}

// TimeSpan returns the first and last sample times for the entity.
func (in *Interpolator) TimeSpan(entityID string) (first, last time.Time, ok bool) {
	s := in.series[entityID]
	if s == nil || len(s.samples) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.samples[0].Time, s.samples[len(s.samples)-1].Time, true
}

// SeriesCount returns the number of entities with stored samples.
func (in *Interpolator) SeriesCount() int { return len(in.series) }
