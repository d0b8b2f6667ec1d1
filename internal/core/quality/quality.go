package quality

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/globekit/globekit/internal/core/observability/log"
	"github.com/globekit/globekit/internal/core/scene"
)

// ErrInvalidQualityConfig flags a controller configuration rejected at
// construction time.
var ErrInvalidQualityConfig = errors.New("invalid quality configuration")

// Config tunes a Controller.
type Config struct {
	// TargetFPS is the frame rate the controller steers toward.
	TargetFPS float64 `json:"target_fps" yaml:"target_fps"`
	// Levels is the ascending list of quality scalars the controller steps
	// through, e.g. [0.25 0.5 0.75 1.0]. The controller starts at the top.
	Levels []float64 `json:"levels" yaml:"levels"`
	// MinRetuneInterval is the hysteresis window between quality changes.
	MinRetuneInterval time.Duration `json:"min_retune_interval" yaml:"min_retune_interval"`
	// Window is the rolling span over which FPS is measured.
	Window time.Duration `json:"window" yaml:"window"`
	// HistorySize bounds the retained change history.
	HistorySize int `json:"history_size" yaml:"history_size"`
	// EffectBreakpoints enables a scene effect while quality is at or above
	// the given scalar.
	EffectBreakpoints map[scene.Effect]float64 `json:"effect_breakpoints,omitempty" yaml:"effect_breakpoints,omitempty"`
}

// DefaultConfig targets 30 FPS with four quality notches and shadows and
// anti-aliasing shedding below full quality.
func DefaultConfig() Config {
	return Config{
		TargetFPS:         30,
		Levels:            []float64{0.25, 0.5, 0.75, 1.0},
		MinRetuneInterval: 2 * time.Second,
		Window:            time.Second,
		HistorySize:       100,
		EffectBreakpoints: map[scene.Effect]float64{
			scene.EffectShadows:      1.0,
			scene.EffectAntiAliasing: 0.75,
		},
	}
}

// Validate checks the level list and target.
func (c Config) Validate() error {
	if c.TargetFPS <= 0 {
		return fmt.Errorf("%w: target FPS must be positive", ErrInvalidQualityConfig)
	}
	if len(c.Levels) == 0 {
		return fmt.Errorf("%w: no quality levels", ErrInvalidQualityConfig)
	}
	if !sort.Float64sAreSorted(c.Levels) {
		return fmt.Errorf("%w: levels must be ascending", ErrInvalidQualityConfig)
	}
	for i, l := range c.Levels {
		if l <= 0 || l > 1 {
			return fmt.Errorf("%w: level %d out of (0,1]", ErrInvalidQualityConfig, i)
		}
	}
	return nil
}

// Change records one retune decision for diagnostics.
type Change struct {
	Time time.Time
	From float64
	To   float64
	FPS  float64
}

// Controller samples frame times and steps a global quality scalar up or
// down to hold the target frame rate. Changes are never reverted except by
// the next retune decision.
type Controller struct {
	cfg Config
	log log.Log

	frames []time.Time

	levelIdx   int
	lastRetune time.Time
	retuned    bool

	history []Change
	histPos int
}

func New(cfg Config, lg log.Log) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinRetuneInterval <= 0 {
		cfg.MinRetuneInterval = DefaultConfig().MinRetuneInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	if lg == nil {
		lg = log.NewNop()
	}
	return &Controller{
		cfg:      cfg,
		log:      lg,
		levelIdx: len(cfg.Levels) - 1,
		history:  make([]Change, 0, cfg.HistorySize),
	}, nil
}

// RecordFrame notes that a frame completed at now.
func (c *Controller) RecordFrame(now time.Time) {
	c.frames = append(c.frames, now)
	c.trim(now)
}

func (c *Controller) trim(now time.Time) {
	cutoff := now.Add(-c.cfg.Window)
	i := 0
	for i < len(c.frames) && c.frames[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		c.frames = append(c.frames[:0], c.frames[i:]...)
	}
}

// FPS estimates frames per wall-clock second over the rolling window.
func (c *Controller) FPS(now time.Time) float64 {
	c.trim(now)
	return float64(len(c.frames)) / c.cfg.Window.Seconds()
}

// Quality returns the current quality scalar.
func (c *Controller) Quality() float64 { return c.cfg.Levels[c.levelIdx] }

// Retune compares measured FPS against the target and steps the quality one
// notch down below 80% of target or one notch up above 110%. The minimum
// retune interval suppresses oscillation. The second return reports whether
// the quality changed.
func (c *Controller) Retune(now time.Time) (float64, bool) {
	if c.retuned && now.Sub(c.lastRetune) < c.cfg.MinRetuneInterval {
		return c.Quality(), false
	}

	fps := c.FPS(now)
	from := c.Quality()
	switch {
	case fps < c.cfg.TargetFPS*0.8 && c.levelIdx > 0:
		c.levelIdx--
	case fps > c.cfg.TargetFPS*1.1 && c.levelIdx < len(c.cfg.Levels)-1:
		c.levelIdx++
	default:
		return from, false
	}

	c.lastRetune = now
	c.retuned = true
	to := c.Quality()
	c.record(Change{Time: now, From: from, To: to, FPS: fps})
	c.log.Info("quality retuned",
		log.Float64("from", from),
		log.Float64("to", to),
		log.Float64("fps", fps))
	return to, true
}

func (c *Controller) record(ch Change) {
	if len(c.history) < c.cfg.HistorySize {
		c.history = append(c.history, ch)
		return
	}
	// ring overwrite of the oldest entry
	c.history[c.histPos] = ch
	c.histPos = (c.histPos + 1) % c.cfg.HistorySize
}

// History returns the recorded changes, oldest first, bounded by
// HistorySize.
func (c *Controller) History() []Change {
	if len(c.history) < c.cfg.HistorySize {
		return append([]Change(nil), c.history...)
	}
	out := make([]Change, 0, len(c.history))
	out = append(out, c.history[c.histPos:]...)
	out = append(out, c.history[:c.histPos]...)
	return out
}

// EffectStates maps each configured scene effect to whether it should be
// enabled at the current quality.
func (c *Controller) EffectStates() map[scene.Effect]bool {
	states := make(map[scene.Effect]bool, len(c.cfg.EffectBreakpoints))
	q := c.Quality()
	for effect, breakpoint := range c.cfg.EffectBreakpoints {
		states[effect] = q >= breakpoint
	}
	return states
}
