package fluid

import "time"

// QualityConfig tunes the adaptive quality loop. The zero value of a field
// selects its default.
type QualityConfig struct {
	// High is the smoothed frame time above which quality drops (19ms).
	High time.Duration
	// Low is the smoothed frame time below which quality rises (14ms).
	Low time.Duration
	// Step is the quality change per adjustment (0.02).
	Step float64
	// Floor and Ceiling bound the controller's output (0.45 and 1.0).
	Floor   float64
	Ceiling float64
	// Smoothing is the weight of the newest sample in the moving average (0.1).
	Smoothing float64
}

// DefaultQualityConfig returns the default hysteresis band.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		High:      19 * time.Millisecond,
		Low:       14 * time.Millisecond,
		Step:      0.02,
		Floor:     0.45,
		Ceiling:   1.0,
		Smoothing: 0.1,
	}
}

func (c QualityConfig) withDefaults() QualityConfig {
	d := DefaultQualityConfig()
	if c.High <= 0 {
		c.High = d.High
	}
	if c.Low <= 0 {
		c.Low = d.Low
	}
	if c.Low > c.High {
		c.Low = c.High
	}
	if !(c.Step > 0) {
		c.Step = d.Step
	}
	if !(c.Floor > 0) {
		c.Floor = d.Floor
	}
	if !(c.Ceiling > 0) {
		c.Ceiling = d.Ceiling
	}
	c.Floor = clamp(c.Floor, MinQuality, MaxQuality)
	c.Ceiling = clamp(c.Ceiling, c.Floor, MaxQuality)
	if !(c.Smoothing > 0) || c.Smoothing > 1 {
		c.Smoothing = d.Smoothing
	}
	return c
}

// QualityController turns observed frame times into a quality scale for
// Solver.SetQuality. It keeps an exponential moving average of frame time
// and moves quality by one step when the average leaves the [Low, High]
// band. It never touches a solver itself.
type QualityController struct {
	cfg     QualityConfig
	avg     float64 // seconds
	primed  bool
	quality float64
}

// NewQualityController starts at the ceiling.
func NewQualityController(cfg QualityConfig) *QualityController {
	cfg = cfg.withDefaults()
	return &QualityController{cfg: cfg, quality: cfg.Ceiling}
}

// Quality returns the current output.
func (c *QualityController) Quality() float64 { return c.quality }

// Reset restarts the controller at q, clamped to [Floor, Ceiling], and
// forgets the frame time average.
func (c *QualityController) Reset(q float64) {
	c.quality = clamp(q, c.cfg.Floor, c.cfg.Ceiling)
	c.avg, c.primed = 0, false
}

// Average returns the smoothed frame time.
func (c *QualityController) Average() time.Duration {
	return time.Duration(c.avg * float64(time.Second))
}

// Observe feeds one frame duration and returns the resulting quality and
// whether it changed.
func (c *QualityController) Observe(frame time.Duration) (float64, bool) {
	sample := frame.Seconds()
	if !c.primed {
		c.avg = sample
		c.primed = true
	} else {
		c.avg += (sample - c.avg) * c.cfg.Smoothing
	}

	prev := c.quality
	switch {
	case c.avg > c.cfg.High.Seconds():
		c.quality = max(c.quality-c.cfg.Step, c.cfg.Floor)
	case c.avg < c.cfg.Low.Seconds():
		c.quality = min(c.quality+c.cfg.Step, c.cfg.Ceiling)
	}
	return c.quality, c.quality != prev
}
