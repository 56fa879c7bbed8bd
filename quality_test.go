package fluid

import (
	"math"
	"testing"
	"time"
)

func TestQualityController_Defaults(t *testing.T) {
	c := NewQualityController(QualityConfig{})
	if c.Quality() != 1 {
		t.Errorf("initial quality = %v, want 1", c.Quality())
	}
	if c.cfg != DefaultQualityConfig() {
		t.Errorf("zero config resolved to %+v", c.cfg)
	}
}

func TestQualityController_Hysteresis(t *testing.T) {
	tests := []struct {
		name    string
		frame   time.Duration
		frames  int
		want    float64
		changed bool
	}{
		{"slow frames lower quality", 30 * time.Millisecond, 1, 0.98, true},
		{"fast frames hold at ceiling", 5 * time.Millisecond, 1, 1, false},
		{"in band holds", 16 * time.Millisecond, 1, 1, false},
		{"sustained slow frames hit floor", 40 * time.Millisecond, 100, 0.45, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewQualityController(DefaultQualityConfig())
			var q float64
			var changed bool
			for range tt.frames {
				q, changed = c.Observe(tt.frame)
			}
			if math.Abs(q-tt.want) > 1e-9 {
				t.Errorf("quality = %v, want %v", q, tt.want)
			}
			if changed != tt.changed {
				t.Errorf("changed = %v, want %v", changed, tt.changed)
			}
		})
	}
}

func TestQualityController_Recovers(t *testing.T) {
	c := NewQualityController(DefaultQualityConfig())
	for range 10 {
		c.Observe(30 * time.Millisecond)
	}
	low := c.Quality()
	if low >= 1 {
		t.Fatalf("quality did not drop: %v", low)
	}
	for range 200 {
		c.Observe(8 * time.Millisecond)
	}
	if c.Quality() != 1 {
		t.Errorf("quality after fast frames = %v, want 1", c.Quality())
	}
}

func TestQualityController_Smoothing(t *testing.T) {
	c := NewQualityController(QualityConfig{Smoothing: 0.5})
	c.Observe(10 * time.Millisecond)
	c.Observe(30 * time.Millisecond)
	if got := c.Average(); (got - 20*time.Millisecond).Abs() > time.Microsecond {
		t.Errorf("Average() = %v, want 20ms", got)
	}
}

func TestQualityConfig_Sanitized(t *testing.T) {
	cfg := QualityConfig{
		High:    10 * time.Millisecond,
		Low:     50 * time.Millisecond,
		Floor:   0.1,
		Ceiling: 3,
	}.withDefaults()
	if cfg.Low != cfg.High {
		t.Errorf("Low = %v, want clamp to High %v", cfg.Low, cfg.High)
	}
	if cfg.Floor != MinQuality {
		t.Errorf("Floor = %v, want %v", cfg.Floor, MinQuality)
	}
	if cfg.Ceiling != MaxQuality {
		t.Errorf("Ceiling = %v, want %v", cfg.Ceiling, MaxQuality)
	}
}

func TestQualityController_Reset(t *testing.T) {
	c := NewQualityController(DefaultQualityConfig())
	c.Observe(40 * time.Millisecond)

	tests := []struct {
		start, want float64
	}{
		{0.6, 0.6},
		{0.1, 0.45},
		{3, 1},
	}
	for _, tt := range tests {
		c.Reset(tt.start)
		if q := c.Quality(); q != tt.want {
			t.Errorf("Reset(%v): quality = %v, want %v", tt.start, q, tt.want)
		}
		if c.Average() != 0 {
			t.Errorf("Reset(%v) kept average %v", tt.start, c.Average())
		}
	}

	// The first sample after a reset primes the average without smoothing.
	c.Reset(0.6)
	c.Observe(16 * time.Millisecond)
	if got := c.Average(); got < 16*time.Millisecond-time.Microsecond || got > 16*time.Millisecond+time.Microsecond {
		t.Errorf("average after reset = %v, want 16ms", got)
	}
}
