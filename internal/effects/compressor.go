package effects

import "math"

// Limiter is a stereo-linked peak compressor that keeps the master bus out of
// hard clipping. Both channels share one envelope so the image does not
// shift under gain reduction.
type Limiter struct {
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	env       float32
}

// NewLimiter creates a limiter.
// thresholdDB: level where reduction starts, e.g. -1
// ratio: reduction above threshold, e.g. 20 for 20:1
// attackMs, releaseMs: envelope follower times
func NewLimiter(sampleRate int, thresholdDB, ratio, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	if ratio < 1 {
		ratio = 1
	}
	return &Limiter{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		ratio:     ratio,
		attack:    coefficient(attackMs, sr),
		release:   coefficient(releaseMs, sr),
	}
}

// DefaultLimiter is a -1 dB brickwall-style setting.
func DefaultLimiter(sampleRate int) *Limiter {
	return NewLimiter(sampleRate, -1, 20, 0.5, 80)
}

func coefficient(ms float32, sr float64) float32 {
	if ms <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-1/(float64(ms)*sr/1000)))
}

func (c *Limiter) Process(l, r float32) (float32, float32) {
	peak := max(abs32(l), abs32(r))
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	g := c.gain(c.env)
	return l * g, r * g
}

// GainReduction returns the current gain factor, 1 meaning no reduction.
func (c *Limiter) GainReduction() float32 {
	return c.gain(c.env)
}

func (c *Limiter) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1/c.ratio-1)))
}

func (c *Limiter) Reset() {
	c.env = 0
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
