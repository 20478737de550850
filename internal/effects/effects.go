package effects

// Effector processes one stereo frame on the master bus.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain applies a sequence of effects in order. It is not safe for concurrent
// use; the bus calls it with its own lock held.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// TempoSynced is implemented by effects whose timing follows the transport.
type TempoSynced interface {
	SetTempo(bpm float64)
}

// SetTempo forwards bpm to every tempo-synced effect in the chain.
func (c *Chain) SetTempo(bpm float64) {
	for _, e := range c.effects {
		if ts, ok := e.(TempoSynced); ok {
			ts.SetTempo(bpm)
		}
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
