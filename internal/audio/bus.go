package audio

import (
	"sync"

	"github.com/viterin/vek/vek32"
)

// DefaultMasterGain is the output bus level.
const DefaultMasterGain = 0.6

// Voice is one detached sound. The bus owns it from Schedule until its span
// has been rendered, then drops it.
type Voice interface {
	// Span returns the first frame the voice sounds and the frame after its
	// last one.
	Span() (start, end int64)
	// Render writes the voice's mono output for frames
	// [frame, frame+len(dst)) into dst, with zeros outside its span.
	// Calls arrive with increasing, contiguous frame ranges.
	Render(dst []float32, frame int64)
}

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float32) (float32, float32)
}

// Bus mixes scheduled voices into interleaved stereo and doubles as the
// audio clock: Now advances only as frames are rendered.
type Bus struct {
	mu         sync.Mutex
	sampleRate int
	frame      int64
	voices     []Voice
	gain       float32
	effects    Effector
	tap        func([]float32)
	mix        []float32
	tmp        []float32
}

func NewBus(sampleRate int) *Bus {
	return &Bus{sampleRate: sampleRate, gain: DefaultMasterGain}
}

func (b *Bus) SampleRate() int { return b.sampleRate }

// SetGain sets the master level applied after mixing.
func (b *Bus) SetGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	b.mu.Lock()
	b.gain = float32(gain)
	b.mu.Unlock()
}

// SetEffects installs a master effect, or removes it when e is nil.
func (b *Bus) SetEffects(e Effector) {
	b.mu.Lock()
	b.effects = e
	b.mu.Unlock()
}

// SetTap installs a callback that sees every rendered stereo block. It runs
// on the audio thread with the bus locked.
func (b *Bus) SetTap(tap func([]float32)) {
	b.mu.Lock()
	b.tap = tap
	b.mu.Unlock()
}

// Do runs fn with the bus locked, so state shared with the audio thread
// (such as the effect chain) can be changed safely.
func (b *Bus) Do(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}

// Schedule hands v to the bus. The caller keeps no claim on it.
func (b *Bus) Schedule(v Voice) {
	b.mu.Lock()
	b.voices = append(b.voices, v)
	b.mu.Unlock()
}

// Now returns the audio clock in seconds.
func (b *Bus) Now() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.frame) / float64(b.sampleRate)
}

// Frame returns the number of frames rendered so far.
func (b *Bus) Frame() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

// ActiveVoices counts voices that have not finished yet.
func (b *Bus) ActiveVoices() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.voices)
}

// Process renders len(dst)/2 stereo frames.
func (b *Bus) Process(dst []float32) {
	n := len(dst) / 2
	if n == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if cap(b.mix) < n {
		b.mix = make([]float32, n)
	}
	b.mix = vek32.Zeros_Into(b.mix, n)
	if cap(b.tmp) < n {
		b.tmp = make([]float32, n)
	}
	b.tmp = b.tmp[:n]

	from, to := b.frame, b.frame+int64(n)
	live := b.voices[:0]
	for _, v := range b.voices {
		start, end := v.Span()
		if start < to && end > from {
			v.Render(b.tmp, from)
			vek32.Add_Inplace(b.mix, b.tmp)
		}
		if end > to {
			live = append(live, v)
		}
	}
	clear(b.voices[len(live):])
	b.voices = live

	vek32.MulNumber_Inplace(b.mix, b.gain)
	for i, s := range b.mix {
		l, r := s, s
		if b.effects != nil {
			l, r = b.effects.Process(l, r)
		}
		dst[i*2] = clamp(l)
		dst[i*2+1] = clamp(r)
	}
	b.frame = to
	if b.tap != nil {
		b.tap(dst)
	}
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
