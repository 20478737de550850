package audio

import (
	"math"
	"testing"
)

// constVoice emits level on [start, end).
type constVoice struct {
	start, end int64
	level      float32
	calls      int
}

func (v *constVoice) Span() (int64, int64) { return v.start, v.end }

func (v *constVoice) Render(dst []float32, frame int64) {
	v.calls++
	for i := range dst {
		f := frame + int64(i)
		if f >= v.start && f < v.end {
			dst[i] = v.level
		} else {
			dst[i] = 0
		}
	}
}

type halveLeft struct{}

func (halveLeft) Process(l, r float32) (float32, float32) { return l * 0.5, r }

func TestBusClockAdvancesWithRendering(t *testing.T) {
	b := NewBus(1000)
	if b.Now() != 0 {
		t.Fatalf("expected clock at zero")
	}
	b.Process(make([]float32, 500*2))
	if b.Frame() != 500 {
		t.Fatalf("frame = %d, want 500", b.Frame())
	}
	if got := b.Now(); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("Now = %v, want 0.5", got)
	}
}

func TestBusGrowsMixBuffers(t *testing.T) {
	b := NewBus(1000)
	b.Schedule(&constVoice{start: 0, end: 100, level: 0.5})
	g := float32(DefaultMasterGain)
	for _, frames := range []int{16, 512, 8, 1024} {
		out := make([]float32, frames*2)
		from := b.Frame()
		b.Process(out)
		for i := 0; i < frames; i++ {
			want := float32(0)
			if from+int64(i) < 100 {
				want = 0.5 * g
			}
			if out[i*2] != want || out[i*2+1] != want {
				t.Fatalf("block of %d: frame %d = %v, want %v", frames, i, out[i*2], want)
			}
		}
	}
}

func TestBusMixesAndAppliesGain(t *testing.T) {
	b := NewBus(1000)
	b.Schedule(&constVoice{start: 0, end: 10, level: 0.5})
	b.Schedule(&constVoice{start: 5, end: 10, level: 0.25})

	out := make([]float32, 10*2)
	b.Process(out)

	g := float32(DefaultMasterGain)
	if out[0] != 0.5*g || out[1] != 0.5*g {
		t.Fatalf("frame 0 = %v,%v", out[0], out[1])
	}
	if want := 0.75 * g; math.Abs(float64(out[12]-want)) > 1e-6 {
		t.Fatalf("frame 6 = %v, want %v", out[12], want)
	}
}

func TestBusDropsFinishedVoices(t *testing.T) {
	b := NewBus(1000)
	v := &constVoice{start: 0, end: 8, level: 0.1}
	later := &constVoice{start: 100, end: 120, level: 0.1}
	b.Schedule(v)
	b.Schedule(later)

	b.Process(make([]float32, 8*2))
	if got := b.ActiveVoices(); got != 1 {
		t.Fatalf("active voices = %d, want 1", got)
	}
	b.Process(make([]float32, 8*2))
	if v.calls != 1 {
		t.Fatalf("finished voice rendered %d times", v.calls)
	}
	if later.calls != 0 {
		t.Fatalf("future voice rendered early")
	}
}

func TestBusClampsAndRunsEffects(t *testing.T) {
	b := NewBus(1000)
	b.SetGain(1)
	b.SetEffects(halveLeft{})
	b.Schedule(&constVoice{start: 0, end: 4, level: 3})

	var tapped int
	b.SetTap(func(block []float32) { tapped += len(block) })

	out := make([]float32, 4*2)
	b.Process(out)
	if out[0] != 1 || out[1] != 1 {
		t.Fatalf("expected clamped output, got %v,%v", out[0], out[1])
	}
	if tapped != len(out) {
		t.Fatalf("tap saw %d samples, want %d", tapped, len(out))
	}
}

func TestStreamReaderEncodesFloat32(t *testing.T) {
	b := NewBus(1000)
	b.SetGain(1)
	b.Schedule(&constVoice{start: 0, end: 4, level: 0.5})
	r := NewStreamReader(b)

	p := make([]byte, 4*8+3)
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 32 {
		t.Fatalf("read %d bytes, want 32", n)
	}
	bits := uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
	if got := math.Float32frombits(bits); got != 0.5 {
		t.Fatalf("first sample = %v, want 0.5", got)
	}
}

func BenchmarkBusProcess(b *testing.B) {
	bus := NewBus(48000)
	for i := 0; i < 32; i++ {
		bus.Schedule(&constVoice{start: 0, end: math.MaxInt64, level: 0.01})
	}
	buf := make([]float32, 512*2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Process(buf)
	}
}
