package stepseq

import (
	"io"
	"math"
	"time"

	intaudio "github.com/cbegin/stepseq-go/internal/audio"
	"github.com/cbegin/stepseq-go/internal/pattern"
	intseq "github.com/cbegin/stepseq-go/internal/sequencer"
	"github.com/pkg/errors"
	wav "github.com/youpy/go-wav"
)

// RenderOptions bounds an offline render.
type RenderOptions struct {
	// Loops is the number of passes over the live pattern when the
	// arrangement is empty. Defaults to 1. Ignored with an arrangement, which
	// always plays through once.
	Loops int
	// MaxSeconds caps the render length. Defaults to 300.
	MaxSeconds float64
	// TailSeconds is rendered after the last step so notes can ring out.
	// Defaults to the current release time plus half a second.
	TailSeconds float64
}

const renderBlock = 512

// virtualTimer fires callbacks at frame positions on a rendering bus instead
// of wall-clock time.
type virtualTimer struct {
	bus   *intaudio.Bus
	due   int64
	fn    func()
	armed int
}

func (v *virtualTimer) AfterFunc(d time.Duration, f func()) func() {
	v.due = v.bus.Frame() + int64(math.Round(d.Seconds()*float64(v.bus.SampleRate())))
	v.fn = f
	v.armed++
	id := v.armed
	return func() {
		if v.armed == id {
			v.fn = nil
		}
	}
}

// Render plays the live pattern, or the arrangement if it has scenes, into an
// interleaved stereo buffer. It uses its own bus, synth and copy of the
// pattern, so it neither disturbs nor is heard through realtime playback.
// Tempo, swing and synth settings are read once at the start.
func (p *Player) Render(opts RenderOptions) ([]float32, error) {
	if opts.Loops <= 0 {
		opts.Loops = 1
	}
	if opts.MaxSeconds <= 0 {
		opts.MaxSeconds = 300
	}
	settings := p.engine.Settings()
	if opts.TailSeconds <= 0 {
		opts.TailSeconds = settings.Envelope.Release + 0.5
	}

	bus, _ := p.newBus()
	engine := p.newEngine(bus, settings)
	store := pattern.NewStore()
	store.Load(p.store.Snapshot())
	timer := &virtualTimer{bus: bus}
	tr := &transport{tempo: p.tr.Tempo(), swing: p.tr.Swing()}
	arranged := p.arr.Len() > 0

	var seq *intseq.Sequencer
	steps := 0
	seq = intseq.New(store, intseq.Options{
		Clock:     bus,
		Voices:    engine,
		Transport: tr,
		Scenes:    p.arr,
		Timer:     timer,
		Lookahead: p.cfg.lookahead.Seconds(),
		Logger:    p.log,
		OnEvent: func(ev intseq.Event) {
			if ev.Kind != intseq.EventStep || arranged {
				return
			}
			steps++
			if steps >= opts.Loops*pattern.Steps {
				seq.Stop()
			}
		},
	})
	if err := seq.Start(); err != nil {
		return nil, errors.Wrap(err, "start offline render")
	}

	sr := float64(p.sampleRate)
	maxFrames := int64(opts.MaxSeconds * sr)
	tailFrames := int64(opts.TailSeconds * sr)
	stopAt := int64(-1)
	out := make([]float32, 0, renderBlock*2)
	block := make([]float32, renderBlock*2)

	for frame := bus.Frame(); frame < maxFrames; frame = bus.Frame() {
		if timer.fn != nil && timer.due <= frame {
			f := timer.fn
			timer.fn = nil
			f()
			continue
		}
		if !seq.Playing() {
			if stopAt < 0 {
				stopAt = frame + tailFrames
			}
			if frame >= stopAt || bus.ActiveVoices() == 0 {
				break
			}
		}
		n := int64(renderBlock)
		if timer.fn != nil {
			n = min(n, timer.due-frame)
		}
		if stopAt >= 0 {
			n = min(n, stopAt-frame)
		}
		n = min(n, maxFrames-frame)
		buf := block[:n*2]
		bus.Process(buf)
		out = append(out, buf...)
	}
	seq.Stop()
	p.log.Debug("offline render finished", "seconds", float64(len(out)/2)/sr)
	return out, nil
}

// EncodeWAV writes interleaved stereo samples as 16-bit PCM.
func EncodeWAV(w io.Writer, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return errors.WithStack(ErrInvalidSampleRate)
	}
	frames := len(samples) / 2
	ww := wav.NewWriter(w, uint32(frames), 2, uint32(sampleRate), 16)
	buf := make([]wav.Sample, 0, 1024)
	for i := 0; i < frames; i++ {
		buf = append(buf, wav.Sample{Values: [2]int{toPCM16(samples[i*2]), toPCM16(samples[i*2+1])}})
		if len(buf) == cap(buf) || i == frames-1 {
			if err := ww.WriteSamples(buf); err != nil {
				return errors.Wrap(err, "write wav samples")
			}
			buf = buf[:0]
		}
	}
	return nil
}

func toPCM16(s float32) int {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int(math.Round(float64(s) * 32767))
}
