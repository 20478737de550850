package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/pkg/errors"
)

// SampleSource fills interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the float32 little-endian byte
// stream ebiten expects.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

var (
	contextMu         sync.Mutex
	sharedContext     *ebitaudio.Context
	sharedContextRate int
)

// sharedAudioContext creates the process-wide audio context on first use.
// ebiten allows one context per process, so later callers must agree on the
// sample rate.
func sharedAudioContext(sampleRate int) (ctx *ebitaudio.Context, err error) {
	contextMu.Lock()
	defer contextMu.Unlock()
	if sharedContext != nil {
		if sharedContextRate != sampleRate {
			return nil, errors.Errorf("audio context already initialized at %d Hz (requested %d Hz)", sharedContextRate, sampleRate)
		}
		return sharedContext, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("audio device unavailable: %v", r)
		}
	}()
	sharedContext = ebitaudio.NewContext(sampleRate)
	sharedContextRate = sampleRate
	return sharedContext, nil
}

// Player streams a SampleSource to the default output device.
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, errors.Wrap(err, "create audio player")
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()  { p.player.Play() }
func (p *Player) Pause() { p.player.Pause() }
func (p *Player) IsPlaying() bool {
	return p.player.IsPlaying()
}

// Position returns what the listener hears right now.
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Close() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return errors.Wrap(err, "close audio player")
	}
	return p.reader.Close()
}
