package stepseq

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	intaudio "github.com/cbegin/stepseq-go/internal/audio"
	"github.com/cbegin/stepseq-go/internal/arrangement"
	intfx "github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/pattern"
	intseq "github.com/cbegin/stepseq-go/internal/sequencer"
	"github.com/cbegin/stepseq-go/internal/synth"
	"github.com/pkg/errors"
)

const (
	MinTempo     = 40
	MaxTempo     = 240
	DefaultTempo = 120
	MaxSwing     = 0.95
)

// EventKind identifies playback events delivered by Watch.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStep
	EventScene
	EventStopped
)

// Event carries playback state changes from Watch().
type Event struct {
	Kind EventKind
	// Step is the step just played (EventStep).
	Step int
	// SceneID and Status are set for EventScene; Status also for EventStopped.
	SceneID string
	Status  string
	// Completed is set on EventStopped when an arrangement ran out.
	Completed bool
}

// EchoConfig describes the master tempo-synced echo.
type EchoConfig struct {
	Beats    float64 // delay in quarter notes
	Feedback float32
	Wet      float32
}

type PlayerOption func(*playerConfig)

type playerConfig struct {
	tempo     float64
	swing     float64
	presetID  string
	presets   []synth.Settings
	logger    *slog.Logger
	output    Output
	noiseSeed *int64
	lookahead time.Duration
	echo      *EchoConfig
	limiter   bool
	sampleTap func([]float32)
	timer     intseq.Timer
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		tempo:     DefaultTempo,
		presetID:  synth.DefaultPresetID,
		lookahead: intseq.DefaultLookahead,
		limiter:   true,
	}
}

func WithTempo(bpm float64) PlayerOption {
	return func(cfg *playerConfig) { cfg.tempo = bpm }
}

func WithSwing(swing float64) PlayerOption {
	return func(cfg *playerConfig) { cfg.swing = swing }
}

// WithPreset selects the startup synth preset.
func WithPreset(id string) PlayerOption {
	return func(cfg *playerConfig) { cfg.presetID = id }
}

// WithPresets adds presets to the built-in library. A preset with a built-in
// id replaces it.
func WithPresets(presets ...synth.Settings) PlayerOption {
	return func(cfg *playerConfig) { cfg.presets = append(cfg.presets, presets...) }
}

func WithLogger(log *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) { cfg.logger = log }
}

// WithOutput replaces the default audio device.
func WithOutput(out Output) PlayerOption {
	return func(cfg *playerConfig) { cfg.output = out }
}

// WithNoiseSeed makes the drum noise buffer reproducible.
func WithNoiseSeed(seed int64) PlayerOption {
	return func(cfg *playerConfig) { cfg.noiseSeed = &seed }
}

// WithLookahead sets how far ahead of the audio clock steps are scheduled.
func WithLookahead(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) { cfg.lookahead = d }
}

// WithEcho adds a tempo-synced echo to the master bus.
func WithEcho(echo EchoConfig) PlayerOption {
	return func(cfg *playerConfig) { cfg.echo = &echo }
}

// WithLimiter toggles the master limiter (on by default).
func WithLimiter(enabled bool) PlayerOption {
	return func(cfg *playerConfig) { cfg.limiter = enabled }
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) { cfg.sampleTap = tap }
}

// withTimer replaces the step timer. Tests use it to drive steps by hand.
func withTimer(t intseq.Timer) PlayerOption {
	return func(cfg *playerConfig) { cfg.timer = t }
}

// transport holds tempo and swing. The sequencer reads it on every step, so
// it is guarded separately from the Player.
type transport struct {
	mu    sync.RWMutex
	tempo float64
	swing float64
}

func (t *transport) Tempo() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tempo
}

func (t *transport) Swing() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.swing
}

func clampTempo(bpm float64) float64 {
	if math.IsNaN(bpm) {
		return DefaultTempo
	}
	return math.Max(MinTempo, math.Min(MaxTempo, math.Round(bpm)))
}

func clampSwing(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(0, math.Min(MaxSwing, s))
}

// Player is a step sequencer with a built-in synth, drum kit and scene
// arrangement. Its methods are safe for concurrent use.
type Player struct {
	sampleRate int
	cfg        playerConfig
	log        *slog.Logger

	store  *pattern.Store
	arr    *arrangement.Arrangement
	bus    *intaudio.Bus
	fx     *intfx.Chain
	engine *synth.Engine
	output Output
	seq    *intseq.Sequencer
	tr     transport

	mu       sync.Mutex
	presets  []synth.Settings
	selected string
	status   string

	eventCh   chan Event
	eventChMu sync.Mutex
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.WithStack(ErrInvalidSampleRate)
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	presets := mergePresets(synth.BuiltinPresets(), cfg.presets)
	settings, ok := findPreset(presets, cfg.presetID)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPreset, "%q", cfg.presetID)
	}

	p := &Player{
		sampleRate: sampleRate,
		cfg:        cfg,
		log:        log,
		store:      pattern.NewStore(),
		arr:        arrangement.New(),
		presets:    presets,
		status:     LiveStatus,
	}
	p.tr.tempo = clampTempo(cfg.tempo)
	p.tr.swing = clampSwing(cfg.swing)

	p.bus, p.fx = p.newBus()
	p.bus.SetTap(cfg.sampleTap)
	p.engine = p.newEngine(p.bus, settings)

	p.output = cfg.output
	if p.output == nil {
		p.output = newDeviceOutput(sampleRate, p.bus, log)
	}
	p.seq = intseq.New(p.store, intseq.Options{
		Clock:     p.bus,
		Voices:    p.engine,
		Output:    p.output,
		Transport: &p.tr,
		Scenes:    p.arr,
		Timer:     cfg.timer,
		Lookahead: cfg.lookahead.Seconds(),
		OnEvent:   p.onSequencerEvent,
		Logger:    log,
	})
	return p, nil
}

// newBus builds an output bus with the configured master effects.
func (p *Player) newBus() (*intaudio.Bus, *intfx.Chain) {
	bus := intaudio.NewBus(p.sampleRate)
	chain := intfx.NewChain()
	if e := p.cfg.echo; e != nil {
		chain.Add(intfx.NewEcho(p.sampleRate, p.tr.Tempo(), e.Beats, e.Feedback, 0.6, e.Wet))
	}
	if p.cfg.limiter {
		chain.Add(intfx.DefaultLimiter(p.sampleRate))
	}
	if chain.Len() > 0 {
		bus.SetEffects(chain)
	}
	return bus, chain
}

func (p *Player) newEngine(sink synth.Sink, settings synth.Settings) *synth.Engine {
	e := synth.New(sink, settings)
	if p.cfg.noiseSeed != nil {
		e.SeedNoise(*p.cfg.noiseSeed)
	}
	return e
}

func (p *Player) SampleRate() int { return p.sampleRate }

// Play starts playback from step 0. If the arrangement has scenes, the first
// one is loaded into the live pattern and the arrangement plays through once.
// Play while playing does nothing.
func (p *Player) Play() error {
	return p.seq.Start()
}

// Stop halts playback. Notes already sounding ring out.
func (p *Player) Stop() {
	p.seq.Stop()
}

// Toggle plays when stopped and stops when playing.
func (p *Player) Toggle() error {
	if p.seq.Playing() {
		p.Stop()
		return nil
	}
	return p.Play()
}

func (p *Player) Playing() bool {
	return p.seq.Playing()
}

// PlaybackState is a snapshot of the transport.
type PlaybackState struct {
	Playing bool
	// PlayingStep is the step being heard, -1 when stopped.
	PlayingStep     int
	ArrangementMode bool
	SceneIndex      int
	SceneRepeats    int
	SceneID         string
}

func (p *Player) State() PlaybackState {
	s := p.seq.State()
	return PlaybackState{
		Playing:         s.Playing,
		PlayingStep:     s.PlayingStep,
		ArrangementMode: s.ArrangementMode,
		SceneIndex:      s.SceneIndex,
		SceneRepeats:    s.SceneRepeats,
		SceneID:         s.SceneID,
	}
}

// Wait blocks until playback stops, either by Stop or by the arrangement
// completing. It returns immediately if nothing is playing.
func (p *Player) Wait() {
	<-p.seq.Done()
}

// Done returns a channel closed when the current run stops. Unlike the
// Stopped event from Watch, it is never dropped.
func (p *Player) Done() <-chan struct{} {
	return p.seq.Done()
}

// Watch returns a channel that receives playback events. The channel is
// buffered (cap 32) and events are dropped when it is full. Only the most
// recent Watch() channel receives events.
func (p *Player) Watch() <-chan Event {
	ch := make(chan Event, 32)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// Close stops playback and releases the audio device.
func (p *Player) Close() error {
	p.Stop()
	return p.output.Close()
}

func (p *Player) onSequencerEvent(ev intseq.Event) {
	out := Event{Step: ev.Step, SceneID: ev.SceneID, Status: ev.Status, Completed: ev.Completed}
	switch ev.Kind {
	case intseq.EventStarted:
		out.Kind = EventStarted
	case intseq.EventStep:
		out.Kind = EventStep
	case intseq.EventScene:
		out.Kind = EventScene
		p.mu.Lock()
		p.selected = ev.SceneID
		p.status = ev.Status
		p.mu.Unlock()
	case intseq.EventStopped:
		out.Kind = EventStopped
		p.mu.Lock()
		if ev.Completed {
			p.status = CompletedStatus
		} else {
			p.status = p.selectedStatusLocked()
		}
		out.Status = p.status
		p.mu.Unlock()
	}
	p.sendEvent(out)
}

func (p *Player) sendEvent(ev Event) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// SetTempo sets the tempo in BPM, clamped to [MinTempo, MaxTempo] and rounded
// to a whole number. It takes effect on the next step.
func (p *Player) SetTempo(bpm float64) float64 {
	bpm = clampTempo(bpm)
	p.tr.mu.Lock()
	p.tr.tempo = bpm
	p.tr.mu.Unlock()
	p.bus.Do(func() { p.fx.SetTempo(bpm) })
	return bpm
}

func (p *Player) Tempo() float64 { return p.tr.Tempo() }

// SetSwing sets the swing amount, clamped to [0, MaxSwing].
func (p *Player) SetSwing(swing float64) float64 {
	swing = clampSwing(swing)
	p.tr.mu.Lock()
	p.tr.swing = swing
	p.tr.mu.Unlock()
	return swing
}

func (p *Player) Swing() float64 { return p.tr.Swing() }

// ActiveVoices counts voices still sounding on the output bus.
func (p *Player) ActiveVoices() int { return p.bus.ActiveVoices() }
