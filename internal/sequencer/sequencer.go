package sequencer

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cbegin/stepseq-go/internal/arrangement"
	"github.com/cbegin/stepseq-go/internal/pattern"
	"github.com/cbegin/stepseq-go/internal/pitch"
	"github.com/pkg/errors"
)

// Clock reads the audio clock in seconds.
type Clock interface {
	Now() float64
}

// Voices starts detached sounds. synth.Engine satisfies it.
type Voices interface {
	TriggerMelodic(freq, start, stepDuration float64)
	TriggerPercussion(kind pattern.Drum, start float64)
}

// Output is the audio device. Resume is called on every Start and may
// create the device on first use.
type Output interface {
	Resume() error
}

// Transport supplies tempo (BPM) and swing. Both are read on every step.
type Transport interface {
	Tempo() float64
	Swing() float64
}

// Scenes is the read side of an arrangement.
type Scenes interface {
	Len() int
	At(i int) (arrangement.Scene, bool)
	Index(id string) int
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStep
	EventScene
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStep:
		return "step"
	case EventScene:
		return "scene"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// Event is delivered to Options.OnEvent after the sequencer has released its
// lock, so handlers may call back into the sequencer.
type Event struct {
	Kind EventKind
	// Step is the step just triggered (EventStep).
	Step int
	// Scene fields are set for EventScene.
	SceneID   string
	SceneName string
	Iteration int
	Repeats   int
	// Status is a human-readable label for EventScene and EventStopped.
	Status string
	// Completed marks a stop caused by the arrangement running out.
	Completed bool
}

// CompletedStatus is the status of an arrangement that played to the end.
const CompletedStatus = "Arrangement complete"

// SceneStatus labels a scene on its iteration-th pass.
func SceneStatus(name string, iteration, repeats int) string {
	return fmt.Sprintf("Arrangement: %s (%d/%d)", name, min(iteration, repeats), repeats)
}

type Options struct {
	Clock     Clock
	Voices    Voices
	Output    Output
	Transport Transport
	// Scenes enables arrangement mode when it holds at least one scene at
	// Start. May be nil.
	Scenes Scenes
	// Timer defaults to WallTimer.
	Timer Timer
	// Lookahead defaults to DefaultLookahead.
	Lookahead float64
	OnEvent   func(Event)
	Logger    *slog.Logger
}

// State is a snapshot of the playback state.
type State struct {
	Playing bool
	// Step is the next step to be triggered.
	Step int
	// PlayingStep is the step most recently triggered, -1 while stopped.
	PlayingStep     int
	ArrangementMode bool
	// SceneIndex is -1 outside arrangement mode.
	SceneIndex int
	// SceneRepeats counts completed passes of the current scene.
	SceneRepeats int
	SceneID      string
}

// Sequencer is the step loop. Each step reads one column of the pattern,
// triggers its voices slightly ahead of the audio clock and arms a timer for
// the next step.
type Sequencer struct {
	store *pattern.Store
	opts  Options
	log   *slog.Logger

	mu         sync.Mutex
	playing    bool
	step       int
	playingIdx int
	arrMode    bool
	sceneIdx   int
	repeats    int
	scene      arrangement.Scene // copy held for the active scene
	gen        uint64
	cancel     func()
	done       chan struct{}
	pending    []Event
}

func New(store *pattern.Store, opts Options) *Sequencer {
	if opts.Timer == nil {
		opts.Timer = WallTimer{}
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead.Seconds()
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	done := make(chan struct{})
	close(done)
	return &Sequencer{
		store:      store,
		opts:       opts,
		log:        log,
		playingIdx: -1,
		sceneIdx:   -1,
		done:       done,
	}
}

// Start begins playback. It does nothing if already playing. An output
// failure is returned and leaves the sequencer stopped.
func (s *Sequencer) Start() error {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	if s.opts.Output != nil {
		if err := s.opts.Output.Resume(); err != nil {
			s.mu.Unlock()
			return errors.Wrap(err, "resume audio output")
		}
	}
	s.playing = true
	s.gen++
	s.done = make(chan struct{})
	s.step = 0
	s.playingIdx = -1
	s.sceneIdx = -1
	s.repeats = 0
	s.scene = arrangement.Scene{}
	s.arrMode = s.opts.Scenes != nil && s.opts.Scenes.Len() > 0
	s.emit(Event{Kind: EventStarted})
	s.log.Debug("playback started", "arrangement", s.arrMode)

	if s.arrMode && !s.switchToScene(0) {
		// The arrangement emptied between Len and At.
		s.arrMode = false
	}
	s.runStep()
	s.mu.Unlock()
	s.flush()
	return nil
}

// Stop halts playback. Voices already started ring out. Calling Stop while
// stopped does nothing.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	s.stop(false)
	s.mu.Unlock()
	s.flush()
}

// Done returns a channel closed when the current run stops. Each Start gets
// a new channel; while stopped the returned channel is already closed.
func (s *Sequencer) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Sequencer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Playing:         s.playing,
		Step:            s.step,
		PlayingStep:     s.playingIdx,
		ArrangementMode: s.arrMode,
		SceneIndex:      s.sceneIdx,
		SceneRepeats:    s.repeats,
		SceneID:         s.scene.ID,
	}
}

func (s *Sequencer) stop(completed bool) {
	if !s.playing {
		return
	}
	s.playing = false
	s.gen++
	close(s.done)
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.playingIdx = -1
	s.arrMode = false
	s.sceneIdx = -1
	s.repeats = 0
	s.scene = arrangement.Scene{}
	ev := Event{Kind: EventStopped, Completed: completed}
	if completed {
		ev.Status = CompletedStatus
		s.log.Debug("arrangement complete")
	} else {
		s.log.Debug("playback stopped")
	}
	s.emit(ev)
}

// tick is the timer callback. Stale timers from an earlier run are ignored.
func (s *Sequencer) tick(gen uint64) {
	s.mu.Lock()
	if !s.playing || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.cancel = nil
	s.runStep()
	s.mu.Unlock()
	s.flush()
}

func (s *Sequencer) runStep() {
	stepDur := StepDuration(s.opts.Transport.Tempo())
	start := s.opts.Clock.Now() + s.opts.Lookahead

	col := s.store.Column(s.step)
	for _, row := range col.Notes {
		s.opts.Voices.TriggerMelodic(pitch.MustFrequency(pattern.Notes[row]), start, stepDur)
	}
	for _, d := range col.Drums {
		s.opts.Voices.TriggerPercussion(d, start)
	}
	s.playingIdx = s.step
	s.emit(Event{Kind: EventStep, Step: s.step})

	s.step = (s.step + 1) % pattern.Steps
	if s.step == 0 && s.arrMode {
		s.repeats++
		if s.repeats >= s.scene.Repeats {
			if !s.switchToScene(s.nextSceneIndex()) {
				s.stop(true)
				return
			}
		} else {
			s.emit(s.sceneEvent(s.repeats + 1))
		}
	}

	interval := StepInterval(stepDur, s.opts.Transport.Swing(), s.step)
	gen := s.gen
	s.cancel = s.opts.Timer.AfterFunc(timerDelay(interval), func() { s.tick(gen) })
}

// nextSceneIndex finds the scene after the active one. The active scene may
// have been removed or moved since it was loaded, so it is located by id; if
// it is gone, whatever now sits at its old position plays next.
func (s *Sequencer) nextSceneIndex() int {
	if i := s.opts.Scenes.Index(s.scene.ID); i >= 0 {
		return i + 1
	}
	return s.sceneIdx
}

// switchToScene loads scene i into the pattern store and rewinds. It reports
// false when there is no scene at i.
func (s *Sequencer) switchToScene(i int) bool {
	sc, ok := s.opts.Scenes.At(i)
	if !ok {
		return false
	}
	s.sceneIdx = i
	s.repeats = 0
	s.scene = sc
	s.store.Load(sc.Pattern)
	s.step = 0
	s.emit(s.sceneEvent(1))
	s.log.Debug("scene loaded", "scene", sc.Name, "index", i, "repeats", sc.Repeats)
	return true
}

func (s *Sequencer) sceneEvent(iteration int) Event {
	return Event{
		Kind:      EventScene,
		SceneID:   s.scene.ID,
		SceneName: s.scene.Name,
		Iteration: iteration,
		Repeats:   s.scene.Repeats,
		Status:    SceneStatus(s.scene.Name, iteration, s.scene.Repeats),
	}
}

func (s *Sequencer) emit(ev Event) {
	if s.opts.OnEvent != nil {
		s.pending = append(s.pending, ev)
	}
}

// flush delivers queued events outside the lock, in the order they were
// queued.
func (s *Sequencer) flush() {
	s.mu.Lock()
	events := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, ev := range events {
		s.opts.OnEvent(ev)
	}
}
