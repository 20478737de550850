package sequencer

import (
	"math"
	"testing"
	"time"

	"github.com/cbegin/stepseq-go/internal/arrangement"
	"github.com/cbegin/stepseq-go/internal/pattern"
	"github.com/pkg/errors"
)

type fixedClock struct{ now float64 }

func (c *fixedClock) Now() float64 { return c.now }

type melodicHit struct{ freq, start, dur float64 }

type recordingVoices struct {
	melodic []melodicHit
	drums   []pattern.Drum
}

func (v *recordingVoices) TriggerMelodic(freq, start, dur float64) {
	v.melodic = append(v.melodic, melodicHit{freq, start, dur})
}
func (v *recordingVoices) TriggerPercussion(kind pattern.Drum, start float64) {
	v.drums = append(v.drums, kind)
}

type countingOutput struct {
	resumes int
	err     error
}

func (o *countingOutput) Resume() error {
	o.resumes++
	return o.err
}

type transport struct{ tempo, swing float64 }

func (t *transport) Tempo() float64 { return t.tempo }
func (t *transport) Swing() float64 { return t.swing }

// manualTimer holds at most one armed callback and fires it on demand.
type manualTimer struct {
	delays []time.Duration
	fn     func()
	armed  int
}

func (m *manualTimer) AfterFunc(d time.Duration, f func()) func() {
	m.delays = append(m.delays, d)
	m.fn = f
	m.armed = len(m.delays)
	id := m.armed
	return func() {
		if m.armed == id {
			m.fn = nil
		}
	}
}

func (m *manualTimer) fire() bool {
	f := m.fn
	m.fn = nil
	if f == nil {
		return false
	}
	f()
	return true
}

func (m *manualTimer) lastDelay() time.Duration {
	return m.delays[len(m.delays)-1]
}

type harness struct {
	seq     *Sequencer
	store   *pattern.Store
	voices  *recordingVoices
	output  *countingOutput
	timer   *manualTimer
	tr      *transport
	events  []Event
	arrange *arrangement.Arrangement
}

func newHarness(arr *arrangement.Arrangement) *harness {
	h := &harness{
		store:   pattern.NewStore(),
		voices:  &recordingVoices{},
		output:  &countingOutput{},
		timer:   &manualTimer{},
		tr:      &transport{tempo: 120},
		arrange: arr,
	}
	opts := Options{
		Clock:     &fixedClock{now: 1},
		Voices:    h.voices,
		Output:    h.output,
		Transport: h.tr,
		Timer:     h.timer,
		OnEvent:   func(ev Event) { h.events = append(h.events, ev) },
	}
	if arr != nil {
		opts.Scenes = arr
	}
	h.seq = New(h.store, opts)
	return h
}

func (h *harness) count(kind EventKind) int {
	n := 0
	for _, ev := range h.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestStepDuration(t *testing.T) {
	for _, tc := range []struct{ tempo, want float64 }{
		{120, 0.125}, {60, 0.25}, {240, 0.0625}, {90, 60.0 / 90 / 4},
	} {
		if got := StepDuration(tc.tempo); got != tc.want {
			t.Fatalf("StepDuration(%v) = %v, want %v", tc.tempo, got, tc.want)
		}
	}
}

func TestSwingPairSpansTwoSteps(t *testing.T) {
	for _, tempo := range []float64{40, 97, 120, 240} {
		for _, swing := range []float64{0, 0.1, 0.33, 0.5, 0.95} {
			d := StepDuration(tempo)
			for even := 0; even < 16; even += 2 {
				sum := StepInterval(d, swing, even) + StepInterval(d, swing, even+1)
				if math.Abs(sum-2*d) > 1e-12 {
					t.Fatalf("tempo %v swing %v: pair sums to %v, want %v", tempo, swing, sum, 2*d)
				}
			}
		}
	}
}

func TestSwingShortensEvenSteps(t *testing.T) {
	if got := StepInterval(0.125, 0.5, 2); got != 0.0625 {
		t.Fatalf("even interval = %v", got)
	}
	if got := StepInterval(0.125, 0.5, 3); got != 0.1875 {
		t.Fatalf("odd interval = %v", got)
	}
	if got := StepInterval(0.125, -0.3, 2); got != 0.125 {
		t.Fatalf("negative swing should be ignored, got %v", got)
	}
}

func TestTimerDelayFloor(t *testing.T) {
	for _, tc := range []struct {
		seconds float64
		want    time.Duration
	}{
		{0.125, 125 * time.Millisecond},
		{0.01, MinInterval},
		{0, MinInterval},
		{-1, MinInterval},
		{math.NaN(), MinInterval},
		{math.Inf(1), MinInterval},
		{StepDuration(0), MinInterval},
	} {
		if got := timerDelay(tc.seconds); got != tc.want {
			t.Fatalf("timerDelay(%v) = %v, want %v", tc.seconds, got, tc.want)
		}
	}
}

func TestStepsCycleInOrder(t *testing.T) {
	h := newHarness(nil)
	if err := h.seq.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 47; i++ {
		if !h.timer.fire() {
			t.Fatalf("timer not armed after step %d", i)
		}
	}
	var steps []int
	for _, ev := range h.events {
		if ev.Kind == EventStep {
			steps = append(steps, ev.Step)
		}
	}
	if len(steps) != 48 {
		t.Fatalf("got %d steps, want 48", len(steps))
	}
	for i, s := range steps {
		if s != i%pattern.Steps {
			t.Fatalf("step %d = %d, want %d", i, s, i%pattern.Steps)
		}
	}
}

func TestStepTriggersActiveCells(t *testing.T) {
	h := newHarness(nil)
	a4 := pattern.NoteIndex("A4")
	h.store.Set(pattern.PianoGrid, a4, 0, true)
	h.store.Set(pattern.DrumGrid, int(pattern.Kick), 0, true)
	h.store.Set(pattern.DrumGrid, int(pattern.Hat), 1, true)

	if err := h.seq.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(h.voices.melodic) != 1 {
		t.Fatalf("expected one melodic trigger, got %d", len(h.voices.melodic))
	}
	hit := h.voices.melodic[0]
	if hit.freq != 440 || math.Abs(hit.start-1.02) > 1e-12 || hit.dur != 0.125 {
		t.Fatalf("unexpected melodic trigger %+v", hit)
	}
	if len(h.voices.drums) != 1 || h.voices.drums[0] != pattern.Kick {
		t.Fatalf("unexpected drums %v", h.voices.drums)
	}
	h.timer.fire()
	if len(h.voices.drums) != 2 || h.voices.drums[1] != pattern.Hat {
		t.Fatalf("unexpected drums after step 1: %v", h.voices.drums)
	}
}

func TestArrangementPlaysThroughAndCompletes(t *testing.T) {
	arr := arrangement.New()
	a := pattern.Empty()
	a.Drums[pattern.Kick][0] = true
	b := pattern.Empty()
	b.Drums[pattern.Snare][0] = true
	sa := arr.Add("A", 2, a)
	arr.Add("B", 1, b)

	h := newHarness(arr)
	if err := h.seq.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	fires := 0
	for h.timer.fire() {
		fires++
		if fires > 100 {
			t.Fatalf("arrangement never completed")
		}
	}
	if fires != 47 {
		t.Fatalf("fired %d times, want 47", fires)
	}
	if got := h.count(EventStep); got != 48 {
		t.Fatalf("played %d steps, want 48", got)
	}
	want := []pattern.Drum{pattern.Kick, pattern.Kick, pattern.Snare}
	if len(h.voices.drums) != len(want) {
		t.Fatalf("drums = %v, want %v", h.voices.drums, want)
	}
	for i := range want {
		if h.voices.drums[i] != want[i] {
			t.Fatalf("drums = %v, want %v", h.voices.drums, want)
		}
	}

	var scenes []string
	for _, ev := range h.events {
		if ev.Kind == EventScene {
			scenes = append(scenes, ev.Status)
		}
	}
	wantScenes := []string{"Arrangement: A (1/2)", "Arrangement: A (2/2)", "Arrangement: B (1/1)"}
	if len(scenes) != len(wantScenes) {
		t.Fatalf("scene statuses = %v", scenes)
	}
	for i := range wantScenes {
		if scenes[i] != wantScenes[i] {
			t.Fatalf("scene statuses = %v, want %v", scenes, wantScenes)
		}
	}

	last := h.events[len(h.events)-1]
	if last.Kind != EventStopped || !last.Completed || last.Status != CompletedStatus {
		t.Fatalf("expected completed stop, got %+v", last)
	}
	st := h.seq.State()
	if st.Playing || st.PlayingStep != -1 || st.SceneIndex != -1 || st.ArrangementMode {
		t.Fatalf("unexpected state after completion: %+v", st)
	}
	if !h.store.Snapshot().Equal(b) {
		t.Fatalf("store should hold the last scene's pattern")
	}
	if got, _ := arr.Find(sa.ID); !got.Pattern.Equal(a) {
		t.Fatalf("saved scene A changed")
	}
}

func TestRemovingActiveSceneKeepsPlaying(t *testing.T) {
	arr := arrangement.New()
	a := pattern.Empty()
	a.Drums[pattern.Kick][0] = true
	b := pattern.Empty()
	b.Drums[pattern.Hat][0] = true
	sa := arr.Add("A", 1, a)
	arr.Add("B", 1, b)

	h := newHarness(arr)
	if err := h.seq.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.timer.fire()
	arr.Remove(sa.ID)
	for h.timer.fire() {
	}
	if len(h.voices.drums) != 2 || h.voices.drums[1] != pattern.Hat {
		t.Fatalf("expected B to follow removed A, drums = %v", h.voices.drums)
	}
	last := h.events[len(h.events)-1]
	if last.Kind != EventStopped || !last.Completed {
		t.Fatalf("expected completed stop, got %+v", last)
	}
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	h := newHarness(nil)
	if err := h.seq.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	first := h.seq.State()
	if err := h.seq.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if h.seq.State() != first {
		t.Fatalf("second start changed state")
	}
	if h.output.resumes != 1 || h.count(EventStarted) != 1 {
		t.Fatalf("resumes=%d started=%d", h.output.resumes, h.count(EventStarted))
	}

	h.seq.Stop()
	stopped := h.seq.State()
	h.seq.Stop()
	if h.seq.State() != stopped {
		t.Fatalf("second stop changed state")
	}
	if h.count(EventStopped) != 1 {
		t.Fatalf("stopped events = %d", h.count(EventStopped))
	}
	if stopped.Playing || stopped.PlayingStep != -1 {
		t.Fatalf("unexpected stopped state %+v", stopped)
	}
}

func TestStopCancelsPendingStep(t *testing.T) {
	h := newHarness(nil)
	if err := h.seq.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	stale := h.timer.fn
	h.seq.Stop()
	if h.timer.fn != nil {
		t.Fatalf("stop did not cancel the timer")
	}
	stale()
	if got := h.count(EventStep); got != 1 {
		t.Fatalf("stale timer played a step, steps = %d", got)
	}

	// A timer from the previous run must not drive the new one.
	if err := h.seq.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	stale()
	if got := h.count(EventStep); got != 2 {
		t.Fatalf("stale timer leaked into the new run, steps = %d", got)
	}
	if st := h.seq.State(); st.Step != 1 {
		t.Fatalf("restart did not rewind, step = %d", st.Step)
	}
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestDoneIsScopedToOneRun(t *testing.T) {
	h := newHarness(nil)
	if !closed(h.seq.Done()) {
		t.Fatalf("Done should be closed before the first Start")
	}
	if err := h.seq.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	first := h.seq.Done()
	if closed(first) {
		t.Fatalf("Done closed while playing")
	}
	h.seq.Stop()
	if !closed(first) {
		t.Fatalf("Stop did not close Done")
	}

	if err := h.seq.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	second := h.seq.Done()
	h.timer.fire()
	if closed(second) || second == first {
		t.Fatalf("restart reused the finished run's Done")
	}
	h.seq.Stop()
	if !closed(second) {
		t.Fatalf("Stop did not close the second run's Done")
	}
}

func TestRestartFromCompletionHandlerKeepsNewRunOpen(t *testing.T) {
	arr := arrangement.New()
	arr.Add("A", 1, pattern.Empty())
	h := newHarness(arr)
	h.seq.opts.OnEvent = func(ev Event) {
		h.events = append(h.events, ev)
		if ev.Kind == EventStopped && ev.Completed {
			// Restart before the completed run's events have all been seen.
			arr.Clear()
			if err := h.seq.Start(); err != nil {
				t.Errorf("restart: %v", err)
			}
		}
	}
	if err := h.seq.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	finished := h.seq.Done()
	for i := 0; i < pattern.Steps; i++ {
		h.timer.fire()
	}
	if !closed(finished) {
		t.Fatalf("completed run's Done still open")
	}
	if !h.seq.Playing() {
		t.Fatalf("handler restart did not take effect")
	}
	if closed(h.seq.Done()) {
		t.Fatalf("late completion closed the new run's Done")
	}
}

func TestStartFailsWhenOutputUnavailable(t *testing.T) {
	h := newHarness(nil)
	boom := errors.New("no device")
	h.output.err = boom
	err := h.seq.Start()
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped device error, got %v", err)
	}
	if h.seq.Playing() || len(h.events) != 0 || h.timer.fn != nil {
		t.Fatalf("failed start left playback running")
	}
}

func TestTempoAndSwingReadEveryStep(t *testing.T) {
	h := newHarness(nil)
	if err := h.seq.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := h.timer.lastDelay(); got != 125*time.Millisecond {
		t.Fatalf("first delay = %v", got)
	}
	h.tr.tempo = 60
	h.timer.fire()
	if got := h.timer.lastDelay(); got != 250*time.Millisecond {
		t.Fatalf("delay after tempo change = %v", got)
	}
	if got := h.voices.melodic; len(got) != 0 {
		t.Fatalf("unexpected melodic triggers")
	}
	h.tr.tempo = 120
	h.tr.swing = 0.5
	h.timer.fire() // plays step 2, next is 3 (odd)
	if got := h.timer.lastDelay(); got != 187500*time.Microsecond {
		t.Fatalf("odd swung delay = %v", got)
	}
	h.timer.fire() // next is 4 (even)
	if got := h.timer.lastDelay(); got != 62500*time.Microsecond {
		t.Fatalf("even swung delay = %v", got)
	}
	h.tr.tempo = 2000
	h.timer.fire()
	if got := h.timer.lastDelay(); got != MinInterval {
		t.Fatalf("fast tempo delay = %v, want floor", got)
	}
}

func TestEventHandlerMayStopPlayback(t *testing.T) {
	store := pattern.NewStore()
	timer := &manualTimer{}
	var seq *Sequencer
	var steps int
	seq = New(store, Options{
		Clock:     &fixedClock{},
		Voices:    &recordingVoices{},
		Transport: &transport{tempo: 120},
		Timer:     timer,
		OnEvent: func(ev Event) {
			if ev.Kind == EventStep {
				steps++
				if ev.Step == 3 {
					seq.Stop()
				}
			}
		},
	})
	if err := seq.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for timer.fire() {
	}
	if steps != 4 || seq.Playing() {
		t.Fatalf("steps=%d playing=%v", steps, seq.Playing())
	}
}
