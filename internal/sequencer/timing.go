package sequencer

import (
	"math"
	"time"
)

const (
	// MinInterval floors the delay between steps.
	MinInterval = 50 * time.Millisecond
	// DefaultLookahead is how far ahead of the audio clock steps are placed.
	DefaultLookahead = 20 * time.Millisecond
)

// StepDuration is the length of one sixteenth note at tempo BPM, in seconds.
func StepDuration(tempo float64) float64 {
	return 60 / tempo / 4
}

// StepInterval returns the delay before upcomingStep is played. With swing,
// even steps arrive early and odd steps late by stepDuration*swing, so each
// even/odd pair still spans two step durations.
func StepInterval(stepDuration, swing float64, upcomingStep int) float64 {
	if !(swing > 0) {
		return stepDuration
	}
	amount := stepDuration * swing
	if upcomingStep%2 == 0 {
		return stepDuration - amount
	}
	return stepDuration + amount
}

// timerDelay converts an interval in seconds to a timer delay, applying the
// MinInterval floor. Non-finite and non-positive intervals get the floor.
func timerDelay(seconds float64) time.Duration {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return MinInterval
	}
	if seconds >= float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Timer arms one-shot callbacks.
type Timer interface {
	// AfterFunc calls f once after d unless cancel is called first.
	AfterFunc(d time.Duration, f func()) (cancel func())
}

// WallTimer is a Timer backed by the runtime clock.
type WallTimer struct{}

func (WallTimer) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}
