package sequencer

import (
	"testing"

	"github.com/cbegin/stepseq-go/internal/pattern"
)

func BenchmarkSequencerStep(b *testing.B) {
	store := pattern.NewStore()
	store.Load(pattern.Demo())
	timer := &manualTimer{}
	seq := New(store, Options{
		Clock:     &fixedClock{},
		Voices:    &recordingVoices{},
		Transport: &transport{tempo: 120, swing: 0.2},
		Timer:     timer,
	})
	if err := seq.Start(); err != nil {
		b.Fatalf("start: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		timer.fire()
	}
}
