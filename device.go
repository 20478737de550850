package stepseq

import (
	"log/slog"
	"sync"

	intaudio "github.com/cbegin/stepseq-go/internal/audio"
	"github.com/pkg/errors"
)

// Output is the realtime audio device. Resume is called on every Play; the
// first call opens the device.
type Output interface {
	Resume() error
	Close() error
}

// deviceOutput streams the bus to the default output device, opened on first
// Resume. An open failure is returned every time and never retried
// implicitly by the sequencer.
type deviceOutput struct {
	sampleRate int
	source     intaudio.SampleSource
	log        *slog.Logger

	mu     sync.Mutex
	player *intaudio.Player
}

func newDeviceOutput(sampleRate int, source intaudio.SampleSource, log *slog.Logger) *deviceOutput {
	return &deviceOutput{sampleRate: sampleRate, source: source, log: log}
}

func (d *deviceOutput) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		pl, err := intaudio.NewPlayer(d.sampleRate, d.source)
		if err != nil {
			d.log.Warn("audio device failed", "err", err)
			return errors.Wrapf(ErrAudioUnavailable, "%v", err)
		}
		d.player = pl
	}
	if !d.player.IsPlaying() {
		d.player.Play()
	}
	return nil
}

func (d *deviceOutput) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	err := d.player.Close()
	d.player = nil
	return err
}
