package stepseq

import "github.com/pkg/errors"

var (
	// ErrUnknownPreset is returned when a preset id is not in the library.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrSceneNotFound is returned for an id that is not in the arrangement.
	ErrSceneNotFound = errors.New("scene not found")
	// ErrAudioUnavailable wraps a failure to open the output device.
	ErrAudioUnavailable = errors.New("audio output unavailable")
	// ErrInvalidSampleRate is returned by NewPlayer for a non-positive rate.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
)
