// Package pitch resolves note names to equal-tempered frequencies.
package pitch

import (
	"math"

	"github.com/pkg/errors"
)

// A4 is the reference pitch in Hz.
const A4 = 440.0

// semitones from A in the same octave.
var semitoneOffsets = map[string]int{
	"C":  -9,
	"C#": -8,
	"D":  -7,
	"D#": -6,
	"E":  -5,
	"F":  -4,
	"F#": -3,
	"G":  -2,
	"G#": -1,
	"A":  0,
	"A#": 1,
	"B":  2,
}

// Frequency returns the frequency of a note written as a letter A-G, an
// optional '#', and a single octave digit (e.g. "C4", "A#3").
func Frequency(note string) (float64, error) {
	semis, err := SemitonesFromA4(note)
	if err != nil {
		return 0, err
	}
	return A4 * math.Pow(2, float64(semis)/12), nil
}

// MustFrequency is Frequency for built-in note tables. It panics on a
// malformed name.
func MustFrequency(note string) float64 {
	f, err := Frequency(note)
	if err != nil {
		panic(err)
	}
	return f
}

// SemitonesFromA4 returns the signed semitone distance between note and A4.
func SemitonesFromA4(note string) (int, error) {
	if len(note) < 2 || len(note) > 3 {
		return 0, errors.Errorf("pitch: malformed note %q", note)
	}
	name := note[:len(note)-1]
	octave := note[len(note)-1]
	if octave < '0' || octave > '9' {
		return 0, errors.Errorf("pitch: malformed octave in %q", note)
	}
	offset, ok := semitoneOffsets[name]
	if !ok {
		return 0, errors.Errorf("pitch: unknown note name in %q", note)
	}
	return 12*(int(octave-'0')-4) + offset, nil
}
