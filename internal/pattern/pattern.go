// Package pattern holds the step grids played by the sequencer.
package pattern

import (
	"fmt"
	"sync"
)

// Steps is the number of sixteenth-note slots in one pattern loop.
const Steps = 16

// Notes lists the melodic rows from highest to lowest pitch.
var Notes = []string{
	"C5", "B4", "A#4", "A4", "G#4", "G4", "F#4", "F4", "E4", "D#4", "D4", "C#4", "C4",
}

// Drum identifies a percussion row.
type Drum int

const (
	Kick Drum = iota
	Snare
	Hat
)

// Drums lists the percussion rows in grid order.
var Drums = []Drum{Kick, Snare, Hat}

func (d Drum) String() string {
	switch d {
	case Kick:
		return "kick"
	case Snare:
		return "snare"
	case Hat:
		return "hat"
	}
	return fmt.Sprintf("drum(%d)", int(d))
}

// Label is the human-readable row name.
func (d Drum) Label() string {
	switch d {
	case Kick:
		return "Kick"
	case Snare:
		return "Snare"
	case Hat:
		return "Hi-Hat"
	}
	return d.String()
}

// Grid selects one of the two tables in a pattern.
type Grid int

const (
	PianoGrid Grid = iota
	DrumGrid
)

func (g Grid) rows() int {
	if g == PianoGrid {
		return len(Notes)
	}
	return len(Drums)
}

// Pattern is a value copy of both grids. Piano[row][step] follows Notes,
// Drums[row][step] follows Drums.
type Pattern struct {
	Piano [][]bool
	Drums [][]bool
}

// Empty returns an all-false pattern with the fixed dimensions.
func Empty() Pattern {
	return Pattern{
		Piano: newTable(len(Notes)),
		Drums: newTable(len(Drums)),
	}
}

func newTable(rows int) [][]bool {
	t := make([][]bool, rows)
	for i := range t {
		t[i] = make([]bool, Steps)
	}
	return t
}

func cloneTable(src [][]bool) [][]bool {
	out := make([][]bool, len(src))
	for i, row := range src {
		out[i] = append([]bool(nil), row...)
	}
	return out
}

// Clone returns a deep copy that shares no row storage with p.
func (p Pattern) Clone() Pattern {
	return Pattern{Piano: cloneTable(p.Piano), Drums: cloneTable(p.Drums)}
}

// Equal reports whether both patterns have identical cells.
func (p Pattern) Equal(o Pattern) bool {
	return tableEqual(p.Piano, o.Piano) && tableEqual(p.Drums, o.Drums)
}

func tableEqual(a, b [][]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// NoteCount returns the number of active melodic cells.
func (p Pattern) NoteCount() int {
	n := 0
	for _, row := range p.Piano {
		for _, on := range row {
			if on {
				n++
			}
		}
	}
	return n
}

// Column is the set of active rows at one step.
type Column struct {
	Notes []int  // indexes into Notes
	Drums []Drum // active percussion rows
}

// Store owns the live pattern. All methods are safe for concurrent use; each
// call is atomic with respect to the others.
type Store struct {
	mu    sync.RWMutex
	piano [][]bool
	drums [][]bool
}

// NewStore returns a store with every cell off.
func NewStore() *Store {
	return &Store{
		piano: newTable(len(Notes)),
		drums: newTable(len(Drums)),
	}
}

func (s *Store) table(g Grid) [][]bool {
	if g == PianoGrid {
		return s.piano
	}
	return s.drums
}

func checkBounds(g Grid, row, step int) {
	if row < 0 || row >= g.rows() || step < 0 || step >= Steps {
		panic(fmt.Sprintf("pattern: cell (%d,%d) out of range for grid %d", row, step, g))
	}
}

// Toggle flips one cell and returns its new value.
func (s *Store) Toggle(g Grid, row, step int) bool {
	checkBounds(g, row, step)
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(g)
	t[row][step] = !t[row][step]
	return t[row][step]
}

// Set writes one cell.
func (s *Store) Set(g Grid, row, step int, on bool) {
	checkBounds(g, row, step)
	s.mu.Lock()
	s.table(g)[row][step] = on
	s.mu.Unlock()
}

// Cell reads one cell.
func (s *Store) Cell(g Grid, row, step int) bool {
	checkBounds(g, row, step)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table(g)[row][step]
}

// Snapshot returns a deep copy of both grids.
func (s *Store) Snapshot() Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Pattern{Piano: cloneTable(s.piano), Drums: cloneTable(s.drums)}
}

// Load overwrites every cell from p. Rows or steps missing from p are
// cleared; extra ones are ignored.
func (s *Store) Load(p Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyTable(s.piano, p.Piano)
	copyTable(s.drums, p.Drums)
}

func copyTable(dst, src [][]bool) {
	for i := range dst {
		for j := range dst[i] {
			dst[i][j] = i < len(src) && j < len(src[i]) && src[i][j]
		}
	}
}

// Clear switches every cell off.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range [][][]bool{s.piano, s.drums} {
		for _, row := range t {
			clear(row)
		}
	}
}

// Column returns the active rows at step in one atomic read.
func (s *Store) Column(step int) Column {
	checkBounds(PianoGrid, 0, step)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var col Column
	for row := range s.piano {
		if s.piano[row][step] {
			col.Notes = append(col.Notes, row)
		}
	}
	for row, d := range Drums {
		if s.drums[row][step] {
			col.Drums = append(col.Drums, d)
		}
	}
	return col
}
