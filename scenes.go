package stepseq

import (
	"fmt"

	"github.com/cbegin/stepseq-go/internal/arrangement"
	"github.com/cbegin/stepseq-go/internal/pattern"
	intseq "github.com/cbegin/stepseq-go/internal/sequencer"
	"github.com/pkg/errors"
)

// Status labels.
const (
	LiveStatus      = "Live Pattern"
	DemoStatus      = "Pattern Demo"
	CompletedStatus = intseq.CompletedStatus
)

// Pattern and Scene are re-exported so callers can work with snapshots.
type (
	Pattern = pattern.Pattern
	Scene   = arrangement.Scene
	Drum    = pattern.Drum
)

const (
	Kick  = pattern.Kick
	Snare = pattern.Snare
	Hat   = pattern.Hat
	Steps = pattern.Steps
)

// Notes lists the melodic rows from top (C5) to bottom (C4).
func Notes() []string {
	return append([]string(nil), pattern.Notes...)
}

// Status returns the label describing what the live pattern holds.
func (p *Player) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// SelectedScene returns the id of the scene last loaded for editing or by the
// arrangement, or "" when none is selected.
func (p *Player) SelectedScene() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// ToggleNote flips a melodic cell and returns its new value. row indexes
// Notes(). Out-of-range cells panic.
func (p *Player) ToggleNote(row, step int) bool {
	return p.store.Toggle(pattern.PianoGrid, row, step)
}

// ToggleDrum flips a percussion cell and returns its new value.
func (p *Player) ToggleDrum(d Drum, step int) bool {
	return p.store.Toggle(pattern.DrumGrid, int(d), step)
}

func (p *Player) Note(row, step int) bool {
	return p.store.Cell(pattern.PianoGrid, row, step)
}

func (p *Player) DrumHit(d Drum, step int) bool {
	return p.store.Cell(pattern.DrumGrid, int(d), step)
}

// Pattern returns a copy of the live pattern.
func (p *Player) Pattern() Pattern {
	return p.store.Snapshot()
}

// LoadPattern overwrites the live pattern.
func (p *Player) LoadPattern(pat Pattern) {
	p.store.Load(pat)
}

// ClearPattern empties the live pattern and drops the scene selection.
func (p *Player) ClearPattern() {
	p.store.Clear()
	p.setSelection("", LiveStatus)
}

// SeedDemoPattern replaces the live pattern with the demo groove.
func (p *Player) SeedDemoPattern() {
	p.store.Load(pattern.Demo())
	p.setSelection("", DemoStatus)
}

func (p *Player) setSelection(id, status string) {
	p.mu.Lock()
	p.selected = id
	p.status = status
	p.mu.Unlock()
}

// AddScene saves the live pattern as a new scene at the end of the
// arrangement. A blank name becomes "Scene N"; repeats below 1 become 1.
func (p *Player) AddScene(name string, repeats int) Scene {
	sc := p.arr.Add(name, repeats, p.store.Snapshot())
	p.mu.Lock()
	p.status = fmt.Sprintf("Scene saved: %s", sc.Name)
	p.mu.Unlock()
	p.log.Debug("scene added", "id", sc.ID, "name", sc.Name, "repeats", sc.Repeats)
	return sc
}

// RemoveScene deletes a scene. Removing the scene that is playing does not
// interrupt playback.
func (p *Player) RemoveScene(id string) error {
	if !p.arr.Remove(id) {
		return errors.Wrapf(ErrSceneNotFound, "%q", id)
	}
	p.mu.Lock()
	if p.selected == id {
		p.selected = ""
		p.status = LiveStatus
	}
	p.mu.Unlock()
	return nil
}

// MoveScene repositions the scene at index from to index to.
func (p *Player) MoveScene(from, to int) error {
	return p.arr.Move(from, to)
}

// MoveSceneUp swaps a scene with its predecessor. The first scene stays put.
func (p *Player) MoveSceneUp(id string) error {
	i := p.arr.Index(id)
	if i < 0 {
		return errors.Wrapf(ErrSceneNotFound, "%q", id)
	}
	if i == 0 {
		return nil
	}
	return p.arr.Move(i, i-1)
}

// MoveSceneDown swaps a scene with its successor. The last scene stays put.
func (p *Player) MoveSceneDown(id string) error {
	i := p.arr.Index(id)
	if i < 0 {
		return errors.Wrapf(ErrSceneNotFound, "%q", id)
	}
	if i >= p.arr.Len()-1 {
		return nil
	}
	return p.arr.Move(i, i+1)
}

// LoadScene copies a saved scene into the live pattern for editing and
// selects it. The saved scene is not linked to the live pattern afterwards.
func (p *Player) LoadScene(id string) error {
	sc, ok := p.arr.Find(id)
	if !ok {
		return errors.Wrapf(ErrSceneNotFound, "%q", id)
	}
	p.store.Load(sc.Pattern)
	p.setSelection(sc.ID, selectedStatus(sc.Name))
	return nil
}

// ClearArrangement removes every scene.
func (p *Player) ClearArrangement() {
	p.arr.Clear()
	p.setSelection("", LiveStatus)
}

// Scenes returns copies of the arrangement in play order.
func (p *Player) Scenes() []Scene {
	return p.arr.Scenes()
}

func selectedStatus(name string) string {
	return fmt.Sprintf("Scene selected: %s", name)
}

// selectedStatusLocked labels the current selection. p.mu must be held.
func (p *Player) selectedStatusLocked() string {
	if p.selected == "" {
		return LiveStatus
	}
	sc, ok := p.arr.Find(p.selected)
	if !ok {
		return LiveStatus
	}
	return selectedStatus(sc.Name)
}
