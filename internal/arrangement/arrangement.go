// Package arrangement keeps the ordered list of scenes played back-to-back.
package arrangement

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cbegin/stepseq-go/internal/pattern"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Scene is a named, repeat-counted copy of both pattern grids.
type Scene struct {
	ID      string
	Name    string
	Repeats int
	Pattern pattern.Pattern
}

// EventCount is the number of melodic events in the scene.
func (s Scene) EventCount() int {
	return s.Pattern.NoteCount()
}

func (s Scene) clone() Scene {
	s.Pattern = s.Pattern.Clone()
	return s
}

// Arrangement is safe for concurrent use. Scenes handed out by any method
// are deep copies; callers can keep them across later edits.
type Arrangement struct {
	mu     sync.Mutex
	scenes []Scene
	newID  func() string
}

func New() *Arrangement {
	return &Arrangement{newID: func() string { return "scene-" + uuid.NewString() }}
}

// Add appends a scene holding a copy of p. A blank name becomes "Scene N"
// and repeats below one are raised to one.
func (a *Arrangement) Add(name string, repeats int, p pattern.Pattern) Scene {
	a.mu.Lock()
	defer a.mu.Unlock()
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Scene %d", len(a.scenes)+1)
	}
	if repeats < 1 {
		repeats = 1
	}
	sc := Scene{ID: a.newID(), Name: name, Repeats: repeats, Pattern: p.Clone()}
	a.scenes = append(a.scenes, sc)
	return sc.clone()
}

// Remove deletes the scene with id. It reports whether a scene was removed.
func (a *Arrangement) Remove(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.index(id)
	if i < 0 {
		return false
	}
	a.scenes = append(a.scenes[:i], a.scenes[i+1:]...)
	return true
}

// Move repositions the scene at from so that it ends up at index to.
func (a *Arrangement) Move(from, to int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.scenes)
	if from < 0 || from >= n || to < 0 || to >= n {
		return errors.Errorf("arrangement: move %d -> %d out of range (len %d)", from, to, n)
	}
	if from == to {
		return nil
	}
	sc := a.scenes[from]
	a.scenes = append(a.scenes[:from], a.scenes[from+1:]...)
	a.scenes = append(a.scenes[:to], append([]Scene{sc}, a.scenes[to:]...)...)
	return nil
}

// Scenes returns the scenes in play order.
func (a *Arrangement) Scenes() []Scene {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Scene, len(a.scenes))
	for i, sc := range a.scenes {
		out[i] = sc.clone()
	}
	return out
}

func (a *Arrangement) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.scenes)
}

// At returns the scene at index i.
func (a *Arrangement) At(i int) (Scene, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.scenes) {
		return Scene{}, false
	}
	return a.scenes[i].clone(), true
}

// Find returns the scene with id.
func (a *Arrangement) Find(id string) (Scene, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.index(id)
	if i < 0 {
		return Scene{}, false
	}
	return a.scenes[i].clone(), true
}

// Index returns the position of id, or -1.
func (a *Arrangement) Index(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index(id)
}

func (a *Arrangement) index(id string) int {
	for i := range a.scenes {
		if a.scenes[i].ID == id {
			return i
		}
	}
	return -1
}

// Clear removes every scene.
func (a *Arrangement) Clear() {
	a.mu.Lock()
	a.scenes = nil
	a.mu.Unlock()
}
