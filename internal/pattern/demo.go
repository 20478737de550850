package pattern

// Demo returns the starter groove: a four-note melody over kick, backbeat
// snare and eighth-note hats.
func Demo() Pattern {
	p := Empty()
	melody := []struct {
		note  string
		steps []int
	}{
		{"C5", []int{0, 4, 8, 12}},
		{"G4", []int{2, 6, 10, 14}},
		{"E4", []int{4, 12}},
		{"D4", []int{7, 15}},
	}
	for _, m := range melody {
		row := NoteIndex(m.note)
		if row < 0 {
			continue
		}
		for _, step := range m.steps {
			p.Piano[row][step] = true
		}
	}
	for _, step := range []int{0, 4, 8, 12} {
		p.Drums[Kick][step] = true
	}
	for _, step := range []int{4, 12} {
		p.Drums[Snare][step] = true
	}
	for step := 0; step < Steps; step += 2 {
		p.Drums[Hat][step] = true
	}
	return p
}

// NoteIndex returns the melodic row for note, or -1.
func NoteIndex(note string) int {
	for i, n := range Notes {
		if n == note {
			return i
		}
	}
	return -1
}
