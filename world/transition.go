package world

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Transition is a camera viewpoint selected while the scroll position is
// below Until and at or above the previous transition's Until.
type Transition struct {
	Until  float64
	Eye    mgl32.Vec3
	Target mgl32.Vec3
}

// TransitionTable maps scroll positions to camera viewpoints.
type TransitionTable struct {
	steps   []Transition
	current int
}

// NewTransitionTable sorts steps by threshold. The first range starts
// at 0.
func NewTransitionTable(steps ...Transition) *TransitionTable {
	steps = slices.Clone(steps)
	slices.SortFunc(steps, func(a, b Transition) int {
		switch {
		case a.Until < b.Until:
			return -1
		case a.Until > b.Until:
			return 1
		}
		return 0
	})
	return &TransitionTable{steps: steps, current: -1}
}

// Len returns the number of transitions.
func (t *TransitionTable) Len() int { return len(t.steps) }

// End returns the highest threshold, 0 for an empty table.
func (t *TransitionTable) End() float64 {
	if len(t.steps) == 0 {
		return 0
	}
	return t.steps[len(t.steps)-1].Until
}

// Lookup returns the index of the transition whose range holds pos.
func (t *TransitionTable) Lookup(pos float64) (int, bool) {
	start := 0.0
	for i, s := range t.steps {
		if pos >= start && pos < s.Until {
			return i, true
		}
		start = s.Until
	}
	return -1, false
}

// Enter returns the transition for pos the first time pos lands in its
// range. Moving within the same range, or outside every range, reports
// false.
func (t *TransitionTable) Enter(pos float64) (Transition, bool) {
	i, ok := t.Lookup(pos)
	if !ok || i == t.current {
		return Transition{}, false
	}
	t.current = i
	return t.steps[i], true
}
