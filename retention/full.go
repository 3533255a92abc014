package retention

import (
	"bytes"
	"time"
)

// SkipWindow bounds how far the full scan jumps over a run of positions that
// already agree with their zone. The result never depends on its value.
const SkipWindow = 10

var (
	agreeHidden  = bytes.Repeat([]byte{FlagHidden}, SkipWindow)
	agreeVisible = make([]byte, SkipWindow)
)

// FullResult is the outcome of a full reconciliation.
type FullResult struct {
	Transitions []Transition
	Cache       Cache
	Overrides   []int
	Duration    time.Duration
}

// ComputeFull reconsiders every position of p under retention count targetN.
//
// Positions before VisibleStart target hidden, the rest target visible.
// Manual overrides detected against prev keep their live state for this
// pass. Protected messages always target visible and never receive a
// transition. The returned cache records the target vector, not the state
// after the transitions are applied; the next pass compares live state
// against it to find overrides.
func ComputeFull(p Projection, targetN int, prev Cache) FullResult {
	start := time.Now()

	length := len(p)
	visibleStart := VisibleStart(length, targetN)
	overrides := DetectOverrides(prev, p, targetN)

	target := make([]bool, length)
	for i := range visibleStart {
		target[i] = !p.Protected(i)
	}
	for _, i := range overrides {
		target[i] = p.Hidden(i)
	}

	var transitions []Transition
	transitions = scanZone(p, target, 0, visibleStart, agreeHidden, transitions)
	transitions = scanZone(p, target, visibleStart, length, agreeVisible, transitions)

	return FullResult{
		Transitions: transitions,
		Cache:       Cache{LastN: targetN, Length: length, Hidden: target},
		Overrides:   overrides,
		Duration:    time.Since(start),
	}
}

// scanZone appends a transition for every position in [from, to) whose live
// visibility differs from target. Windows whose bytes all equal agree (the
// zone default for a present, unprotected message) are skipped whole: such a
// position either matches the zone target or is an override, and an
// override keeps its live state, so it cannot need a transition.
func scanZone(p Projection, target []bool, from, to int, agree []byte, out []Transition) []Transition {
	for i := from; i < to; {
		if i+SkipWindow <= to && bytes.Equal(p[i:i+SkipWindow], agree) {
			i += SkipWindow
			continue
		}

		f := p[i]
		if f&(FlagMissing|FlagProtected) == 0 && (f&FlagHidden != 0) != target[i] {
			out = append(out, Transition{Index: i, Hidden: target[i]})
		}
		i++
	}
	return out
}
