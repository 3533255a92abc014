package retention

import "time"

// Reason explains why an incremental pass did no work.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonNotPositive Reason = "retention count not positive"
	ReasonNoGrowth    Reason = "sequence did not grow"
)

// IncrementalResult is the outcome of an incremental reconciliation.
type IncrementalResult struct {
	Transitions []Transition
	// Length is the new last processed length. It advances to the current
	// length whether or not the pass performed work.
	Length int
	Cache  Cache
	// Performed is false when the preconditions did not hold. The caller
	// must then run a full reconciliation.
	Performed bool
	Reason    Reason
	Duration  time.Duration
}

// ComputeIncremental hides only the band of positions that rolled out of the
// visible window because the sequence grew since prev was recorded:
// [max(0, prev.Length-targetN), len(p)-targetN). Protected messages, holes
// and messages already hidden are left alone. Positions before the band are
// never examined, so manual edits there wait for the next full pass.
//
// It performs work only when targetN > 0 and the sequence strictly grew.
// Otherwise it returns Performed == false with the reason; it never falls
// back to a full scan itself.
//
// When prev is valid and was recorded under targetN, the returned cache
// extends prev's intended vector, so it equals what a full pass would record
// for an append-only history. Otherwise the returned cache is stale.
func ComputeIncremental(p Projection, targetN int, prev Cache) IncrementalResult {
	start := time.Now()
	length := len(p)

	if targetN <= 0 {
		return IncrementalResult{
			Length:   length,
			Cache:    Stale(prev.LastN, length),
			Reason:   ReasonNotPositive,
			Duration: time.Since(start),
		}
	}
	if length <= prev.Length {
		return IncrementalResult{
			Length:   length,
			Cache:    Stale(prev.LastN, length),
			Reason:   ReasonNoGrowth,
			Duration: time.Since(start),
		}
	}

	targetStart := length - targetN
	previousStart := max(0, prev.Length-targetN)

	var transitions []Transition
	for i := previousStart; i < targetStart; i++ {
		f := p[i]
		if f&(FlagMissing|FlagProtected|FlagHidden) != 0 {
			continue
		}
		transitions = append(transitions, Transition{Index: i, Hidden: true})
	}

	return IncrementalResult{
		Transitions: transitions,
		Length:      length,
		Cache:       extendCache(prev, p, targetN, previousStart, targetStart),
		Performed:   true,
		Duration:    time.Since(start),
	}
}

func extendCache(prev Cache, p Projection, targetN, bandStart, bandEnd int) Cache {
	length := len(p)
	if !prev.Valid() || prev.LastN != targetN {
		return Stale(targetN, length)
	}

	hidden := make([]bool, length)
	copy(hidden, prev.Hidden)
	for i := bandStart; i < bandEnd; i++ {
		hidden[i] = !p.Protected(i)
	}
	return Cache{LastN: targetN, Length: length, Hidden: hidden}
}
