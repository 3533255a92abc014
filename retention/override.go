package retention

// DetectOverrides returns the positions whose live visibility differs from
// the visibility prev recorded as intended. Such a divergence can only come
// from an edit made outside the engine.
//
// Detection needs a cache recorded under the same retention count for a
// sequence of the same length. Any other cache is cold and yields no
// overrides. Holes and protected messages are never reported: neither is
// under the engine's control.
func DetectOverrides(prev Cache, p Projection, targetN int) []int {
	if !prev.Matches(targetN, len(p)) {
		return nil
	}

	var overrides []int
	for i, f := range p {
		if f&(FlagMissing|FlagProtected) != 0 {
			continue
		}
		if (f&FlagHidden != 0) != prev.Hidden[i] {
			overrides = append(overrides, i)
		}
	}
	return overrides
}
