package retention

import "slices"

// Cache is the snapshot recorded after a reconciliation pass: the retention
// count it ran under, the sequence length it saw, and the visibility it
// intended for every position (true = hidden).
//
// A Cache whose Hidden vector does not match Length is stale. Stale caches
// still carry a usable Length baseline but never feed override detection.
// Caches are replaced wholesale; the methods here never mutate the receiver.
type Cache struct {
	LastN  int    `cbor:"last_n" json:"last_n"`
	Length int    `cbor:"length" json:"length"`
	Hidden []bool `cbor:"hidden,omitempty" json:"hidden,omitempty"`
}

// Valid reports whether the intended vector covers exactly Length positions.
func (c Cache) Valid() bool {
	return c.Length >= 0 && len(c.Hidden) == c.Length
}

// Matches reports whether the cache is valid and was recorded under
// targetN for a sequence of the given length.
func (c Cache) Matches(targetN, length int) bool {
	return c.Valid() && c.LastN == targetN && c.Length == length
}

// Clone returns a deep copy.
func (c Cache) Clone() Cache {
	return Cache{LastN: c.LastN, Length: c.Length, Hidden: slices.Clone(c.Hidden)}
}

// Stale returns a cache that keeps targetN and length as bookkeeping but
// has no intended vector.
func Stale(targetN, length int) Cache {
	return Cache{LastN: targetN, Length: length}
}

// VisibleStart returns the first position of the visible zone for a
// sequence of length under retention count n. Every position is visible
// when n <= 0 or n >= length.
func VisibleStart(length, n int) int {
	if n > 0 && n < length {
		return length - n
	}
	return 0
}
