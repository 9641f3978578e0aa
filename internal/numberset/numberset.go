// Package numberset implements a small generic sorted set of connection
// ids, used by PitEntry for its ingress/egress sets and by FibEntry for its
// next-hop set. Grounded on the original Metis forwarder's MetisNumberSet
// (metis_PitEntry.c: ingressIdSet/egressIdSet), generalized to Go generics
// the way this codebase's lockfree.Queue[T]/arc.ArcPool[T] generalize their
// C counterparts.
package numberset

import (
	"slices"

	"golang.org/x/exp/constraints"
)

// Set is a small sorted set of an ordered id type. It favors a flat sorted
// slice over a map: connection/PIT ingress-egress sets are typically tiny
// (single digits), so linear/binary search on a slice beats map overhead
// and keeps iteration order deterministic for tests.
type Set[T constraints.Ordered] struct {
	items []T
}

// New constructs a Set containing the given ids.
func New[T constraints.Ordered](items ...T) *Set[T] {
	s := &Set[T]{}
	for _, it := range items {
		s.Add(it)
	}
	return s
}

// Add inserts id if not already present. Returns true if it was newly
// added.
func (s *Set[T]) Add(id T) bool {
	i, found := slices.BinarySearch(s.items, id)
	if found {
		return false
	}
	s.items = slices.Insert(s.items, i, id)
	return true
}

// Remove deletes id if present. Returns true if it was present.
func (s *Set[T]) Remove(id T) bool {
	i, found := slices.BinarySearch(s.items, id)
	if !found {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true
}

// Contains reports whether id is a member.
func (s *Set[T]) Contains(id T) bool {
	_, found := slices.BinarySearch(s.items, id)
	return found
}

// Len returns the number of members.
func (s *Set[T]) Len() int { return len(s.items) }

// Items returns the members in sorted order. Callers must not mutate the
// returned slice.
func (s *Set[T]) Items() []T { return s.items }

// Clone returns a deep copy.
func (s *Set[T]) Clone() *Set[T] {
	return &Set[T]{items: slices.Clone(s.items)}
}

// Minus returns the members of s that are not in other, preserving sorted
// order (used by spec.md §8 property 4: "forwarded to every member of
// e.ingressSet \ {O.ingress}").
func (s *Set[T]) Minus(other T) []T {
	out := make([]T, 0, len(s.items))
	for _, it := range s.items {
		if it != other {
			out = append(out, it)
		}
	}
	return out
}
