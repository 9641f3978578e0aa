// Package fib implements the longest-prefix-match Forwarding Information
// Base (spec.md §4.2): a per-length hash table scanned longest-first.
// Grounded on fw/table/fib-strategy_test.go's baseFibStrategyEntry{name,
// nexthops, strategy} field shape, generalized to Go and reusing
// internal/hashtable as the per-length index (FIB entries never expire, so
// its sweep machinery is simply never invoked here).
package fib

import (
	"github.com/cespare/xxhash/v2"

	"github.com/named-data/icnfwd/internal/hashtable"
	"github.com/named-data/icnfwd/internal/name"
	"github.com/named-data/icnfwd/internal/numberset"
)

// Entry is a FIB prefix entry: the set of next-hop connection ids
// registered for Prefix, plus the Strategy capability that picks among
// them for a given Interest (spec.md §9 "Strategy").
type Entry struct {
	Prefix   name.Name
	nexthops *numberset.Set[uint64]
	strategy Strategy
}

// Nexthops returns the registered next-hop connection ids, sorted.
func (e *Entry) Nexthops() []uint64 { return e.nexthops.Items() }

// Strategy returns the entry's forwarding strategy.
func (e *Entry) Strategy() Strategy { return e.strategy }

func neverExpires(*Entry) (uint16, bool) { return 0xFFFF, false }

// Fib is the Forwarding Information Base.
type Fib struct {
	// byLength[k] indexes every registered prefix of exactly k components,
	// keyed by name.FingerprintKey() of that prefix.
	byLength        map[int]*hashtable.HashTable[string, *Entry]
	maxLen          int
	defaultStrategy Strategy
}

// New constructs an empty Fib. defaultStrategy is used for routes added
// without an explicit `set strategy`.
func New(defaultStrategy Strategy) *Fib {
	return &Fib{
		byLength:        make(map[int]*hashtable.HashTable[string, *Entry]),
		defaultStrategy: defaultStrategy,
	}
}

func (f *Fib) tableFor(length int) *hashtable.HashTable[string, *Entry] {
	t, ok := f.byLength[length]
	if !ok {
		t = hashtable.New(hashtable.Options[string, *Entry]{
			Hash:        xxhash.Sum64String,
			ExpiryTag:   neverExpires,
			BucketCount: 64,
		})
		f.byLength[length] = t
		if length > f.maxLen {
			f.maxLen = length
		}
	}
	return t
}

// AddRoute inserts prefix if absent and adds connID to its next-hop set.
// Idempotent: calling it twice with the same (prefix, connID) leaves the
// Fib in the same state as calling it once (spec.md §8 property 5).
func (f *Fib) AddRoute(prefix name.Name, connID uint64) *Entry {
	t := f.tableFor(prefix.Len())
	key := prefix.FingerprintKey()
	if e, ok := t.Lookup(key); ok {
		e.nexthops.Add(connID)
		return e
	}
	e := &Entry{
		Prefix:   prefix,
		nexthops: numberset.New[uint64](connID),
		strategy: f.defaultStrategy,
	}
	t.Insert(key, e)
	return e
}

// RemoveRoute removes connID from prefix's next-hop set, deleting the
// entry entirely if the set becomes empty. Idempotent, like AddRoute.
func (f *Fib) RemoveRoute(prefix name.Name, connID uint64) {
	t, ok := f.byLength[prefix.Len()]
	if !ok {
		return
	}
	key := prefix.FingerprintKey()
	e, ok := t.Lookup(key)
	if !ok {
		return
	}
	e.nexthops.Remove(connID)
	if e.nexthops.Len() == 0 {
		t.Delete(key)
	}
}

// SetStrategy overrides the forwarding strategy for an existing prefix
// entry. A no-op if the prefix isn't registered.
func (f *Fib) SetStrategy(prefix name.Name, s Strategy) {
	t, ok := f.byLength[prefix.Len()]
	if !ok {
		return
	}
	if e, ok := t.Lookup(prefix.FingerprintKey()); ok {
		e.strategy = s
	}
}

// Len returns the total number of registered prefix entries across every
// length's index.
func (f *Fib) Len() int {
	n := 0
	for _, t := range f.byLength {
		n += t.Len()
	}
	return n
}

// Lookup scans from the longest registered prefix of n down to the root
// and returns the first FibEntry found, per spec.md §4.2.
func (f *Fib) Lookup(n name.Name) (*Entry, bool) {
	upper := n.Len()
	if upper > f.maxLen {
		upper = f.maxLen
	}
	for k := upper; k >= 0; k-- {
		t, ok := f.byLength[k]
		if !ok {
			continue
		}
		if e, ok := t.Lookup(n.Prefix(k).FingerprintKey()); ok {
			return e, true
		}
	}
	return nil, false
}
