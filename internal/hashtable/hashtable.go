// Package hashtable implements the generic open-addressed table described
// in spec.md §4.1: power-of-two bucket count, in-bucket chaining with
// pool-allocated overflow buckets, deferred (tombstone) deletion, and an
// opportunistic sweep that evicts expired entries and compacts overflow
// chains.
//
// The original Metis/CCNx forwarder this spec was distilled from unions an
// entry slot with an overflow pointer to save memory (spec.md: "the last
// entry is repurposed as an overflow pointer"). Go has no portable union
// type, so this implementation keeps the overflow pointer in a separate
// field of the bucket struct; the externally observable behavior — bucket
// capacity, chaining, and the post-sweep compaction invariant — is
// unchanged.
package hashtable

import (
	"golang.org/x/exp/constraints"

	"github.com/named-data/icnfwd/internal/clock"
)

// BucketCapacity is the number of entry slots per bucket before an
// overflow bucket is chained, matching the spec's "implementation constant,
// e.g. 8".
const BucketCapacity = 8

// InsertResult is the outcome of Insert.
type InsertResult int

const (
	Ok InsertResult = iota
	DuplicateKey
	AllocFailed
)

// DeleteResult is the outcome of Delete.
type DeleteResult int

const (
	Removed DeleteResult = iota
	Absent
)

type slot[K comparable, V any] struct {
	present    bool
	tombstoned bool
	key        K
	node       V
}

type bucket[K comparable, V any] struct {
	slots    [BucketCapacity]slot[K, V]
	overflow *bucket[K, V]
}

func (b *bucket[K, V]) isEmpty() bool {
	for i := range b.slots {
		if b.slots[i].present {
			return false
		}
	}
	return true
}

// Options configures a HashTable. Hash, ExpiryTag and BucketCount are
// required; OnEvict is optional.
type Options[K comparable, V any] struct {
	// Hash computes the bucket-selection hash of a key.
	Hash func(K) uint64
	// ExpiryTag extracts an entry's compressed expiry tag and whether it
	// uses the fast (1s) or slow (60s) timer, per spec.md §3/§9.
	ExpiryTag func(V) (tag uint16, fast bool)
	// OnEvict is invoked whenever an entry leaves the table, whether by
	// explicit Delete or by an opportunistic sweep, so the owning table
	// (PIT/CS) can update side indices and release its reference.
	OnEvict func(K, V)
	// BucketCount must be a power of two.
	BucketCount uint64
}

// HashTable is a generic, single-threaded (spec.md §5) open-addressed map.
type HashTable[K comparable, V any] struct {
	buckets   []bucket[K, V]
	mask      uint64
	hashOf    func(K) uint64
	tagOf     func(V) (uint16, bool)
	onEvict   func(K, V)
	count     int
	freeList  []*bucket[K, V] // small-object pool for overflow buckets
}

// New constructs a HashTable. opts.BucketCount is rounded up to the next
// power of two if it isn't one already.
func New[K comparable, V any](opts Options[K, V]) *HashTable[K, V] {
	n := nextPowerOfTwo(opts.BucketCount)
	if n == 0 {
		n = 1
	}
	return &HashTable[K, V]{
		buckets: make([]bucket[K, V], n),
		mask:    n - 1,
		hashOf:  opts.Hash,
		tagOf:   opts.ExpiryTag,
		onEvict: opts.OnEvict,
	}
}

func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Len returns the number of present, non-tombstoned entries.
func (h *HashTable[K, V]) Len() int { return h.count }

func (h *HashTable[K, V]) bucketFor(hash uint64) *bucket[K, V] {
	return &h.buckets[hash&h.mask]
}

// getOverflow pops a reusable bucket from the pool, or allocates a fresh
// one. This is the "small-object pool backs overflow buckets" behavior
// from spec.md §5.
func (h *HashTable[K, V]) getOverflow() *bucket[K, V] {
	if n := len(h.freeList); n > 0 {
		b := h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		*b = bucket[K, V]{}
		return b
	}
	return &bucket[K, V]{}
}

func (h *HashTable[K, V]) putOverflow(b *bucket[K, V]) {
	h.freeList = append(h.freeList, b)
}

// Insert places node under key. Duplicate keys (ignoring tombstoned slots)
// are rejected. Allocation failure on overflow-bucket creation cannot
// happen in this Go implementation (the pool always succeeds or the
// runtime allocator panics), but AllocFailed is retained in the result
// type to preserve the spec's documented failure semantics for callers
// that want to treat it specially.
func (h *HashTable[K, V]) Insert(key K, node V) InsertResult {
	hash := h.hashOf(key)
	b := h.bucketFor(hash)

	var freeSlot *slot[K, V]
	for {
		for i := range b.slots {
			s := &b.slots[i]
			if s.present && !s.tombstoned && s.key == key {
				return DuplicateKey
			}
			if freeSlot == nil && (!s.present || s.tombstoned) {
				freeSlot = s
			}
		}
		if b.overflow == nil {
			break
		}
		b = b.overflow
	}

	if freeSlot == nil {
		// Bucket chain full: extend with a pool-allocated overflow bucket.
		ob := h.getOverflow()
		b.overflow = ob
		freeSlot = &ob.slots[0]
	}

	*freeSlot = slot[K, V]{present: true, key: key, node: node}
	h.count++
	return Ok
}

// Lookup walks the bucket chain for key, skipping tombstoned entries.
func (h *HashTable[K, V]) Lookup(key K) (V, bool) {
	hash := h.hashOf(key)
	b := h.bucketFor(hash)
	for b != nil {
		for i := range b.slots {
			s := &b.slots[i]
			if s.present && !s.tombstoned && s.key == key {
				return s.node, true
			}
		}
		b = b.overflow
	}
	var zero V
	return zero, false
}

// Delete marks key's entry tombstoned and invokes OnEvict so the owner can
// drop its reference. The slot itself is not reclaimed until a subsequent
// sweep, so pointer-stable iteration elsewhere in the same tick remains
// safe (spec.md §9 "Deferred deletion").
func (h *HashTable[K, V]) Delete(key K) DeleteResult {
	hash := h.hashOf(key)
	b := h.bucketFor(hash)
	for b != nil {
		for i := range b.slots {
			s := &b.slots[i]
			if s.present && !s.tombstoned && s.key == key {
				s.tombstoned = true
				h.count--
				if h.onEvict != nil {
					h.onEvict(s.key, s.node)
				}
				return Removed
			}
		}
		b = b.overflow
	}
	return Absent
}

func (h *HashTable[K, V]) expired(node V, fastNow, slowNow uint16) bool {
	tag, fast := h.tagOf(node)
	if fast {
		return clock.SeqGreaterOrEqual(fastNow, tag)
	}
	return clock.SeqGreaterOrEqual(slowNow, tag)
}

// SweepBucket runs the opportunistic expiry pass for the bucket that hash
// maps to: it evicts present entries whose expiry tag the current fast/slow
// timer has reached, i.e. tag at or before the timer (calling OnEvict for
// each), reclaims tombstoned slots,
// and recursively compacts the overflow chain bottom-up per spec.md §4.1.
func (h *HashTable[K, V]) SweepBucket(hash uint64, fastNow, slowNow uint16) {
	h.sweepChain(h.bucketFor(hash), fastNow, slowNow)
}

func (h *HashTable[K, V]) sweepChain(b *bucket[K, V], fastNow, slowNow uint16) {
	if b.overflow != nil {
		h.sweepChain(b.overflow, fastNow, slowNow)
	}

	h.evictExpired(b, fastNow, slowNow)
	h.reclaimTombstones(b)
	h.repack(b)

	if b.overflow != nil {
		h.compactUp(b, b.overflow)
		if b.overflow.isEmpty() {
			h.putOverflow(b.overflow)
			b.overflow = nil
		}
	}
}

func (h *HashTable[K, V]) evictExpired(b *bucket[K, V], fastNow, slowNow uint16) {
	for i := range b.slots {
		s := &b.slots[i]
		if s.present && !s.tombstoned && h.expired(s.node, fastNow, slowNow) {
			if h.onEvict != nil {
				h.onEvict(s.key, s.node)
			}
			// A Delete of this key from within OnEvict has already
			// tombstoned the slot and counted it out.
			if !s.tombstoned {
				h.count--
			}
			*s = slot[K, V]{}
		}
	}
}

func (h *HashTable[K, V]) reclaimTombstones(b *bucket[K, V]) {
	for i := range b.slots {
		if b.slots[i].tombstoned {
			b.slots[i] = slot[K, V]{}
		}
	}
}

// repack moves present entries to the front of the bucket's slot array so
// there is no empty slot between two present slots, per spec.md §8
// property 6.
func (h *HashTable[K, V]) repack(b *bucket[K, V]) {
	w := 0
	for r := range b.slots {
		if b.slots[r].present {
			if w != r {
				b.slots[w] = b.slots[r]
				b.slots[r] = slot[K, V]{}
			}
			w++
		}
	}
}

// compactUp moves as many present entries from child into parent's empty
// slots as fit, per spec.md §4.1 ("entries from the child bucket are
// copied up into empty slots in the parent").
func (h *HashTable[K, V]) compactUp(parent, child *bucket[K, V]) {
	pi := 0
	for ci := range child.slots {
		cs := &child.slots[ci]
		if !cs.present {
			continue
		}
		for pi < len(parent.slots) && parent.slots[pi].present {
			pi++
		}
		if pi >= len(parent.slots) {
			return
		}
		parent.slots[pi] = *cs
		*cs = slot[K, V]{}
		pi++
	}
}

// Ordered is re-exported for callers that build keys composed of ordered
// components (e.g. numberset ids used as map keys elsewhere).
type Ordered = constraints.Ordered
