package hashtable_test

import (
	"testing"

	"github.com/named-data/icnfwd/internal/hashtable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	tag  uint16
	fast bool
}

func newTable(expiredSet map[int]bool) (*hashtable.HashTable[int, node], *[]int) {
	var evicted []int
	ht := hashtable.New(hashtable.Options[int, node]{
		Hash: func(k int) uint64 { return 0 }, // force every key into the same bucket
		ExpiryTag: func(n node) (uint16, bool) {
			return n.tag, n.fast
		},
		OnEvict: func(k int, n node) {
			evicted = append(evicted, k)
		},
		BucketCount: 1,
	})
	_ = expiredSet
	return ht, &evicted
}

func TestInsertLookupDelete(t *testing.T) {
	ht, _ := newTable(nil)
	require.Equal(t, hashtable.Ok, ht.Insert(1, node{tag: 100, fast: true}))
	require.Equal(t, hashtable.DuplicateKey, ht.Insert(1, node{tag: 200, fast: true}))

	v, ok := ht.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, uint16(100), v.tag)

	assert.Equal(t, hashtable.Removed, ht.Delete(1))
	assert.Equal(t, hashtable.Absent, ht.Delete(1))

	// tombstoned: lookup fails immediately, before any sweep reclaims the slot.
	_, ok = ht.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 0, ht.Len())

	// re-insert with the same key succeeds by reusing the tombstoned slot.
	require.Equal(t, hashtable.Ok, ht.Insert(1, node{tag: 300, fast: true}))
}

func TestOverflowChainAndSweepCompaction(t *testing.T) {
	ht, evicted := newTable(nil)

	// Fill the head bucket (capacity 8) with live entries, then push 4 more
	// into an overflow bucket and mark those expired.
	for k := 0; k < 8; k++ {
		require.Equal(t, hashtable.Ok, ht.Insert(k, node{tag: 1000, fast: true}))
	}
	for k := 8; k < 12; k++ {
		require.Equal(t, hashtable.Ok, ht.Insert(k, node{tag: 1, fast: true}))
	}
	require.Equal(t, 12, ht.Len())

	// now = 999 (fast ticks): the overflow entries (tag 1) are expired, the
	// head entries (tag 1000) are not yet reached.
	ht.SweepBucket(0, 999, 0)

	assert.Equal(t, 8, ht.Len())
	assert.ElementsMatch(t, []int{8, 9, 10, 11}, *evicted)
	for k := 0; k < 8; k++ {
		_, ok := ht.Lookup(k)
		assert.True(t, ok, "key %d should survive the sweep", k)
	}
	for k := 8; k < 12; k++ {
		_, ok := ht.Lookup(k)
		assert.False(t, ok, "key %d should have been evicted", k)
	}
}

func TestSweepCompactsSurvivingOverflowEntryUpward(t *testing.T) {
	ht, evicted := newTable(nil)

	// Head bucket: 8 entries, the first 4 of which will expire.
	for k := 0; k < 4; k++ {
		require.Equal(t, hashtable.Ok, ht.Insert(k, node{tag: 1, fast: true}))
	}
	for k := 4; k < 8; k++ {
		require.Equal(t, hashtable.Ok, ht.Insert(k, node{tag: 1000, fast: true}))
	}
	// One overflow entry that survives.
	require.Equal(t, hashtable.Ok, ht.Insert(8, node{tag: 1000, fast: true}))
	require.Equal(t, 9, ht.Len())

	ht.SweepBucket(0, 999, 0)

	assert.Equal(t, 5, ht.Len())
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, *evicted)
	for _, k := range []int{4, 5, 6, 7, 8} {
		_, ok := ht.Lookup(k)
		assert.True(t, ok, "key %d should have survived and been compacted up", k)
	}
}

func TestDuplicateKeyIgnoresTombstones(t *testing.T) {
	ht, _ := newTable(nil)
	require.Equal(t, hashtable.Ok, ht.Insert(1, node{}))
	require.Equal(t, hashtable.Ok, ht.Insert(2, node{}))
	ht.Delete(1)
	// 1 is tombstoned, not a live duplicate any more.
	require.Equal(t, hashtable.Ok, ht.Insert(1, node{tag: 7}))
	v, ok := ht.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, uint16(7), v.tag)
}
