// Package contentstore implements the bounded, LRU-evicting Content Store
// described in spec.md §4.3. Grounded on
// original_source/metis/content_store/metis_ContentStoreInterface.c for the
// put/match/remove shape, and on the spec's own PIT fingerprint design
// (name / name+keyid / name+hash, consulted in that priority order) for the
// CS's own indices.
//
// Eviction order must be exactly LRU (spec.md §8: "Capacity=3 ... O3
// evicted, not O2" after O2 is promoted by a match) — this rules out a
// probabilistic admission-policy cache like dgraph-io/ristretto (considered
// and rejected; see DESIGN.md), in favor of a plain container/list ring
// plus index maps.
package contentstore

import (
	"container/list"

	"github.com/named-data/icnfwd/internal/clock"
	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/name"
	"github.com/named-data/icnfwd/internal/rc"
)

// PutResult is the outcome of Put.
type PutResult int

const (
	Stored PutResult = iota
	Rejected
)

type entry struct {
	msg          *rc.Ref[*message.Message]
	created      clock.Ticks
	expiry       clock.Ticks
	hasExpiry    bool
	cacheTime    clock.Ticks
	hasCacheTime bool

	// keys this entry is indexed under, so Remove/evict can clean every
	// side index without recomputing them.
	nameKey   string
	keyIDKey  string
	hashKey   string
	hasKeyID  bool
}

// ContentStore is a bounded, name-indexed LRU cache of ContentObjects.
type ContentStore struct {
	capacity int
	lru      *list.List // front = most recently used
	byName   map[string]*list.Element
	byKeyID  map[string]*list.Element
	byHash   map[string]*list.Element
}

// New constructs an empty ContentStore with the given entry-count capacity.
func New(capacity int) *ContentStore {
	return &ContentStore{
		capacity: capacity,
		lru:      list.New(),
		byName:   make(map[string]*list.Element),
		byKeyID:  make(map[string]*list.Element),
		byHash:   make(map[string]*list.Element),
	}
}

// Len returns the number of entries currently cached.
func (cs *ContentStore) Len() int { return cs.lru.Len() }

// Capacity returns the current entry-count capacity.
func (cs *ContentStore) Capacity() int { return cs.capacity }

// SetCapacity changes the store's capacity, per spec.md §6's `cache size
// N` control verb, evicting from the LRU tail immediately if the new
// capacity is smaller than the current occupancy.
func (cs *ContentStore) SetCapacity(capacity int) {
	cs.capacity = capacity
	for cs.capacity >= 0 && cs.lru.Len() > cs.capacity {
		cs.evictTail()
	}
}

func keyIDKey(nameKey string, keyID []byte) string {
	return nameKey + "\x00kid\x00" + string(keyID)
}

func hashKey(nameKey string, hash []byte) string {
	return nameKey + "\x00hash\x00" + string(hash)
}

// Put inserts object into the store, prepending it to the LRU head and
// evicting the LRU tail if capacity is now exceeded. A re-Put of the same
// name replaces the prior entry. Rejected is returned only when capacity
// is zero, i.e. a single object can never fit (spec.md §4.3).
func (cs *ContentStore) Put(objRef *rc.Ref[*message.Message], now clock.Ticks) PutResult {
	if cs.capacity <= 0 {
		return Rejected
	}
	obj := objRef.Get()
	nameKey := obj.Name.FingerprintKey()

	if old, ok := cs.byName[nameKey]; ok {
		cs.removeElement(old)
	}

	e := &entry{
		msg:          objRef,
		created:      now,
		expiry:       obj.ExpiryTime,
		hasExpiry:    obj.HasExpiry,
		cacheTime:    obj.CacheTime,
		hasCacheTime: obj.HasCacheTime,
		nameKey:      nameKey,
	}
	el := cs.lru.PushFront(e)
	cs.byName[nameKey] = el

	if len(obj.KeyLocator) > 0 {
		e.hasKeyID = true
		e.keyIDKey = keyIDKey(nameKey, obj.KeyLocator)
		cs.byKeyID[e.keyIDKey] = el
	}
	e.hashKey = hashKey(nameKey, obj.ObjectHash())
	cs.byHash[e.hashKey] = el

	cs.sweepExpiredLocked(now)
	for cs.lru.Len() > cs.capacity {
		cs.evictTail()
	}
	return Stored
}

// MatchInterest returns the first entry matching interest's name (refined
// by its keyid/hash restriction, if any) that has not expired at now,
// promoting it to the LRU head. A CsEntry that matches but is expired is
// treated as a miss, never returned (spec.md §4.3 invariant: "no entry is
// simultaneously expired and reachable from matchInterest").
func (cs *ContentStore) MatchInterest(interestName name.Name, restriction message.Restriction, now clock.Ticks) (*rc.Ref[*message.Message], bool) {
	nameKey := interestName.FingerprintKey()

	var el *list.Element
	var ok bool
	switch {
	case restriction.HasObjectHash():
		el, ok = cs.byHash[hashKey(nameKey, restriction.ObjectHash)]
	case restriction.HasKeyID():
		el, ok = cs.byKeyID[keyIDKey(nameKey, restriction.KeyID)]
	default:
		el, ok = cs.byName[nameKey]
	}
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if e.hasExpiry && now >= e.expiry {
		return nil, false
	}
	cs.lru.MoveToFront(el)
	return e.msg, true
}

// Remove evicts the entry for name, if any (best-effort).
func (cs *ContentStore) Remove(n name.Name) {
	if el, ok := cs.byName[n.FingerprintKey()]; ok {
		cs.removeElement(el)
	}
}

// SweepExpired evicts every entry whose declared expiry precedes now.
func (cs *ContentStore) SweepExpired(now clock.Ticks) {
	cs.sweepExpiredLocked(now)
}

func (cs *ContentStore) sweepExpiredLocked(now clock.Ticks) {
	var next *list.Element
	for el := cs.lru.Front(); el != nil; el = next {
		next = el.Next()
		e := el.Value.(*entry)
		if e.hasExpiry && now >= e.expiry {
			cs.removeElement(el)
		}
	}
}

func (cs *ContentStore) evictTail() {
	if back := cs.lru.Back(); back != nil {
		cs.removeElement(back)
	}
}

func (cs *ContentStore) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(cs.byName, e.nameKey)
	if e.hasKeyID {
		delete(cs.byKeyID, e.keyIDKey)
	}
	delete(cs.byHash, e.hashKey)
	cs.lru.Remove(el)
}
