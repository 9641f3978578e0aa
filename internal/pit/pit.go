// Package pit implements the Pending Interest Table described in spec.md
// §4.4: three parallel hash-table indices over the name / name+keyid /
// name+hash fingerprint flavors, reverse-path (ingress) and forwarded-to
// (egress) connection-id sets per entry, and opportunistic tick-driven
// expiry via internal/hashtable's sweep.
//
// Grounded on original_source/metis/processor/metis_PitEntry.c for the
// entry shape (ingress/egress NumberSets, a cached FibEntry, Acquire/
// Release refcounting) and on fw/table/pit-cs_test.go for the
// insert/match/satisfy operation names.
package pit

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/named-data/icnfwd/internal/clock"
	"github.com/named-data/icnfwd/internal/fib"
	"github.com/named-data/icnfwd/internal/hashtable"
	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/numberset"
	"github.com/named-data/icnfwd/internal/rc"
)

// Result is the outcome of ReceiveInterest.
type Result int

const (
	// Forward: an entry existed and the ingress connection had already
	// registered — the producer may have
	// failed to answer an earlier copy, so this Interest should be
	// re-forwarded per strategy.
	Forward Result = iota
	// Aggregate: an entry existed and the ingress connection is new to
	// its ingress set; suppress forwarding.
	Aggregate
	// Miss: no entry existed; one was created.
	Miss
)

func (r Result) String() string {
	switch r {
	case Forward:
		return "forward"
	case Aggregate:
		return "aggregate"
	case Miss:
		return "miss"
	default:
		return "unknown"
	}
}

// Entry is a PitEntry: the original Interest, the set of connections
// awaiting a response (ingress) and already forwarded to (egress), and a
// write-once snapshot of the FibEntry consulted when the entry was
// created.
//
// spec.md §9 leaves undefined whether a retransmission should follow a
// PIT entry's original FibEntry snapshot or a concurrently mutated one;
// this implementation resolves it as write-once (see DESIGN.md): the
// snapshot set here at Miss time never changes for the entry's lifetime,
// grounded on metisPitEntry_AddFibEntry's already-set guard.
type Entry struct {
	interest *rc.Ref[*message.Message]
	ingress  *numberset.Set[uint64]
	egress   *numberset.Set[uint64]
	fibEntry *fib.Entry
	created  clock.Ticks
	expiry   clock.Ticks
	fast     bool
	tag      uint16

	nameKey  string
	keyIDKey string
	hasKeyID bool
	hashKey  string
	hasHash  bool

	removed bool
}

// Interest returns the entry's original Interest message.
func (e *Entry) Interest() *message.Message { return e.interest.Get() }

// IngressSet returns the connection ids awaiting a response.
func (e *Entry) IngressSet() []uint64 { return e.ingress.Items() }

// EgressSet returns the connection ids this Interest has already been
// forwarded to.
func (e *Entry) EgressSet() []uint64 { return e.egress.Items() }

// FibEntry returns the FIB snapshot taken when this entry was created.
func (e *Entry) FibEntry() *fib.Entry { return e.fibEntry }

// AddEgress records that the Interest was forwarded to connID, for the
// egress-set de-dup rule (spec.md §4.5).
func (e *Entry) AddEgress(connID uint64) { e.egress.Add(connID) }

func fingerprintKeyID(nameKey string, keyID []byte) string {
	return nameKey + "\x00kid\x00" + string(keyID)
}

func fingerprintHash(nameKey string, hash []byte) string {
	return nameKey + "\x00hash\x00" + string(hash)
}

func expiryTagOf(e *Entry) (uint16, bool) { return e.tag, e.fast }

// Pit is the Pending Interest Table.
type Pit struct {
	byName  *hashtable.HashTable[string, *Entry]
	byKeyID *hashtable.HashTable[string, *Entry]
	byHash  *hashtable.HashTable[string, *Entry]
	buckets uint64
	live    map[*Entry]struct{}
}

// New constructs an empty Pit. bucketCount sizes each of the three
// parallel indices independently.
func New(bucketCount uint64) *Pit {
	p := &Pit{buckets: bucketCount, live: make(map[*Entry]struct{})}
	p.byName = hashtable.New(hashtable.Options[string, *Entry]{
		Hash: xxhash.Sum64String, ExpiryTag: expiryTagOf, BucketCount: bucketCount,
		OnEvict: func(_ string, e *Entry) { p.detach(e) },
	})
	p.byKeyID = hashtable.New(hashtable.Options[string, *Entry]{
		Hash: xxhash.Sum64String, ExpiryTag: expiryTagOf, BucketCount: bucketCount,
		OnEvict: func(_ string, e *Entry) { p.detach(e) },
	})
	p.byHash = hashtable.New(hashtable.Options[string, *Entry]{
		Hash: xxhash.Sum64String, ExpiryTag: expiryTagOf, BucketCount: bucketCount,
		OnEvict: func(_ string, e *Entry) { p.detach(e) },
	})
	return p
}

// detach removes e from whichever indices it is still registered in and
// releases its Interest reference. Idempotent: the first call does the
// work, later calls (the index being explicitly Deleted from within this
// very function) are no-ops.
func (p *Pit) detach(e *Entry) {
	if e.removed {
		return
	}
	e.removed = true
	if !e.hasKeyID && !e.hasHash {
		p.byName.Delete(e.nameKey)
	}
	if e.hasKeyID {
		p.byKeyID.Delete(e.keyIDKey)
	}
	if e.hasHash {
		p.byHash.Delete(e.hashKey)
	}
	delete(p.live, e)
	e.interest.Release()
}

// Lifetimes bundles the configured bounds ReceiveInterest uses to compute
// a new entry's expiry (spec.md §4.4: "lifetime = min(Interest lifetime,
// configured max, current now + configured default)").
type Lifetimes struct {
	Default time.Duration
	Max     time.Duration
}

// ReceiveInterest processes an arriving Interest per spec.md §4.4.
func (p *Pit) ReceiveInterest(interestRef *rc.Ref[*message.Message], now clock.Ticks, lt Lifetimes, f *fib.Fib, clk *clock.Clock) (Result, *Entry) {
	msg := interestRef.Get()
	nameKey := msg.Name.FingerprintKey()

	var key string
	var table *hashtable.HashTable[string, *Entry]
	switch {
	case msg.Restriction.HasObjectHash():
		key = fingerprintHash(nameKey, msg.Restriction.ObjectHash)
		table = p.byHash
	case msg.Restriction.HasKeyID():
		key = fingerprintKeyID(nameKey, msg.Restriction.KeyID)
		table = p.byKeyID
	default:
		key = nameKey
		table = p.byName
	}

	if e, ok := table.Lookup(key); ok {
		alreadyIngress := e.ingress.Contains(msg.Ingress)
		e.ingress.Add(msg.Ingress)
		if alreadyIngress {
			return Forward, e
		}
		return Aggregate, e
	}

	lifetime := time.Duration(msg.Lifetime) * time.Millisecond
	if lifetime <= 0 || lifetime > lt.Default {
		lifetime = lt.Default
	}
	if lifetime > lt.Max {
		lifetime = lt.Max
	}

	fibEntry, _ := f.Lookup(msg.Name)

	e := &Entry{
		interest: interestRef.Acquire(),
		ingress:  numberset.New[uint64](msg.Ingress),
		egress:   numberset.New[uint64](),
		fibEntry: fibEntry,
		created:  now,
		expiry:   now + clock.TicksFromDuration(lifetime),
		nameKey:  nameKey,
	}
	e.fast = clock.UsesFastTimer(lifetime)
	if e.fast {
		e.tag = clock.FastExpiryTag(clk.FastTimer(), lifetime)
	} else {
		e.tag = clock.SlowExpiryTag(clk.SlowTimer(), lifetime)
	}

	switch table {
	case p.byHash:
		e.hasHash = true
		e.hashKey = key
	case p.byKeyID:
		e.hasKeyID = true
		e.keyIDKey = key
	}
	table.Insert(key, e)
	p.live[e] = struct{}{}

	return Miss, e
}

// SatisfyInterest looks up every PIT entry that obj can satisfy (its
// name, unconditionally; its name+keyid if signed by that keyid; its
// name+hash, always, since a ContentObject's own hash always equals
// ObjectHash()) and returns the union of their ingress sets, removing
// each matched entry from every index it was registered under. Per
// spec.md §4.4, a single ContentObject may satisfy more than one entry.
func (p *Pit) SatisfyInterest(objRef *rc.Ref[*message.Message]) []uint64 {
	obj := objRef.Get()
	nameKey := obj.Name.FingerprintKey()

	var ingress []uint64
	seen := make(map[*Entry]bool, 2)

	collect := func(e *Entry, ok bool) {
		if !ok || seen[e] {
			return
		}
		seen[e] = true
		ingress = append(ingress, e.ingress.Items()...)
	}

	if e, ok := p.byName.Lookup(nameKey); ok {
		collect(e, ok)
	}
	if len(obj.KeyLocator) > 0 {
		if e, ok := p.byKeyID.Lookup(fingerprintKeyID(nameKey, obj.KeyLocator)); ok {
			collect(e, ok)
		}
	}
	if e, ok := p.byHash.Lookup(fingerprintHash(nameKey, obj.ObjectHash())); ok {
		collect(e, ok)
	}

	for e := range seen {
		p.detach(e)
	}
	return ingress
}

// ExpireTick runs the opportunistic sweep for the bucket that hash selects
// in each of the three indices, driven by the Dispatcher per
// spec.md §4.4. Callers typically drive this once per fast/slow timer
// tick across every live bucket index, not just one name's.
func (p *Pit) ExpireTick(hash uint64, fastNow, slowNow uint16) {
	p.byName.SweepBucket(hash, fastNow, slowNow)
	p.byKeyID.SweepBucket(hash, fastNow, slowNow)
	p.byHash.SweepBucket(hash, fastNow, slowNow)
}

// BucketCount returns the configured per-index bucket count, so a
// Dispatcher driving sweeps can enumerate all bucket hashes.
func (p *Pit) BucketCount() uint64 { return p.buckets }

// RemoveIngress strips connID from every live entry's ingress set
// (Connection teardown, spec.md §8 scenario): an entry whose ingress set
// becomes empty as a result is removed entirely.
func (p *Pit) RemoveIngress(connID uint64) {
	for e := range p.live {
		e.ingress.Remove(connID)
		if e.ingress.Len() == 0 {
			p.detach(e)
		}
	}
}

// Len returns the number of live PIT entries (counted once regardless of
// how many of the three indices it is registered under).
func (p *Pit) Len() int { return len(p.live) }
