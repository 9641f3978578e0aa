// Package message implements the parsed, immutable, refcounted packet
// representation (spec.md §3 Message) that the MessageProcessor pipeline
// operates on. Encoding/decoding to wire bytes is explicitly out of scope
// (spec.md §1 non-goals); a Message here is always already parsed.
package message

import (
	"golang.org/x/crypto/sha3"

	"github.com/named-data/icnfwd/internal/clock"
	"github.com/named-data/icnfwd/internal/name"
	"github.com/named-data/icnfwd/internal/rc"
)

// Kind classifies a Message.
type Kind int

const (
	Interest Kind = iota
	ContentObject
	Control
)

func (k Kind) String() string {
	switch k {
	case Interest:
		return "interest"
	case ContentObject:
		return "content-object"
	case Control:
		return "control"
	default:
		return "unknown"
	}
}

// Restriction narrows an Interest's match to ContentObjects signed by a
// specific keyid, or to the single ContentObject with a specific content
// hash (spec.md §3 "PIT fingerprint").
type Restriction struct {
	KeyID      []byte
	ObjectHash []byte
}

// HasKeyID reports whether a keyid restriction is present.
func (r Restriction) HasKeyID() bool { return len(r.KeyID) > 0 }

// HasObjectHash reports whether a content-object-hash restriction is
// present.
func (r Restriction) HasObjectHash() bool { return len(r.ObjectHash) > 0 }

// Message is immutable after construction and shared by reference via
// *rc.Ref[*Message].
type Message struct {
	Kind Kind
	Name name.Name

	// Interest-only.
	Restriction Restriction
	Lifetime    uint32 // milliseconds
	HopLimit    uint8

	// ContentObject-only. HasExpiry / HasCacheTime say whether ExpiryTime /
	// CacheTime were declared; their zero values carry no such meaning.
	ExpiryTime  clock.Ticks
	HasExpiry   bool
	CacheTime   clock.Ticks
	HasCacheTime bool
	KeyLocator  []byte // the keyid of the signer, for keyid-restriction matching

	// Control-only: the raw control verb line/frame, interpreted by
	// internal/config and internal/ctrlsock.
	ControlVerb string

	Payload  []byte
	Ingress  uint64
	Created  clock.Ticks
}

// ObjectHash returns the sha3-256 digest of the payload, used for the
// content-object-hash PIT/CS fingerprint. This is a digest computation
// only, never a signature verification (explicit non-goal).
func (m *Message) ObjectHash() []byte {
	sum := sha3.Sum256(m.Payload)
	return sum[:]
}

// IsExpired reports whether a ContentObject is expired at now, per
// spec.md §6: "a ContentObject is considered expired if the current
// wall-clock millisecond is >= its declared expiry".
func (m *Message) IsExpired(now clock.Ticks) bool {
	return m.HasExpiry && now >= m.ExpiryTime
}

// NewInterest constructs a refcounted Interest Message with an initial
// refcount of 1.
func NewInterest(n name.Name, restriction Restriction, lifetimeMs uint32, hopLimit uint8, ingress uint64, created clock.Ticks) *rc.Ref[*Message] {
	return rc.New(&Message{
		Kind:        Interest,
		Name:        n,
		Restriction: restriction,
		Lifetime:    lifetimeMs,
		HopLimit:    hopLimit,
		Ingress:     ingress,
		Created:     created,
	}, nil)
}

// NewContentObject constructs a refcounted ContentObject Message.
func NewContentObject(n name.Name, payload, keyLocator []byte, expiry clock.Ticks, hasExpiry bool, cacheTime clock.Ticks, hasCacheTime bool, ingress uint64, created clock.Ticks) *rc.Ref[*Message] {
	return rc.New(&Message{
		Kind:         ContentObject,
		Name:         n,
		Payload:      payload,
		KeyLocator:   keyLocator,
		ExpiryTime:   expiry,
		HasExpiry:    hasExpiry,
		CacheTime:    cacheTime,
		HasCacheTime: hasCacheTime,
		Ingress:      ingress,
		Created:      created,
	}, nil)
}

// NewControl constructs a refcounted Control Message carrying a single
// verb line/frame.
func NewControl(verb string, ingress uint64, created clock.Ticks) *rc.Ref[*Message] {
	return rc.New(&Message{
		Kind:        Control,
		ControlVerb: verb,
		Ingress:     ingress,
		Created:     created,
	}, nil)
}
