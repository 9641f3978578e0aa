// Package name implements the hierarchical, hashable Name used to key the
// FIB, PIT and Content Store.
package name

import (
	"bytes"
	"encoding/binary"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Component is a single opaque segment of a Name.
type Component struct {
	Val []byte
}

// NewComponent copies b into a new Component.
func NewComponent(b []byte) Component {
	return Component{Val: slices.Clone(b)}
}

// Equal reports whether two components have identical bytes.
func (c Component) Equal(o Component) bool {
	return bytes.Equal(c.Val, o.Val)
}

func (c Component) String() string {
	return string(c.Val)
}

// Name is an ordered, immutable sequence of opaque byte segments. Names are
// constructed once and shared by reference; the per-prefix hash cache makes
// repeated hash-table lookups on sub-prefixes of a long name cheap.
type Name struct {
	comps  []Component
	hashes []uint64 // hashes[k-1] = hash of comps[0:k], for k = 1..len(comps)
}

// New builds a Name from already-split components.
func New(comps ...Component) Name {
	n := Name{comps: slices.Clone(comps)}
	n.hashes = make([]uint64, len(n.comps))
	d := xxhash.New()
	for i, c := range n.comps {
		writeComponent(d, c)
		n.hashes[i] = d.Sum64()
	}
	return n
}

// FromString parses a slash-separated URI-style name, e.g. "/a/b/c". A
// leading and/or trailing slash is optional; empty segments are dropped.
func FromString(s string) Name {
	parts := strings.Split(s, "/")
	comps := make([]Component, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		comps = append(comps, NewComponent([]byte(p)))
	}
	return New(comps...)
}

func writeComponent(d *xxhash.Digest, c Component) {
	var lenBuf [4]byte
	lenBuf[0] = byte(len(c.Val))
	lenBuf[1] = byte(len(c.Val) >> 8)
	lenBuf[2] = byte(len(c.Val) >> 16)
	lenBuf[3] = byte(len(c.Val) >> 24)
	d.Write(lenBuf[:])
	d.Write(c.Val)
}

// Len returns the number of components.
func (n Name) Len() int { return len(n.comps) }

// At returns the k-th component.
func (n Name) At(k int) Component { return n.comps[k] }

// Components returns the underlying component slice. Callers must not
// mutate it; Names are meant to be immutable after construction.
func (n Name) Components() []Component { return n.comps }

// Prefix returns the first k components as a new Name, reusing the cached
// hash for that prefix length.
func (n Name) Prefix(k int) Name {
	if k > len(n.comps) {
		k = len(n.comps)
	}
	return Name{comps: n.comps[:k], hashes: n.hashes[:k]}
}

// Hash returns the hash of the full name.
func (n Name) Hash() uint64 {
	return n.HashPrefix(len(n.comps))
}

// HashPrefix returns the hash of the first k components, precomputed by
// New for every k (a Prefix(k) shares the parent name's hashes); k <= 0
// yields the hash of the empty name.
func (n Name) HashPrefix(k int) uint64 {
	if k <= 0 {
		return emptyHash
	}
	return n.hashes[k-1]
}

var emptyHash = func() uint64 {
	return xxhash.New().Sum64()
}()

// Equal reports exact, full-length, segment-wise equality.
func (n Name) Equal(o Name) bool {
	if len(n.comps) != len(o.comps) {
		return false
	}
	for i := range n.comps {
		if !n.comps[i].Equal(o.comps[i]) {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether n equals o's first n.Len() components, i.e.
// "for some k, A[0..k] == B[0..k]" with A = n, k = len(n).
func (n Name) IsPrefixOf(o Name) bool {
	if n.Len() > o.Len() {
		return false
	}
	for i := 0; i < n.Len(); i++ {
		if !n.comps[i].Equal(o.comps[i]) {
			return false
		}
	}
	return true
}

// FingerprintKey returns a length-prefixed binary encoding of n suitable as
// a comparable map key (a Name's component slice isn't itself comparable
// with ==). Unlike String(), it cannot conflate a single component
// containing a slash with two components split on it, which matters for
// the exactness the PIT/CS/FIB fingerprint lookups require.
func (n Name) FingerprintKey() string {
	var buf []byte
	var lenBuf [4]byte
	for _, c := range n.comps {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(c.Val)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, c.Val...)
	}
	return string(buf)
}

func (n Name) String() string {
	sb := strings.Builder{}
	for _, c := range n.comps {
		sb.WriteByte('/')
		sb.WriteString(c.String())
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}
