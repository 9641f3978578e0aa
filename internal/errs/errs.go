// Package errs implements the closed error taxonomy of spec.md §7: each
// category maps to a distinct forwarder-wide disposition (silent drop,
// drop-and-log, drop-with-optional-NACK, connection teardown, or abort),
// decided exclusively by internal/processor — "nothing above the
// MessageProcessor sees packet-level errors".
//
// Grounded on the teacher's sentinel-error style (defn.ErrNotCanonical and
// friends: package-level `var Err... = errors.New(...)`), generalized to a
// Category type so internal/processor and internal/logging can switch on
// disposition without string-matching error text.
package errs

import "errors"

// Category classifies a forwarder error per spec.md §7.
type Category int

const (
	// InputMalformed: unparseable packet. Drop silently, increment a
	// per-connection counter.
	InputMalformed Category = iota
	// ResourceExhausted: hash-table bucket chain exhausted, overflow pool
	// empty, connection-table full. Drop the packet, log at warning, do
	// not tear down the connection.
	ResourceExhausted
	// PolicyDenied: hop-limit zero at forward, route absent. Drop and
	// optionally send a NACK per configuration.
	PolicyDenied
	// PeerClosed: connection's socket reports EOF/EPIPE. Tear down the
	// connection, emit ConnectionDestroyed, sweep orphaned PIT entries.
	PeerClosed
	// FatalInternal: invariant violated (e.g. release of a zero-refcount
	// object). Abort.
	FatalInternal
)

func (c Category) String() string {
	switch c {
	case InputMalformed:
		return "input-malformed"
	case ResourceExhausted:
		return "resource-exhausted"
	case PolicyDenied:
		return "policy-denied"
	case PeerClosed:
		return "peer-closed"
	case FatalInternal:
		return "fatal-internal"
	default:
		return "unknown"
	}
}

// Error is a tagged forwarder error: a Category plus the underlying cause.
type Error struct {
	Category Category
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Category.String()
	}
	return e.Category.String() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause (may be nil) under category.
func New(category Category, cause error) *Error {
	return &Error{Category: category, Cause: cause}
}

// Sentinel causes for conditions that carry no further detail, in the
// teacher's package-level-var style.
var (
	ErrUnparseable    = errors.New("unparseable packet")
	ErrBucketExhausted = errors.New("hash-table bucket chain exhausted")
	ErrConnectionTableFull = errors.New("connection table full")
	ErrHopLimitZero   = errors.New("hop-limit zero at forward")
	ErrRouteAbsent    = errors.New("no route for name")
	ErrUnsolicited    = errors.New("content object has no matching pit entry")
)

// Is reports whether err is an *Error of the given category, unwrapping
// through errors.As.
func Is(err error, category Category) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Category == category
}
