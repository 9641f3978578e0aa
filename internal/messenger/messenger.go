// Package messenger implements the in-process lifecycle event bus
// described in spec.md §4.6 and §GLOSSARY ("Missive"). Grounded on
// original_source/metis/messenger/metis_Messenger.c's doc comment: sends
// are queued, and if the queue was empty the messenger schedules itself to
// drain on a future dispatcher slice, guaranteeing no re-entrant delivery
// between a sender and a subscriber.
package messenger

// MissiveKind classifies a lifecycle event.
type MissiveKind int

const (
	ConnectionUp MissiveKind = iota
	ConnectionDestroyed
)

func (k MissiveKind) String() string {
	switch k {
	case ConnectionUp:
		return "connection-up"
	case ConnectionDestroyed:
		return "connection-destroyed"
	default:
		return "unknown"
	}
}

// Missive is a single lifecycle event. It is a plain value type, so
// delivering it to each subscriber by value already gives each one its own
// independent copy — the Go equivalent of the original's "private
// refcounted copy" (there is no shared mutable payload to protect here).
type Missive struct {
	Kind   MissiveKind
	ConnID uint64
}

// Subscriber receives delivered Missives, one Dispatcher tick after
// submission.
type Subscriber func(Missive)

// Messenger queues Missives and drains them on the next Dispatcher tick.
// It is not safe for concurrent use: like every other piece of forwarder
// state, it is only ever touched from the Dispatcher thread (spec.md §5).
// scheduleNextTick lets it ask the Dispatcher to run its drain callback
// once, the next time the event loop turns over.
type Messenger struct {
	scheduleNextTick func(func())
	pending          []Missive
	subs             map[int]Subscriber
	nextHandle       int
}

// New constructs a Messenger. scheduleNextTick must invoke its argument
// exactly once, on the Dispatcher's next tick.
func New(scheduleNextTick func(func())) *Messenger {
	return &Messenger{
		scheduleNextTick: scheduleNextTick,
		subs:             make(map[int]Subscriber),
	}
}

// Subscribe registers sub to receive future Missives and returns a cancel
// function.
func (m *Messenger) Subscribe(sub Subscriber) (cancel func()) {
	h := m.nextHandle
	m.nextHandle++
	m.subs[h] = sub
	return func() { delete(m.subs, h) }
}

// Send enqueues miss for delivery on the next Dispatcher tick. If the
// queue was empty, a drain is scheduled; if a drain is already pending,
// miss simply joins the existing batch (still delivered next tick, not
// out-of-order relative to submission).
func (m *Messenger) Send(miss Missive) {
	wasEmpty := len(m.pending) == 0
	m.pending = append(m.pending, miss)
	if wasEmpty {
		m.scheduleNextTick(m.drain)
	}
}

// drain delivers every Missive queued as of the moment it was called. A
// Send performed by a subscriber mid-drain lands in a fresh, empty queue
// and is scheduled for yet another future tick — emit-during-emit is
// therefore always deferred, never re-entrant.
func (m *Messenger) drain() {
	batch := m.pending
	m.pending = nil
	for _, miss := range batch {
		for _, sub := range m.subs {
			sub(miss)
		}
	}
}

// Pending returns the number of Missives queued for the next drain, for
// tests and diagnostics.
func (m *Messenger) Pending() int { return len(m.pending) }
