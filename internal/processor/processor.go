// Package processor implements the MessageProcessor pipeline of spec.md
// §4.5: the per-packet receive/classify/PIT-CS-FIB/forward state machine
// that binds the Content Store, PIT, FIB, and ConnectionTable together.
// Grounded directly on the spec's own pseudocode, with per-verb control
// dispatch in the style of fw/mgmt/fib.go's `switch verb { case
// "add-nexthop": ... }`.
package processor

import (
	"fmt"

	"github.com/named-data/icnfwd/internal/clock"
	"github.com/named-data/icnfwd/internal/connection"
	"github.com/named-data/icnfwd/internal/contentstore"
	"github.com/named-data/icnfwd/internal/errs"
	"github.com/named-data/icnfwd/internal/fib"
	"github.com/named-data/icnfwd/internal/logging"
	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/pit"
	"github.com/named-data/icnfwd/internal/rc"
)

func (*Processor) String() string { return "processor" }

// NackPolicy controls spec.md §4.5's "send NACK or drop per configuration"
// decision when the FIB has no route, and spec.md's supplemented feature
// "NACK-vs-drop as config toggle" (SPEC_FULL.md §4, grounded on metis's
// equivalent forwarder-wide policy flag).
type NackPolicy int

const (
	// DropSilently never emits a NACK; a routeless Interest is simply
	// dropped.
	DropSilently NackPolicy = iota
	// SendNack emits a Control-kind NACK message back to the ingress
	// connection when no route exists.
	SendNack
)

// CacheConfig toggles the Content Store's participation in the pipeline
// per spec.md §6's `cache { size N | store on/off | serve on/off }`
// control verb, without changing its capacity or contents. Held by
// pointer so internal/config.Applier.Apply can mutate it live; read only from
// the Dispatcher thread like everything else (spec.md §5).
type CacheConfig struct {
	Store bool
	Serve bool
}

// DefaultCacheConfig returns a CacheConfig with both store and serve
// enabled, the Content Store's default participation.
func DefaultCacheConfig() *CacheConfig { return &CacheConfig{Store: true, Serve: true} }

// Config bundles the processor's tunables.
type Config struct {
	Nack      NackPolicy
	Lifetimes pit.Lifetimes
	Cache     *CacheConfig
	Log       *logging.Log
}

// Processor is the MessageProcessor: it owns no state of its own beyond
// its Config, operating purely on the CS/PIT/FIB/ConnectionTable it's
// constructed with (spec.md §5: all forwarder state lives in those
// tables, touched only from the Dispatcher thread).
type Processor struct {
	cs    *contentstore.ContentStore
	pit   *pit.Pit
	fib   *fib.Fib
	conns *connection.Table
	clk   *clock.Clock
	cfg   Config
}

// New constructs a Processor wired to the given tables.
func New(cs *contentstore.ContentStore, p *pit.Pit, f *fib.Fib, conns *connection.Table, clk *clock.Clock, cfg Config) *Processor {
	if cfg.Cache == nil {
		cfg.Cache = DefaultCacheConfig()
	}
	return &Processor{cs: cs, pit: p, fib: f, conns: conns, clk: clk, cfg: cfg}
}

func (pr *Processor) logf(f logging.Facility, level func(*logging.Log, logging.Facility, fmt.Stringer, string, ...any), msg string, kv ...any) {
	if pr.cfg.Log == nil {
		return
	}
	level(pr.cfg.Log, f, pr, msg, kv...)
}

// OnReceive processes one incoming Message end to end, per spec.md §4.5's
// pseudocode. The caller (a face transport, via the Dispatcher) retains
// its own reference to msgRef; OnReceive acquires whatever references it
// needs to keep (e.g. when creating a new PIT entry) and releases the
// rest.
func (pr *Processor) OnReceive(msgRef *rc.Ref[*message.Message]) {
	msg := msgRef.Get()
	switch msg.Kind {
	case message.Interest:
		pr.onInterest(msgRef)
	case message.ContentObject:
		pr.onContentObject(msgRef)
	case message.Control:
		pr.onControl(msgRef)
	}
}

func connIsLocal(conns *connection.Table, id uint64) bool {
	c, ok := conns.Get(id)
	return ok && c.IsLocal
}

func (pr *Processor) onInterest(msgRef *rc.Ref[*message.Message]) {
	msg := msgRef.Get()
	now := pr.clk.Now()

	// Hop-limit (spec.md §4.5 and §8 "Hop-limit" scenario): decrement on
	// non-local arrival. A resulting hop-limit of zero does not drop the
	// Interest outright — a CS hit or a local-producer next-hop can still
	// serve it — it only forbids forwarding to remote next-hops, enforced
	// in the egress loop below.
	local := connIsLocal(pr.conns, msg.Ingress)
	hopLimit := msg.HopLimit
	if !local && hopLimit > 0 {
		hopLimit--
	}
	hopLimitExhausted := !local && hopLimit == 0

	if pr.cfg.Cache.Serve {
		if hit, ok := pr.cs.MatchInterest(msg.Name, msg.Restriction, now); ok {
			pr.send(msg.Ingress, hit)
			return
		}
	}

	result, entry := pr.pit.ReceiveInterest(msgRef, now, pr.cfg.Lifetimes, pr.fib, pr.clk)
	if result == pit.Aggregate {
		return
	}

	fibEntry := entry.FibEntry()
	if fibEntry == nil {
		policyErr := errs.New(errs.PolicyDenied, errs.ErrRouteAbsent)
		pr.logf(logging.FacilityProcessor, (*logging.Log).Debug, "no route", "name", msg.Name.String(), "err", policyErr.Error())
		if pr.cfg.Nack == SendNack {
			pr.sendNack(msg.Ingress, msg, now)
		}
		return
	}

	fb := fib.Feedback{AlreadySent: entry.EgressSet(), Ingress: msg.Ingress}
	egress := fibEntry.Strategy().ChooseNextHops(fibEntry.Nexthops(), msg, fb)

	for _, next := range egress {
		// Self-loop (spec.md §4.5): never forward back out the arrival
		// interface. The local-app exception ("unless that interface is
		// explicitly a local-app interface and the FIB entry so
		// indicates") isn't representable without a routing-policy flag
		// this FibEntry doesn't carry, so this implementation enforces
		// the strict rule for every interface.
		if next == msg.Ingress {
			continue
		}
		if hopLimitExhausted && !connIsLocal(pr.conns, next) {
			continue
		}
		forwarded := &message.Message{
			Kind:        message.Interest,
			Name:        msg.Name,
			Restriction: msg.Restriction,
			Lifetime:    msg.Lifetime,
			HopLimit:    hopLimit,
			Ingress:     msg.Ingress,
			Created:     msg.Created,
		}
		pr.send(next, rc.New(forwarded, nil))
		entry.AddEgress(next)
	}
}

func (pr *Processor) onContentObject(msgRef *rc.Ref[*message.Message]) {
	msg := msgRef.Get()
	now := pr.clk.Now()

	ingress := pr.pit.SatisfyInterest(msgRef)
	if len(ingress) == 0 {
		pr.logf(logging.FacilityProcessor, (*logging.Log).Debug, "dropping unsolicited content object", "name", msg.Name.String())
		return
	}

	if pr.cfg.Cache.Store {
		pr.cs.Put(msgRef, now)
	}

	for _, c := range ingress {
		if c == msg.Ingress {
			continue
		}
		pr.send(c, msgRef)
	}
}

func (pr *Processor) onControl(msgRef *rc.Ref[*message.Message]) {
	msg := msgRef.Get()
	pr.logf(logging.FacilityProcessor, (*logging.Log).Info, "control verb received", "verb", msg.ControlVerb)
	// Control-kind messages are only logged here: the verb is not applied
	// to the FIB, connection table or cache config. Verbs take effect
	// through internal/config.Applier.Apply, which internal/ctrlsock and
	// the startup profile call directly; the processor holds no Applier,
	// as internal/config imports internal/processor.
}

func (pr *Processor) send(connID uint64, msgRef *rc.Ref[*message.Message]) {
	if err := pr.conns.Send(connID, msgRef); err != nil {
		pr.logf(logging.FacilityIO, (*logging.Log).Warn, "send failed", "conn", connID, "err", err.Error())
	}
}

func (pr *Processor) sendNack(connID uint64, original *message.Message, now clock.Ticks) {
	nack := message.NewControl(fmt.Sprintf("nack %s no-route", original.Name.String()), connID, now)
	pr.send(connID, nack)
}
