package fib

import "github.com/named-data/icnfwd/internal/message"

// Feedback carries per-PIT-entry context a Strategy needs to make a
// forwarding decision beyond the raw next-hop set — chiefly which
// next-hops have already been sent this Interest within the current PIT
// entry's lifetime, for the egress-set de-dup rule (spec.md §4.5).
type Feedback struct {
	AlreadySent []uint64
	Ingress     uint64
}

// Strategy is the capability a FibEntry holds to choose which of its
// next-hops to forward an Interest to. spec.md §9 deliberately leaves the
// concrete strategies unenumerated ("do not enumerate the concrete
// strategies here"); this interface is the capability contract, grounded
// on fw/fw/multicast.go's Strategy.AfterReceiveInterest shape.
type Strategy interface {
	Name() string
	ChooseNextHops(nexthops []uint64, interest *message.Message, fb Feedback) []uint64
}

// Multicast forwards to every next-hop not already sent to within the
// current PIT entry's lifetime. Grounded directly on fw/fw/multicast.go's
// Multicast strategy.
type Multicast struct{}

func (Multicast) Name() string { return "multicast" }

func (Multicast) ChooseNextHops(nexthops []uint64, interest *message.Message, fb Feedback) []uint64 {
	sent := make(map[uint64]bool, len(fb.AlreadySent))
	for _, id := range fb.AlreadySent {
		sent[id] = true
	}
	out := make([]uint64, 0, len(nexthops))
	for _, nh := range nexthops {
		if !sent[nh] {
			out = append(out, nh)
		}
	}
	return out
}

// BestRoute forwards to at most one next-hop: the lowest-numbered one not
// already sent to. A simple stand-in for a cost-ranked best-path strategy,
// since route cost isn't modeled by this FIB (spec.md leaves route cost
// entirely out of the FibEntry's §3 definition).
type BestRoute struct{}

func (BestRoute) Name() string { return "best-route" }

func (BestRoute) ChooseNextHops(nexthops []uint64, interest *message.Message, fb Feedback) []uint64 {
	sent := make(map[uint64]bool, len(fb.AlreadySent))
	for _, id := range fb.AlreadySent {
		sent[id] = true
	}
	for _, nh := range nexthops {
		if !sent[nh] {
			return []uint64{nh}
		}
	}
	return nil
}
