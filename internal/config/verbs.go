// Package config implements the two configuration surfaces of spec.md §6:
// the line-oriented control-verb grammar (also what the control-plane
// socket accepts at runtime, and what the `verbs` list of the YAML profile
// holds) and the static YAML node profile itself. `--config F` names that
// YAML profile; a plain file of verb lines is not read. Verb
// dispatch is grounded on fw/mgmt/fib.go's `switch verb { case
// "add-nexthop": ... }` style, generalized from that module's single FIB
// verb family to the forwarder-wide verb set spec.md §6 names.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/named-data/icnfwd/internal/connection"
	"github.com/named-data/icnfwd/internal/contentstore"
	"github.com/named-data/icnfwd/internal/fib"
	"github.com/named-data/icnfwd/internal/name"
	"github.com/named-data/icnfwd/internal/processor"
)

func (*Applier) String() string { return "config" }

// Verb is one parsed control-verb line.
type Verb struct {
	Kind    VerbKind
	Fields  []string // tokens after the leading keyword(s), verb-specific
	Comment bool     // true for blank lines and lines starting with '#'
}

// VerbKind discriminates the control-verb grammar spec.md §6 defines.
type VerbKind int

const (
	VerbComment VerbKind = iota
	VerbAddListener
	VerbAddConnection
	VerbAddRoute
	VerbSetStrategy
	VerbCacheSize
	VerbCacheStore
	VerbCacheServe
)

// ParseVerb parses a single line of the grammar:
//
//	add listener <name> <proto> <addr> <port>
//	add connection <name> <proto> <local> <remote>
//	add route <connection-name> <prefix> <cost>
//	set strategy <prefix> <name>
//	cache size N
//	cache store on|off
//	cache serve on|off
//
// Comments (lines whose first non-whitespace character is '#') and blank
// lines parse to VerbComment and are otherwise ignored by Applier.Apply.
func ParseVerb(line string) (Verb, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Verb{Kind: VerbComment, Comment: true}, nil
	}

	fields := strings.Fields(trimmed)
	switch fields[0] {
	case "add":
		if len(fields) < 2 {
			return Verb{}, fmt.Errorf("config: incomplete add verb: %q", line)
		}
		switch fields[1] {
		case "listener":
			if len(fields) != 6 {
				return Verb{}, fmt.Errorf("config: add listener wants 4 args, got %q", line)
			}
			return Verb{Kind: VerbAddListener, Fields: fields[2:]}, nil
		case "connection":
			if len(fields) != 6 {
				return Verb{}, fmt.Errorf("config: add connection wants 4 args, got %q", line)
			}
			return Verb{Kind: VerbAddConnection, Fields: fields[2:]}, nil
		case "route":
			if len(fields) != 5 {
				return Verb{}, fmt.Errorf("config: add route wants 3 args, got %q", line)
			}
			return Verb{Kind: VerbAddRoute, Fields: fields[2:]}, nil
		}
		return Verb{}, fmt.Errorf("config: unknown add target: %q", line)

	case "set":
		if len(fields) != 4 || fields[1] != "strategy" {
			return Verb{}, fmt.Errorf("config: malformed set strategy verb: %q", line)
		}
		return Verb{Kind: VerbSetStrategy, Fields: fields[2:]}, nil

	case "cache":
		if len(fields) != 3 {
			return Verb{}, fmt.Errorf("config: malformed cache verb: %q", line)
		}
		switch fields[1] {
		case "size":
			return Verb{Kind: VerbCacheSize, Fields: fields[2:]}, nil
		case "store":
			return Verb{Kind: VerbCacheStore, Fields: fields[2:]}, nil
		case "serve":
			return Verb{Kind: VerbCacheServe, Fields: fields[2:]}, nil
		}
		return Verb{}, fmt.Errorf("config: unknown cache sub-verb: %q", line)
	}

	return Verb{}, fmt.Errorf("config: unknown verb: %q", line)
}

// FaceFactory is the collaborator internal/face provides so Applier.Apply can
// create listeners and connections without internal/config importing
// internal/face directly (internal/face will, in turn, depend on
// internal/dispatcher and internal/connection — keeping config decoupled
// from the socket layer avoids a needless import fan-in).
type FaceFactory interface {
	CreateListener(proto, addr, port string) (connID uint64, err error)
	CreateConnection(proto, local, remote string) (connID uint64, err error)
}

// Strategies resolves a `set strategy` verb's strategy name to a
// fib.Strategy capability. internal/config carries no opinion on what
// strategies exist; the caller supplies the registry (spec.md §9:
// "do not enumerate the concrete strategies here").
type Strategies func(name string) (fib.Strategy, bool)

// Applier applies parsed verbs against the live forwarder state; its
// callers are internal/ctrlsock and StaticProfile.ApplyVerbs (the
// processor does not call it for Control-kind messages). It holds no
// state of its own beyond a name→connection-id registry for verbs that
// reference connections by the name they were added under rather than by
// numeric id.
type Applier struct {
	faces      FaceFactory
	fib        *fib.Fib
	conns      *connection.Table
	cs         *contentstore.ContentStore
	cache      *processor.CacheConfig
	strategies Strategies
	byName     map[string]uint64
}

// NewApplier constructs an Applier. faces may be nil if the deployment
// never expects `add listener`/`add connection` verbs (e.g. a test
// harness that wires connections directly).
func NewApplier(faces FaceFactory, f *fib.Fib, conns *connection.Table, cs *contentstore.ContentStore, cache *processor.CacheConfig, strategies Strategies) *Applier {
	return &Applier{
		faces:      faces,
		fib:        f,
		conns:      conns,
		cs:         cs,
		cache:      cache,
		strategies: strategies,
		byName:     make(map[string]uint64),
	}
}

// Apply interprets one parsed Verb, mutating the FIB, ConnectionTable, or
// CacheConfig as appropriate. It returns a human-readable result the
// control-plane socket can echo back as an ack/nack payload (spec.md §6:
// "reply is an ack/nack frame with an optional payload").
func (a *Applier) Apply(v Verb) (reply string, err error) {
	switch v.Kind {
	case VerbComment:
		return "", nil

	case VerbAddListener:
		if a.faces == nil {
			return "", fmt.Errorf("config: no face factory configured")
		}
		connName, proto, addr, port := v.Fields[0], v.Fields[1], v.Fields[2], v.Fields[3]
		id, err := a.faces.CreateListener(proto, addr, port)
		if err != nil {
			return "", err
		}
		a.byName[connName] = id
		return fmt.Sprintf("listener %s up on %s://%s:%s (id %d)", connName, proto, addr, port, id), nil

	case VerbAddConnection:
		if a.faces == nil {
			return "", fmt.Errorf("config: no face factory configured")
		}
		connName, proto, local, remote := v.Fields[0], v.Fields[1], v.Fields[2], v.Fields[3]
		id, err := a.faces.CreateConnection(proto, local, remote)
		if err != nil {
			return "", err
		}
		a.byName[connName] = id
		return fmt.Sprintf("connection %s up %s://%s->%s (id %d)", connName, proto, local, remote, id), nil

	case VerbAddRoute:
		connName, prefixStr, costStr := v.Fields[0], v.Fields[1], v.Fields[2]
		id, ok := a.resolve(connName)
		if !ok {
			return "", fmt.Errorf("config: unknown connection %q", connName)
		}
		cost, err := strconv.Atoi(costStr)
		if err != nil {
			return "", fmt.Errorf("config: invalid cost %q: %w", costStr, err)
		}
		// Route cost isn't modeled by this FIB (see fib.BestRoute's doc
		// comment); it's accepted and echoed back but has no effect here.
		a.fib.AddRoute(name.FromString(prefixStr), id)
		return fmt.Sprintf("route %s -> %s added (cost %d)", prefixStr, connName, cost), nil

	case VerbSetStrategy:
		prefixStr, strategyName := v.Fields[0], v.Fields[1]
		if a.strategies == nil {
			return "", fmt.Errorf("config: no strategy registry configured")
		}
		s, ok := a.strategies(strategyName)
		if !ok {
			return "", fmt.Errorf("config: unknown strategy %q", strategyName)
		}
		a.fib.SetStrategy(name.FromString(prefixStr), s)
		return fmt.Sprintf("strategy %s set to %s", prefixStr, strategyName), nil

	case VerbCacheSize:
		size, err := strconv.Atoi(v.Fields[0])
		if err != nil {
			return "", fmt.Errorf("config: invalid cache size %q: %w", v.Fields[0], err)
		}
		a.cs.SetCapacity(size)
		return fmt.Sprintf("cache size %d", size), nil

	case VerbCacheStore:
		on, err := parseOnOff(v.Fields[0])
		if err != nil {
			return "", err
		}
		a.cache.Store = on
		return fmt.Sprintf("cache store %s", onOff(on)), nil

	case VerbCacheServe:
		on, err := parseOnOff(v.Fields[0])
		if err != nil {
			return "", err
		}
		a.cache.Serve = on
		return fmt.Sprintf("cache serve %s", onOff(on)), nil
	}

	return "", fmt.Errorf("config: unhandled verb kind %d", v.Kind)
}

// resolve looks up a connection by the name it was registered under, or
// (for verbs authored directly against a numeric id, as the control
// socket's wire protocol permits) parses connName as a raw id.
func (a *Applier) resolve(connName string) (uint64, bool) {
	if id, ok := a.byName[connName]; ok {
		return id, true
	}
	if id, err := strconv.ParseUint(connName, 10, 64); err == nil {
		if _, ok := a.conns.Get(id); ok {
			return id, true
		}
	}
	return 0, false
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("config: expected on/off, got %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
