package face

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/named-data/icnfwd/internal/clock"
	"github.com/named-data/icnfwd/internal/connection"
	"github.com/named-data/icnfwd/internal/dispatcher"
	"github.com/named-data/icnfwd/internal/errs"
	"github.com/named-data/icnfwd/internal/logging"
	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/rc"
)

func (*Registry) String() string { return "face" }

// Receiver is the single entry point every transport in this package
// hands decoded Messages to — internal/processor.Processor.OnReceive in
// production, a test double in unit tests. Keeping it an interface (not
// a concrete *processor.Processor import) keeps internal/face decoupled
// from internal/processor the same way internal/config.FaceFactory keeps
// internal/config decoupled from internal/face.
type Receiver interface {
	OnReceive(*rc.Ref[*message.Message])
}

// Registry is the concrete internal/config.FaceFactory: it creates
// listeners and connections for `add listener`/`add connection` control
// verbs, wiring each accepted peer into the shared ConnectionTable and
// Dispatcher, and every inbound frame into the Receiver.
type Registry struct {
	d     *dispatcher.Dispatcher
	conns *connection.Table
	clk   *clock.Clock
	recv  Receiver
	log   *logging.Log
}

// NewRegistry constructs a Registry. log may be nil (logging is then a
// no-op, matching internal/processor.Config's own optional Log).
func NewRegistry(d *dispatcher.Dispatcher, conns *connection.Table, clk *clock.Clock, recv Receiver, log *logging.Log) *Registry {
	return &Registry{d: d, conns: conns, clk: clk, recv: recv, log: log}
}

func (r *Registry) logf(level func(*logging.Log, logging.Facility, fmt.Stringer, string, ...any), msg string, kv ...any) {
	if r.log == nil {
		return
	}
	level(r.log, logging.FacilityIO, r, msg, kv...)
}

// CreateListener implements internal/config.FaceFactory. proto selects
// the transport family: "tcp", "udp", "unix", "websocket", or "quic".
// A listener is not itself entered in the ConnectionTable: the returned
// connID is always 0 on success, and each accepted or learned peer gets
// its own Connection with its own id.
func (r *Registry) CreateListener(proto, addr, port string) (uint64, error) {
	hostport := net.JoinHostPort(addr, port)
	switch proto {
	case "tcp":
		return r.listenStream("tcp", hostport)
	case "unix":
		return r.listenStream("unix", addr)
	case "websocket", "ws":
		return r.listenWebSocket(hostport)
	case "quic":
		return r.listenQUIC(hostport)
	case "udp":
		return r.listenUDP(hostport)
	}
	return 0, fmt.Errorf("face: unknown listener proto %q", proto)
}

// CreateConnection implements internal/config.FaceFactory, dialing out to
// a remote peer (the `add connection` verb, as opposed to `add listener`
// which only accepts).
func (r *Registry) CreateConnection(proto, local, remote string) (uint64, error) {
	switch proto {
	case "tcp", "unix":
		conn, err := net.Dial(proto, remote)
		if err != nil {
			return 0, err
		}
		return r.acceptStream(conn, false), nil
	case "udp":
		// A dialed-out UDP connection must speak the same one-datagram-
		// one-frame wire shape listenUDP's inbound side uses (no length
		// prefix): a UDP peer has no way to know whether the other end
		// reached it via CreateListener or CreateConnection, so the two
		// paths have to agree on framing.
		conn, err := net.Dial("udp", remote)
		if err != nil {
			return 0, err
		}
		return r.acceptDatagramConn(conn), nil
	}
	return 0, fmt.Errorf("face: unknown connection proto %q", proto)
}

// acceptDatagramConn wires an already-connected (dialed) UDP net.Conn into
// the ConnectionTable, reading whole datagrams as frames like listenUDP's
// receive loop.
func (r *Registry) acceptDatagramConn(conn net.Conn) uint64 {
	sink := func(msgRef *rc.Ref[*message.Message]) error {
		payload, err := Encode(msgRef.Get())
		if err != nil {
			return err
		}
		_, err = conn.Write(payload)
		return err
	}
	c := r.conns.Add(sink, false, conn.RemoteAddr().String())

	go func() {
		buf := make([]byte, 65535)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				r.teardown(c.ID, conn, err)
				return
			}
			frame := make([]byte, n)
			copy(frame, buf[:n])
			r.handleFrame(c.ID, frame)
		}
	}()
	return c.ID
}

// listenStream backs the tcp/unix cases of CreateListener: a
// dispatcher.CreateListener accept loop, each accepted net.Conn being
// wired in by acceptStream.
func (r *Registry) listenStream(network, addr string) (uint64, error) {
	ln, err := r.d.CreateListener(network, addr, func(conn net.Conn) {
		r.acceptStream(conn, network == "unix")
	})
	if err != nil {
		return 0, err
	}
	_ = ln // listener handle retained only for Destroy, not needed by the verb reply
	return 0, nil
}

// acceptStream wires one already-connected net.Conn into the
// ConnectionTable and starts its length-prefixed frame reader, per
// spec.md §4.6's "created by a listener accepting/learning a peer" and
// §7's Peer-closed teardown, grounded on fw/face/unix-stream-transport.go
// and fw/face/tcp-listener.go's accept/read-loop/close shape.
func (r *Registry) acceptStream(conn net.Conn, isLocal bool) uint64 {
	var c *connection.Connection
	sink := func(msgRef *rc.Ref[*message.Message]) error {
		payload, err := Encode(msgRef.Get())
		if err != nil {
			return err
		}
		return WriteFrame(conn, payload)
	}
	c = r.conns.Add(sink, isLocal, conn.RemoteAddr().String())

	go func() {
		br := bufio.NewReader(conn)
		for {
			frame, err := ReadFrame(br)
			if err != nil {
				r.teardown(c.ID, conn, err)
				return
			}
			r.handleFrame(c.ID, frame)
		}
	}()
	return c.ID
}

// handleFrame decodes one frame and, on success, Posts the resulting
// Message to the Dispatcher goroutine for delivery to the Receiver — the
// only path by which a socket-reading goroutine touches forwarder state
// (spec.md §5: "all forwarder state ... accessed only from the
// Dispatcher thread").
func (r *Registry) handleFrame(connID uint64, frame []byte) {
	r.d.Post(func() {
		now := r.clk.Now()
		msgRef, err := Decode(frame, connID, now)
		if err != nil {
			if c, ok := r.conns.Get(connID); ok {
				c.MalformedCount++
			}
			r.logf((*logging.Log).Warn, "dropping malformed frame", "conn", connID, "err", errs.New(errs.InputMalformed, err).Error())
			return
		}
		r.recv.OnReceive(msgRef)
	})
}

// teardown handles spec.md §7's Peer-closed case: tear down the
// connection and emit ConnectionDestroyed (connection.Table.Remove does
// the latter), from the Dispatcher goroutine.
func (r *Registry) teardown(connID uint64, conn io.Closer, cause error) {
	r.d.Post(func() {
		_ = conn.Close()
		r.conns.Remove(connID)
		if cause != nil && !errors.Is(cause, io.EOF) {
			r.logf((*logging.Log).Warn, "connection closed", "conn", connID, "err", errs.New(errs.PeerClosed, cause).Error())
		}
	})
}
