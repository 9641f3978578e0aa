// Package ctrlsock implements spec.md §6's control-plane socket: "a local
// TCP listener (default port 2001) accepts control verbs as
// length-prefixed framed messages. One command per frame; reply is an
// ack/nack frame with an optional payload." Grounded on
// original_source/metis's metis_TcpListener.c / metis_UdpConnection.c
// accept/parse-frame loop structure, reusing internal/face's length-
// prefixed frame codec (the same 4-byte-length scheme spec.md names
// explicitly here).
package ctrlsock

import (
	"bufio"
	"fmt"
	"net"

	"github.com/named-data/icnfwd/internal/config"
	"github.com/named-data/icnfwd/internal/dispatcher"
	"github.com/named-data/icnfwd/internal/face"
	"github.com/named-data/icnfwd/internal/logging"
)

func (*Server) String() string { return "ctrlsock" }

// DefaultPort is spec.md §6's default control-plane socket port.
const DefaultPort = 2001

// Server accepts control-verb frames and applies them via an
// internal/config.Applier.
type Server struct {
	d       *dispatcher.Dispatcher
	applier *config.Applier
	log     *logging.Log
}

// New constructs a Server applying verbs through applier.
func New(applier *config.Applier, log *logging.Log) *Server {
	return &Server{applier: applier, log: log}
}

func (s *Server) logf(level func(*logging.Log, logging.Facility, fmt.Stringer, string, ...any), msg string, kv ...any) {
	if s.log == nil {
		return
	}
	level(s.log, logging.FacilityConfig, s, msg, kv...)
}

// Listen starts the control socket on the Dispatcher's accept loop,
// at addr (e.g. ":2001").
func (s *Server) Listen(d *dispatcher.Dispatcher, addr string) (*dispatcher.Listener, error) {
	s.d = d
	return d.CreateListener("tcp", addr, func(conn net.Conn) {
		go s.serve(conn)
	})
}

// serve reads one frame per iteration (spec.md §6: "one command per
// frame") on its own goroutine per connection, then Posts the verb onto
// the Dispatcher goroutine before replying — internal/config.Applier.Apply
// mutates the FIB/ConnectionTable/cache config directly, so it is subject
// to the same single-threaded-forwarder-state rule as the data path
// (spec.md §5), even though the socket read/write itself can block on its
// own goroutine.
func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	br := bufio.NewReader(conn)
	for {
		frame, err := face.ReadFrame(br)
		if err != nil {
			return
		}
		replyCh := make(chan []byte, 1)
		s.d.Post(func() { replyCh <- s.handle(string(frame)) })
		if err := face.WriteFrame(conn, <-replyCh); err != nil {
			return
		}
	}
}

func (s *Server) handle(line string) []byte {
	verb, err := config.ParseVerb(line)
	if err != nil {
		s.logf((*logging.Log).Warn, "malformed control verb", "line", line, "err", err.Error())
		return []byte("nack: " + err.Error())
	}
	reply, err := s.applier.Apply(verb)
	if err != nil {
		s.logf((*logging.Log).Warn, "control verb rejected", "line", line, "err", err.Error())
		return []byte("nack: " + err.Error())
	}
	return []byte("ack: " + reply)
}
