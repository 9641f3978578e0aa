package face

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/rc"
)

// listenQUIC backs the quic case of CreateListener, grounded on
// fw/face/http3-listener.go's use of quic-go for an HTTP/3 WebTransport
// listener — generalized to plain QUIC streams instead of WebTransport
// sessions, since quic-go/webtransport-go was dropped (DESIGN.md: no
// second component needs browser WebTransport beyond this transport).
// Each accepted QUIC connection's first bidirectional stream is treated
// exactly like a TCP connection: a length-prefixed frame reader/writer.
func (r *Registry) listenQUIC(addr string) (uint64, error) {
	tlsConf, err := selfSignedTLSConfig()
	if err != nil {
		return 0, err
	}
	ln, err := quic.ListenAddr(addr, tlsConf, &quic.Config{
		MaxIdleTimeout:  60 * time.Second,
		KeepAlivePeriod: 30 * time.Second,
	})
	if err != nil {
		return 0, err
	}

	go func() {
		for {
			conn, err := ln.Accept(context.Background())
			if err != nil {
				return
			}
			go r.acceptQUICConn(conn)
		}
	}()

	return 0, nil
}

func (r *Registry) acceptQUICConn(conn *quic.Conn) {
	stream, err := conn.AcceptStream(context.Background())
	if err != nil {
		return
	}
	r.acceptQUICStream(conn, stream)
}

// acceptQUICStream wires a single QUIC stream into the ConnectionTable
// exactly like acceptStream does for a net.Conn, reusing the same
// length-prefixed frame codec (a QUIC stream is an ordered reliable byte
// stream, same contract as TCP/Unix). Unlike acceptStream, this runs on
// the raw goroutine backing quic.Listener.Accept rather than one already
// Posted through the Dispatcher (dispatcher.CreateListener only wraps
// net.Listener, not a quic.Listener), so the ConnectionTable mutation
// itself is Posted here to keep it on the Dispatcher goroutine (spec.md
// §5).
func (r *Registry) acceptQUICStream(conn *quic.Conn, stream *quic.Stream) {
	sink := func(msgRef *rc.Ref[*message.Message]) error {
		payload, err := Encode(msgRef.Get())
		if err != nil {
			return err
		}
		return WriteFrame(stream, payload)
	}

	r.d.Post(func() {
		c := r.conns.Add(sink, false, conn.RemoteAddr().String())
		go func() {
			br := bufio.NewReader(stream)
			for {
				frame, err := ReadFrame(br)
				if err != nil {
					r.teardown(c.ID, stream, err)
					return
				}
				r.handleFrame(c.ID, frame)
			}
		}()
	})
}

// selfSignedTLSConfig mints an ephemeral P-256 cert for the QUIC
// listener. Wire-format-level security (signature verification, TLS
// trust) is an explicit non-goal (spec.md §1); this exists only so
// quic-go's mandatory TLS handshake has something to present.
func selfSignedTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("face: generating quic cert: %w", err)
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"icnfwd"},
	}, nil
}
