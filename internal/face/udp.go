package face

import (
	"net"
	"sync"

	"github.com/named-data/icnfwd/internal/connection"
	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/rc"
)

// listenUDP backs the udp case of CreateListener. UDP is packet- rather
// than stream-oriented, so unlike the TCP/Unix listeners it can't
// lean on dispatcher.CreateListener's net.Listener accept loop; instead
// it runs its own receive loop over a single bound net.PacketConn and
// multiplexes inbound datagrams onto one Connection per peer address,
// grounded on fw/face/unicast-udp-transport.go's per-remote-address
// transport model (fw/face/multicast-udp-transport.go's group-membership
// handling is out of scope: multicast routing protocols are an explicit
// non-goal, spec.md §1). A UDP datagram is one frame; unlike the
// stream transports there is no length prefix to parse since the kernel
// already preserves datagram boundaries.
func (r *Registry) listenUDP(addr string) (uint64, error) {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return 0, err
	}

	var mu sync.Mutex
	peers := make(map[string]*connection.Connection)

	go func() {
		buf := make([]byte, 65535)
		for {
			n, from, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			frame := make([]byte, n)
			copy(frame, buf[:n])
			key := from.String()

			mu.Lock()
			c, ok := peers[key]
			mu.Unlock()
			if !ok {
				remote := from
				sink := func(msgRef *rc.Ref[*message.Message]) error {
					payload, err := Encode(msgRef.Get())
					if err != nil {
						return err
					}
					_, err = pc.WriteTo(payload, remote)
					return err
				}
				r.d.Post(func() {
					mu.Lock()
					c, ok := peers[key]
					if !ok {
						c = r.conns.Add(sink, false, key)
						peers[key] = c
					}
					mu.Unlock()
					r.handleFrame(c.ID, frame)
				})
				continue
			}
			r.handleFrame(c.ID, frame)
		}
	}()

	return 0, nil
}
