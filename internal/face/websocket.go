package face

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/rc"
)

// listenWebSocket backs the websocket case of CreateListener, grounded on
// fw/face/web-socket-listener.go's http.Server + websocket.Upgrader
// shape: an ordinary HTTP server whose one handler upgrades every request
// to a WebSocket connection and treats it like any other accepted peer. A
// WebSocket message is one frame (binary opcode), so — like UDP — no
// length prefix is needed; gorilla/websocket already preserves message
// boundaries.
func (r *Registry) listenWebSocket(addr string) (uint64, error) {
	upgrader := websocket.Upgrader{
		WriteBufferPool: &sync.Pool{},
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	srv := &http.Server{Addr: addr}
	srv.Handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.acceptWebSocket(conn)
	})

	go func() {
		_ = srv.ListenAndServe()
	}()

	return 0, nil
}

// acceptWebSocket wires one upgraded connection into the ConnectionTable.
// It runs on net/http's own per-request goroutine rather than one already
// Posted through the Dispatcher (unlike TCP/Unix, whose accept loop comes
// from dispatcher.CreateListener), so the ConnectionTable mutation is
// Posted here to keep it on the Dispatcher goroutine (spec.md §5).
func (r *Registry) acceptWebSocket(conn *websocket.Conn) {
	var mu sync.Mutex
	sink := func(msgRef *rc.Ref[*message.Message]) error {
		payload, err := Encode(msgRef.Get())
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		return conn.WriteMessage(websocket.BinaryMessage, payload)
	}

	r.d.Post(func() {
		c := r.conns.Add(sink, false, conn.RemoteAddr().String())
		go func() {
			for {
				kind, payload, err := conn.ReadMessage()
				if err != nil {
					r.teardown(c.ID, conn, err)
					return
				}
				if kind != websocket.BinaryMessage {
					continue
				}
				frame := make([]byte, len(payload))
				copy(frame, payload)
				r.handleFrame(c.ID, frame)
			}
		}()
	})
}
