package dispatcher

// pollCallback reports edge-triggered readability/writability for a
// single registered fd.
type pollCallback func(readable, writable bool)

// pollEvent is what the platform poller goroutine hands back to the
// Dispatcher's own select loop in Run, so every callback still executes
// on the single Dispatcher goroutine (spec.md §4.7: "no callback is
// invoked concurrently with any other").
type pollEvent struct {
	cb        pollCallback
	readable  bool
	writable  bool
}

// platformPoller is implemented per-OS: dispatcher_linux.go backs it with
// epoll, dispatcher_poll.go backs it with poll(2) for the other unix
// targets the face transports run on, and dispatcher_windows.go is an
// unsupported stub (the forwarder's TCP/UDP/Unix/WebSocket/QUIC faces are
// not exercised on Windows in this tree). Grounded on
// fw/face/impl/syscalls_wasm.go's per-platform-file convention.
type platformPoller interface {
	add(fd int, cb pollCallback) error
	remove(fd int)
	start() <-chan pollEvent
	close()
}

type poller struct {
	impl platformPoller
}

func newPoller() *poller {
	return &poller{impl: newPlatformPoller()}
}

func (p *poller) add(fd int, cb pollCallback) error { return p.impl.add(fd, cb) }
func (p *poller) remove(fd int)                     { p.impl.remove(fd) }
func (p *poller) start() <-chan pollEvent           { return p.impl.start() }
func (p *poller) close()                            { p.impl.close() }

// deadPoller is returned when a platform poller fails to initialize
// (e.g. a sandboxed environment denying epoll_create1 or pipe2); every
// registration fails loudly instead of silently never firing.
type deadPoller struct {
	err error
}

func (p *deadPoller) add(fd int, cb pollCallback) error { return p.err }
func (p *deadPoller) remove(fd int)                     {}
func (p *deadPoller) start() <-chan pollEvent           { return make(chan pollEvent) }
func (p *deadPoller) close()                            {}
