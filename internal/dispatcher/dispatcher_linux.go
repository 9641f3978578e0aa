//go:build linux

package dispatcher

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller backs CreateNetworkEvent with edge-triggered epoll, per
// spec.md §4.7 ("createNetworkEvent(fd, cb) ... edge-triggered"). One
// goroutine blocks in epoll_wait and forwards raw readiness onto a
// channel the Dispatcher's own select loop drains, so every callback
// still executes on the single Dispatcher goroutine.
type epollPoller struct {
	epfd int

	mu   sync.Mutex
	regs map[int]pollCallback

	events chan pollEvent
	stop   chan struct{}
}

func newPlatformPoller() platformPoller {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		// Falls back to a no-op poller: CreateNetworkEvent callers will
		// get a non-nil error from add() instead of a crash at startup.
		return &deadPoller{err: err}
	}
	return &epollPoller{
		epfd:   epfd,
		regs:   make(map[int]pollCallback),
		events: make(chan pollEvent, 64),
		stop:   make(chan struct{}),
	}
}

func (p *epollPoller) add(fd int, cb pollCallback) error {
	p.mu.Lock()
	p.regs[fd] = cb
	p.mu.Unlock()

	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLET | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) remove(fd int) {
	p.mu.Lock()
	delete(p.regs, fd)
	p.mu.Unlock()
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) start() <-chan pollEvent {
	go p.loop()
	return p.events
}

func (p *epollPoller) loop() {
	raw := make([]unix.EpollEvent, 64)
	for {
		n, err := unix.EpollWait(p.epfd, raw, -1)
		select {
		case <-p.stop:
			return
		default:
		}
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			fd := int(raw[i].Fd)
			mask := raw[i].Events
			p.mu.Lock()
			cb, ok := p.regs[fd]
			p.mu.Unlock()
			if !ok {
				continue
			}
			readable := mask&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0
			writable := mask&unix.EPOLLOUT != 0
			select {
			case p.events <- pollEvent{cb: cb, readable: readable, writable: writable}:
			case <-p.stop:
				return
			}
		}
	}
}

func (p *epollPoller) close() {
	close(p.stop)
	_ = unix.Close(p.epfd)
}
