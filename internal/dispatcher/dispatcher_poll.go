//go:build !linux && unix

package dispatcher

import (
	"sync"

	"golang.org/x/sys/unix"
)

// pollPoller backs the other unix targets (darwin, the BSDs) with a
// level-triggered poll(2) loop. It presents the same edge-triggered
// contract to callers as the Linux epoll backend by only re-reporting a
// readiness bit once it has toggled since the last wakeup.
type pollPoller struct {
	mu   sync.Mutex
	fds  []int
	cbs  map[int]pollCallback
	last map[int]uint16 // last reported mask per fd, for edge suppression

	events chan pollEvent
	stop   chan struct{}
	wake   [2]int // self-pipe, so add/remove interrupt a blocked poll
}

func newPlatformPoller() platformPoller {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return &deadPoller{err: err}
	}
	return &pollPoller{
		cbs:    make(map[int]pollCallback),
		last:   make(map[int]uint16),
		events: make(chan pollEvent, 64),
		stop:   make(chan struct{}),
		wake:   fds,
	}
}

func (p *pollPoller) add(fd int, cb pollCallback) error {
	p.mu.Lock()
	p.cbs[fd] = cb
	p.fds = append(p.fds, fd)
	p.mu.Unlock()
	p.nudge()
	return nil
}

func (p *pollPoller) remove(fd int) {
	p.mu.Lock()
	delete(p.cbs, fd)
	delete(p.last, fd)
	for i, f := range p.fds {
		if f == fd {
			p.fds = append(p.fds[:i], p.fds[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	p.nudge()
}

func (p *pollPoller) nudge() {
	_, _ = unix.Write(p.wake[1], []byte{0})
}

func (p *pollPoller) start() <-chan pollEvent {
	go p.loop()
	return p.events
}

func (p *pollPoller) loop() {
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		p.mu.Lock()
		pfds := make([]unix.PollFd, 0, len(p.fds)+1)
		pfds = append(pfds, unix.PollFd{Fd: int32(p.wake[0]), Events: unix.POLLIN})
		for _, fd := range p.fds {
			pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN | unix.POLLOUT})
		}
		p.mu.Unlock()

		n, err := unix.Poll(pfds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}
		if pfds[0].Revents != 0 {
			buf := make([]byte, 8)
			_, _ = unix.Read(p.wake[0], buf)
		}
		for _, pfd := range pfds[1:] {
			if pfd.Revents == 0 {
				continue
			}
			fd := int(pfd.Fd)
			p.mu.Lock()
			cb, ok := p.cbs[fd]
			prev := p.last[fd]
			p.mu.Unlock()
			if !ok {
				continue
			}
			if pfd.Revents == prev {
				continue
			}
			p.mu.Lock()
			p.last[fd] = pfd.Revents
			p.mu.Unlock()
			readable := pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
			writable := pfd.Revents&unix.POLLOUT != 0
			select {
			case p.events <- pollEvent{cb: cb, readable: readable, writable: writable}:
			case <-p.stop:
				return
			}
		}
	}
}

func (p *pollPoller) close() {
	close(p.stop)
	p.nudge()
	_ = unix.Close(p.wake[0])
	_ = unix.Close(p.wake[1])
}
