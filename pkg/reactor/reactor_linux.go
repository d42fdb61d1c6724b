//go:build linux

package reactor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ashpect/webserv/pkg/conn"
	"github.com/ashpect/webserv/pkg/errs"
	"github.com/ashpect/webserv/pkg/logging"
	"github.com/ashpect/webserv/pkg/request"
)

const (
	readInterest  = unix.EPOLLIN | unix.EPOLLRDHUP
	writeInterest = unix.EPOLLOUT | unix.EPOLLRDHUP
)

// Reactor owns the epoll descriptor, the listeners and every client Conn.
// All methods except construction must be called from the goroutine running
// Run.
type Reactor struct {
	epfd      int
	listeners map[int]int // fd -> routing port
	// paused holds listeners taken out of the interest set after accept ran
	// out of descriptors, keyed by fd, with the earliest time to re-arm.
	paused    map[int]time.Time
	conns     map[int]*conn.Conn
	events    []unix.EpollEvent

	dispatch Dispatcher
	log      logging.Logger
	observer Observer
	idle     time.Duration
	sweep    time.Duration
	now      func() time.Time
	closed   bool
}

// New creates the epoll instance.
func New(d Dispatcher, log logging.Logger, opts ...Option) (*Reactor, error) {
	if d == nil || log == nil {
		return nil, errs.Configf("reactor.New", "dispatcher and logger are required")
	}
	r := &Reactor{
		listeners: make(map[int]int),
		paused:    make(map[int]time.Time),
		conns:     make(map[int]*conn.Conn),
		events:    make([]unix.EpollEvent, maxEvents),
		dispatch:  d,
		log:       log,
		observer:  noopObserver{},
		idle:      conn.DefaultIdleTimeout,
		sweep:     DefaultSweepInterval,
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errs.E(errs.Resource, "reactor.New", fmt.Errorf("epoll_create1: %w", err))
	}
	r.epfd = fd
	return r, nil
}

// Listen opens a non-blocking listening socket on host:port and registers it.
// Requests accepted on it are routed as port; when port is 0 the kernel picks
// one and that is used instead. It returns the bound port.
func (r *Reactor) Listen(host string, port int) (int, error) {
	op := "reactor.Listen " + net.JoinHostPort(host, strconv.Itoa(port))
	sa := &unix.SockaddrInet4{Port: port}
	if host != "" {
		ip := net.ParseIP(host)
		if ip == nil {
			addrs, err := net.LookupIP(host)
			if err != nil || len(addrs) == 0 {
				return 0, errs.Configf(op, "cannot resolve %q", host)
			}
			ip = addrs[0]
		}
		ip4 := ip.To4()
		if ip4 == nil {
			return 0, errs.Configf(op, "%s is not an IPv4 address", ip)
		}
		copy(sa.Addr[:], ip4)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, errs.E(errs.Resource, op, fmt.Errorf("socket: %w", err))
	}
	fail := func(step string, err error) (int, error) {
		unix.Close(fd)
		return 0, errs.E(errs.Resource, op, fmt.Errorf("%s: %w", step, err))
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return fail("listen", err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		return fail("getsockname", err)
	}
	actual := bound.(*unix.SockaddrInet4).Port
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}); err != nil {
		return fail("epoll_ctl", err)
	}
	if port == 0 {
		port = actual
	}
	r.listeners[fd] = port
	r.log.Log(logging.LevelInfo, module, "listening", "addr", net.JoinHostPort(host, strconv.Itoa(actual)))
	return actual, nil
}

// Register adds c with read interest.
func (r *Reactor) Register(c *conn.Conn) error {
	ev := unix.EpollEvent{Events: readInterest, Fd: int32(c.Fd())}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, c.Fd(), &ev); err != nil {
		return errs.E(errs.Resource, "reactor.Register", err)
	}
	c.SetInterest(conn.Readable)
	r.conns[c.Fd()] = c
	return nil
}

// Deregister stops watching c. The descriptor stays open.
func (r *Reactor) Deregister(c *conn.Conn) error {
	delete(r.conns, c.Fd())
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, c.Fd(), nil); err != nil {
		return errs.E(errs.Resource, "reactor.Deregister", err)
	}
	return nil
}

func (r *Reactor) modify(c *conn.Conn, i conn.Interest) error {
	if c.Interest() == i {
		return nil
	}
	mask := uint32(readInterest)
	if i == conn.Writable {
		mask = writeInterest
	}
	ev := unix.EpollEvent{Events: mask, Fd: int32(c.Fd())}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, c.Fd(), &ev); err != nil {
		return errs.E(errs.Resource, "reactor.modify", err)
	}
	c.SetInterest(i)
	return nil
}

// Poll waits up to timeout for readiness. An interrupted wait returns no
// events and no error.
func (r *Reactor) Poll(timeout time.Duration) ([]Event, error) {
	n, err := unix.EpollWait(r.epfd, r.events, int(timeout/time.Millisecond))
	if errors.Is(err, unix.EINTR) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.E(errs.Resource, "reactor.Poll", err)
	}
	out := make([]Event, 0, n)
	for _, e := range r.events[:n] {
		out = append(out, Event{
			Fd:       int(e.Fd),
			Readable: e.Events&unix.EPOLLIN != 0,
			Writable: e.Events&unix.EPOLLOUT != 0,
			Hangup:   e.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0,
		})
	}
	return out, nil
}

// Len returns the number of registered client connections.
func (r *Reactor) Len() int { return len(r.conns) }

// Run dispatches events until ctx is done or polling fails.
func (r *Reactor) Run(ctx context.Context) error {
	r.log.Log(logging.LevelInfo, module, "reactor started", "listeners", len(r.listeners), "sweep", r.sweep)
	for ctx.Err() == nil {
		if err := r.Step(r.sweep); err != nil {
			return err
		}
	}
	r.log.Log(logging.LevelInfo, module, "reactor stopping", "connections", len(r.conns))
	return nil
}

// Step runs one poll, dispatches what became ready and sweeps idle
// connections.
func (r *Reactor) Step(timeout time.Duration) error {
	events, err := r.Poll(timeout)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if port, ok := r.listeners[ev.Fd]; ok {
			r.accept(ev.Fd, port)
			continue
		}
		c, ok := r.conns[ev.Fd]
		if !ok {
			continue
		}
		if ev.Writable {
			r.onWritable(c)
		}
		if !c.Closed() && (ev.Readable || ev.Hangup) {
			r.onReadable(c)
		}
	}
	r.sweepIdle()
	r.resumeListeners(false)
	return nil
}

func (r *Reactor) accept(lfd, port int) {
	for {
		nfd, sa, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == nil:
		case errors.Is(err, unix.EAGAIN):
			return
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
			continue
		default:
			// EMFILE/ENFILE and friends: the pending connection stays queued
			// and the listener stays readable, so stop watching it for a while.
			r.pauseListener(lfd, port, err)
			return
		}

		c, err := conn.New(nfd, peerString(sa), r.log,
			conn.WithIdleTimeout(r.idle), conn.WithClock(r.now), conn.WithPort(port))
		if err != nil {
			unix.Close(nfd)
			r.log.Log(logging.LevelError, module, "connection setup failed", "err", err)
			continue
		}
		if err := r.Register(c); err != nil {
			r.log.Log(logging.LevelError, module, "register failed", "conn", c.ID(), "err", err)
			c.Close()
			continue
		}
		r.observer.Accepted()
	}
}

func (r *Reactor) onReadable(c *conn.Conn) {
	_, err := c.Read()
	switch {
	case err == nil:
	case errors.Is(err, unix.EAGAIN):
		return
	default:
		r.drop(c, "read", err)
		return
	}
	r.process(c)
}

func (r *Reactor) onWritable(c *conn.Conn) {
	if r.flush(c) {
		r.process(c)
	}
}

// process answers every complete request buffered on c, one at a time.
// A new request is only taken once the previous response is fully written.
func (r *Reactor) process(c *conn.Conn) {
	for !c.Closed() && !c.Pending() {
		req, n := request.Assemble(c.Inbound(), r.dispatch.MaxBody(c.Port()))
		if req == nil {
			return
		}
		c.Consume(n)
		resp := r.dispatch.Respond(c.Port(), req)
		c.Queue(resp.Bytes(), !resp.KeepAlive)
		if !r.flush(c) {
			return
		}
	}
}

// flush writes c's pending response. It reports whether c is idle again and
// may take the next request.
func (r *Reactor) flush(c *conn.Conn) bool {
	done, err := c.Flush()
	if err != nil {
		r.drop(c, "write", err)
		return false
	}
	if !done {
		if err := r.modify(c, conn.Writable); err != nil {
			r.drop(c, "write", err)
		}
		return false
	}
	if c.CloseAfterWrite() {
		r.drop(c, "response complete", nil)
		return false
	}
	if err := r.modify(c, conn.Readable); err != nil {
		r.drop(c, "write", err)
		return false
	}
	return true
}

// sweepIdle releases every connection that is no longer alive.
func (r *Reactor) sweepIdle() {
	for _, c := range r.conns {
		if c.IsAlive() {
			continue
		}
		if c.TimedOut() {
			r.observer.TimedOut()
			r.log.Log(logging.LevelWarning, module, "idle connection closed",
				"conn", c.ID(), "peer", c.Peer(), "err", errs.E(errs.Timeout, "reactor.sweep", fmt.Errorf("idle for over %s", r.idle)),
				"partial_write", c.Pending())
		}
		r.drop(c, "sweep", nil)
	}
}

// pauseListener removes lfd from the interest set until the next sweep or
// until a connection is released. It logs once per pause.
func (r *Reactor) pauseListener(lfd, port int, cause error) {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, lfd, &unix.EpollEvent{Events: 0, Fd: int32(lfd)}); err != nil {
		r.log.Log(logging.LevelError, module, "pause listener failed", "port", port, "err", err)
	}
	r.paused[lfd] = r.now().Add(r.sweep)
	r.log.Log(logging.LevelError, module, "accept failed, listener paused",
		"err", errs.E(errs.Resource, "reactor.accept", cause), "port", port, "retry_in", r.sweep)
}

// resumeListeners re-arms paused listeners whose deadline passed, or all of
// them when force is set.
func (r *Reactor) resumeListeners(force bool) {
	if len(r.paused) == 0 {
		return
	}
	now := r.now()
	for lfd, at := range r.paused {
		if !force && now.Before(at) {
			continue
		}
		delete(r.paused, lfd)
		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, lfd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(lfd)}); err != nil {
			r.log.Log(logging.LevelError, module, "resume listener failed", "port", r.listeners[lfd], "err", err)
			continue
		}
		r.log.Log(logging.LevelDebug, module, "listener resumed", "port", r.listeners[lfd])
	}
}

// drop deregisters and releases c.
func (r *Reactor) drop(c *conn.Conn, reason string, cause error) {
	if c.Closed() {
		return
	}
	c.Deactivate()
	if cause != nil {
		r.log.Log(logging.LevelDebug, module, "dropping connection", "conn", c.ID(), "reason", reason, "err", cause)
	}
	if err := r.Deregister(c); err != nil {
		r.log.Log(logging.LevelWarning, module, "deregister failed", "conn", c.ID(), "err", err)
	}
	c.Close()
	r.observer.Closed()
	if !r.closed {
		r.resumeListeners(true)
	}
}

// Close releases every connection, every listener and the epoll descriptor.
func (r *Reactor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	for _, c := range r.conns {
		r.drop(c, "shutdown", nil)
	}
	for fd := range r.listeners {
		unix.Close(fd)
		delete(r.listeners, fd)
		delete(r.paused, fd)
	}
	if err := unix.Close(r.epfd); err != nil {
		return errs.E(errs.Resource, "reactor.Close", err)
	}
	return nil
}

func peerString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	default:
		return "unknown"
	}
}
