// Package conn holds the per-client connection state the reactor drives:
// descriptor ownership, idle tracking and the read/write buffers.
package conn

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/ashpect/webserv/pkg/errs"
	"github.com/ashpect/webserv/pkg/logging"
)

const (
	module = "conn"

	// DefaultIdleTimeout is how long a connection may go without I/O.
	DefaultIdleTimeout = 60 * time.Second

	readChunk = 4096
)

// Interest is the readiness a connection is waiting for.
type Interest int

const (
	Readable Interest = iota
	Writable
)

// Option is a functional option for building a Conn
type Option func(*Conn)

// WithIdleTimeout overrides DefaultIdleTimeout. Non-positive values are ignored.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.idle = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Conn) {
		c.now = now
	}
}

// WithPort records the local listening port the connection was accepted on.
func WithPort(port int) Option {
	return func(c *Conn) {
		c.port = port
	}
}

// Conn is one accepted client socket.
//
// The descriptor is open exactly while the Conn has not been closed; alive may
// be cleared earlier (timeout, protocol error) while the dispatcher still
// holds the descriptor. A Conn is only touched by the dispatcher goroutine.
type Conn struct {
	id    string
	fd    descriptor
	peer  string
	port  int
	log   logging.Logger
	idle  time.Duration
	now   func() time.Time
	last  time.Time
	alive bool

	timedOut bool
	interest Interest

	in        []byte
	out       []byte
	off       int
	closeDone bool
}

// New wraps an accepted descriptor. The caller hands over ownership of fd
// only on success; a nil logger is a configuration error and leaves fd to the
// caller.
func New(fd int, peer string, log logging.Logger, opts ...Option) (*Conn, error) {
	if log == nil {
		return nil, errs.Configf("conn.New", "logger is required")
	}
	c := &Conn{
		id:    uuid.NewString(),
		fd:    newDescriptor(fd),
		peer:  peer,
		log:   log,
		idle:  DefaultIdleTimeout,
		now:   time.Now,
		alive: true,
	}
	for _, o := range opts {
		o(c)
	}
	c.last = c.now()
	c.log.Log(logging.LevelDebug, module, "connection opened", c.attrs()...)
	return c, nil
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) Fd() int            { return c.fd.fd }
func (c *Conn) Peer() string       { return c.peer }
func (c *Conn) Port() int          { return c.port }
func (c *Conn) Interest() Interest { return c.interest }

// SetInterest records what the dispatcher registered the descriptor for.
func (c *Conn) SetInterest(i Interest) { c.interest = i }

// Touch records I/O activity.
func (c *Conn) Touch() {
	c.last = c.now()
}

// IsAlive reports whether the connection may keep running. The idle check is
// lazy: the first call past the limit clears the flag.
func (c *Conn) IsAlive() bool {
	if !c.alive {
		return false
	}
	if c.now().Sub(c.last) > c.idle {
		c.alive = false
		c.timedOut = true
	}
	return c.alive
}

// TimedOut reports whether liveness was lost to the idle limit.
func (c *Conn) TimedOut() bool { return c.timedOut }

// Deactivate clears liveness without releasing the descriptor.
func (c *Conn) Deactivate() {
	c.alive = false
}

// Close deactivates the connection and closes its descriptor if still owned.
// Every call is logged; only the first closes.
func (c *Conn) Close() error {
	c.alive = false
	closed, err := c.fd.release()
	switch {
	case err != nil:
		c.log.Log(logging.LevelWarning, module, "close failed", append(c.attrs(), "err", err)...)
		return errs.E(errs.Resource, "conn.Close", err)
	case closed:
		c.log.Log(logging.LevelInfo, module, "connection closed", c.attrs()...)
	default:
		c.log.Log(logging.LevelDebug, module, "connection already closed", c.attrs()...)
	}
	return nil
}

// Closed reports whether the descriptor has been released.
func (c *Conn) Closed() bool { return c.fd.released }

// Read pulls whatever the socket has into the inbound buffer. It returns
// io.EOF when the peer closed and unix.EAGAIN when nothing was ready.
func (c *Conn) Read() (int, error) {
	var buf [readChunk]byte
	total := 0
	for {
		n, err := unix.Read(c.fd.fd, buf[:])
		if n > 0 {
			c.in = append(c.in, buf[:n]...)
			total += n
			c.Touch()
		}
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			if total > 0 && errors.Is(err, unix.EAGAIN) {
				return total, nil
			}
			return total, err
		case n == 0:
			if total > 0 {
				return total, nil
			}
			return 0, io.EOF
		case n < len(buf):
			return total, nil
		}
	}
}

// Inbound is the unconsumed request bytes.
func (c *Conn) Inbound() []byte { return c.in }

// Consume drops n bytes from the front of the inbound buffer.
func (c *Conn) Consume(n int) {
	if n >= len(c.in) {
		c.in = c.in[:0]
		return
	}
	c.in = append(c.in[:0], c.in[n:]...)
}

// Queue sets the response to write. closeAfter marks it as the last one.
func (c *Conn) Queue(resp []byte, closeAfter bool) {
	c.out = resp
	c.off = 0
	c.closeDone = closeAfter
}

// Pending reports whether a queued response is not fully written.
func (c *Conn) Pending() bool { return c.off < len(c.out) }

// CloseAfterWrite reports whether the connection ends once the queued
// response is flushed.
func (c *Conn) CloseAfterWrite() bool { return c.closeDone }

// Flush writes as much of the queued response as the socket accepts. It
// returns true once nothing is left.
func (c *Conn) Flush() (bool, error) {
	for c.off < len(c.out) {
		n, err := unix.Write(c.fd.fd, c.out[c.off:])
		if n > 0 {
			c.off += n
			c.Touch()
		}
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return false, nil
		case err != nil:
			return false, err
		}
	}
	c.out, c.off = nil, 0
	return true, nil
}

func (c *Conn) attrs() []any {
	return []any{"conn", c.id, "fd", c.fd.fd, "peer", c.peer}
}
