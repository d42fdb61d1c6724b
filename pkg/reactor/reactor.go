// Package reactor is the single-threaded event dispatcher: one epoll
// instance multiplexing every listening and client socket.
package reactor

import (
	"time"

	"github.com/ashpect/webserv/pkg/handler"
	"github.com/ashpect/webserv/pkg/request"
)

const (
	module = "reactor"

	// DefaultSweepInterval bounds how long Poll blocks, and therefore how
	// late an idle connection can be noticed.
	DefaultSweepInterval = time.Second

	maxEvents = 128
)

// Dispatcher turns an assembled request into a response. *handler.Router
// implements it.
type Dispatcher interface {
	Respond(port int, req *request.Request) *handler.Response
	MaxBody(port int) int64
}

// Observer receives connection lifecycle signals.
type Observer interface {
	Accepted()
	Closed()
	TimedOut()
}

type noopObserver struct{}

func (noopObserver) Accepted() {}
func (noopObserver) Closed()   {}
func (noopObserver) TimedOut() {}

// Event is one ready descriptor reported by Poll.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
	// Hangup covers peer shutdown and socket errors.
	Hangup bool
}

// Option is a functional option for building a Reactor
type Option func(*Reactor)

// WithIdleTimeout sets the idle limit applied to accepted connections.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Reactor) {
		r.idle = d
	}
}

// WithSweepInterval sets the poll timeout between idle sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Reactor) {
		if d > 0 {
			r.sweep = d
		}
	}
}

// WithObserver wires connection metrics.
func WithObserver(o Observer) Option {
	return func(r *Reactor) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithClock replaces time.Now for accepted connections.
func WithClock(now func() time.Time) Option {
	return func(r *Reactor) {
		r.now = now
	}
}
