//go:build !linux

package reactor

import (
	"context"
	"errors"
	"time"

	"github.com/ashpect/webserv/pkg/errs"
	"github.com/ashpect/webserv/pkg/logging"
)

var errUnsupported = errors.New("epoll is only available on linux")

// Reactor is unavailable on this platform; New always fails.
type Reactor struct {
	observer Observer
	idle     time.Duration
	sweep    time.Duration
	now      func() time.Time
}

func New(Dispatcher, logging.Logger, ...Option) (*Reactor, error) {
	return nil, errs.E(errs.Configuration, "reactor.New", errUnsupported)
}

func (*Reactor) Listen(string, int) (int, error) { return 0, errUnsupported }
func (*Reactor) Run(context.Context) error       { return errUnsupported }
func (*Reactor) Step(time.Duration) error        { return errUnsupported }
func (*Reactor) Len() int                        { return 0 }
func (*Reactor) Close() error                    { return nil }
