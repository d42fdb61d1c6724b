package conn

import "golang.org/x/sys/unix"

// descriptor owns one OS file descriptor. release closes it at most once, so
// every exit path may call it.
type descriptor struct {
	fd       int
	released bool
	close    func(int) error
}

func newDescriptor(fd int) descriptor {
	return descriptor{fd: fd, close: unix.Close}
}

// release closes the descriptor if it is still owned. It reports whether
// this call performed the close.
func (d *descriptor) release() (bool, error) {
	if d.released {
		return false, nil
	}
	d.released = true
	return true, d.close(d.fd)
}
