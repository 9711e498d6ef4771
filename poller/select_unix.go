//go:build unix

package poller

import (
	"time"

	"golang.org/x/sys/unix"
)

func init() { register(newSelectPoller) }

// selectPoller is the lowest-common-denominator backend: select(2) works
// everywhere unix.Poll does, but is O(highest fd) per call and limited to
// FD_SETSIZE descriptors, so it is only picked when nothing better
// compiled in for this platform.
type selectPoller struct {
	objects map[string]FDer
}

func newSelectPoller(objects map[string]FDer) (Poller, error) {
	return &selectPoller{objects: copyObjects(objects)}, nil
}

func (p *selectPoller) Poll(timeout time.Duration) (readable, writable []string, err error) {
	if len(p.objects) == 0 {
		return nil, nil, nil
	}

	var rfds, wfds unix.FdSet
	maxFd := 0
	for _, o := range p.objects {
		fd := o.SocketFD()
		fdSet(&rfds, fd)
		fdSet(&wfds, fd)
		if fd > maxFd {
			maxFd = fd
		}
	}

	var tv *unix.Timeval
	if timeout >= 0 {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}

	_, err = unix.Select(maxFd+1, &rfds, &wfds, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	for host, o := range p.objects {
		fd := o.SocketFD()
		if fdIsSet(&rfds, fd) {
			readable = append(readable, host)
		}
		if fdIsSet(&wfds, fd) {
			writable = append(writable, host)
		}
	}
	return readable, writable, nil
}

func (p *selectPoller) Pop(hostName string) {
	delete(p.objects, hostName)
}

func (p *selectPoller) Len() int { return len(p.objects) }

const fdSetWordBits = 64

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/fdSetWordBits] |= 1 << (uint(fd) % fdSetWordBits)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/fdSetWordBits]&(1<<(uint(fd)%fdSetWordBits)) != 0
}
