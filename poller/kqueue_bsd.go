//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package poller

import (
	"time"

	"golang.org/x/sys/unix"
)

func init() { register(newKqueuePoller) }

type kqueuePoller struct {
	fd       int
	objects  map[string]FDer
	fdToHost map[int]string
}

func newKqueuePoller(objects map[string]FDer) (Poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	p := &kqueuePoller{fd: fd, objects: copyObjects(objects), fdToHost: make(map[int]string, len(objects))}

	changes := make([]unix.Kevent_t, 0, len(objects)*2)
	for host, o := range p.objects {
		changes = append(changes,
			unix.Kevent_t{Ident: uint64(o.SocketFD()), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD},
			unix.Kevent_t{Ident: uint64(o.SocketFD()), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD},
		)
		p.fdToHost[o.SocketFD()] = host
	}
	if len(changes) > 0 {
		if _, err := unix.Kevent(p.fd, changes, nil, nil); err != nil {
			_ = unix.Close(p.fd)
			return nil, err
		}
	}
	return p, nil
}

func (p *kqueuePoller) Poll(timeout time.Duration) (readable, writable []string, err error) {
	if len(p.objects) == 0 {
		return nil, nil, nil
	}
	events := make([]unix.Kevent_t, len(p.objects)*2)
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	n, err := unix.Kevent(p.fd, nil, events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	for i := 0; i < n; i++ {
		host, ok := p.fdToHost[int(events[i].Ident)]
		if !ok {
			continue
		}
		switch events[i].Filter {
		case unix.EVFILT_READ:
			readable = append(readable, host)
		case unix.EVFILT_WRITE:
			writable = append(writable, host)
		}
	}
	return readable, writable, nil
}

func (p *kqueuePoller) Pop(hostName string) {
	o, ok := p.objects[hostName]
	if !ok {
		return
	}
	changes := []unix.Kevent_t{
		{Ident: uint64(o.SocketFD()), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(o.SocketFD()), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(p.fd, changes, nil, nil)
	delete(p.fdToHost, o.SocketFD())
	delete(p.objects, hostName)
}

func (p *kqueuePoller) Len() int { return len(p.objects) }
