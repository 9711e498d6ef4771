//go:build linux

package poller

import (
	"time"

	"golang.org/x/sys/unix"
)

func init() { register(newEpollPoller) }

type epollPoller struct {
	fd       int
	objects  map[string]FDer
	fdToHost map[int]string
}

func newEpollPoller(objects map[string]FDer) (Poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	p := &epollPoller{fd: fd, objects: copyObjects(objects), fdToHost: make(map[int]string, len(objects))}
	for host, o := range p.objects {
		ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT, Fd: int32(o.SocketFD())}
		if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, o.SocketFD(), &ev); err != nil {
			_ = unix.Close(p.fd)
			return nil, err
		}
		p.fdToHost[o.SocketFD()] = host
	}
	return p, nil
}

func (p *epollPoller) Poll(timeout time.Duration) (readable, writable []string, err error) {
	if len(p.objects) == 0 {
		return nil, nil, nil
	}
	events := make([]unix.EpollEvent, len(p.objects))
	n, err := unix.EpollWait(p.fd, events, millis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	for i := 0; i < n; i++ {
		host, ok := p.fdToHost[int(events[i].Fd)]
		if !ok {
			continue
		}
		if events[i].Events&unix.EPOLLIN != 0 {
			readable = append(readable, host)
		}
		if events[i].Events&unix.EPOLLOUT != 0 {
			writable = append(writable, host)
		}
	}
	return readable, writable, nil
}

func (p *epollPoller) Pop(hostName string) {
	o, ok := p.objects[hostName]
	if !ok {
		return
	}
	_ = unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, o.SocketFD(), nil)
	delete(p.fdToHost, o.SocketFD())
	delete(p.objects, hostName)
}

func (p *epollPoller) Len() int { return len(p.objects) }
