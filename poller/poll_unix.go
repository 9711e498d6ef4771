//go:build unix

package poller

import (
	"time"

	"golang.org/x/sys/unix"
)

func init() { register(newPollPoller) }

type pollPoller struct {
	objects map[string]FDer
}

func newPollPoller(objects map[string]FDer) (Poller, error) {
	return &pollPoller{objects: copyObjects(objects)}, nil
}

func (p *pollPoller) Poll(timeout time.Duration) (readable, writable []string, err error) {
	if len(p.objects) == 0 {
		return nil, nil, nil
	}
	hosts := make([]string, 0, len(p.objects))
	fds := make([]unix.PollFd, 0, len(p.objects))
	for host, o := range p.objects {
		hosts = append(hosts, host)
		fds = append(fds, unix.PollFd{Fd: int32(o.SocketFD()), Events: unix.POLLIN | unix.POLLOUT})
	}

	n, err := unix.Poll(fds, millis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if n == 0 {
		return nil, nil, nil
	}
	for i, fd := range fds {
		if fd.Revents&unix.POLLIN != 0 {
			readable = append(readable, hosts[i])
		}
		if fd.Revents&unix.POLLOUT != 0 {
			writable = append(writable, hosts[i])
		}
	}
	return readable, writable, nil
}

func (p *pollPoller) Pop(hostName string) {
	delete(p.objects, hostName)
}

func (p *pollPoller) Len() int { return len(p.objects) }
