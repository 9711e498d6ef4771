// Package poller provides a uniform readiness-multiplexing interface over
// N Redis shard sockets: Poll returns the host names that became readable
// or writable, Pop stops watching a host, Len reports how many remain.
//
// Four concrete backends are available, selected at construction time in
// preference order epoll > kqueue > poll > select — whichever of them is
// compiled in for the current GOOS wins (Linux gets epoll, BSD/Darwin get
// kqueue, every other Unix falls back to poll then select). This mirrors
// the original's runtime hasattr(select, ...) check, made a compile-time
// platform choice since Go doesn't expose all four syscalls uniformly.
//
// The library targets Unix platforms only: Redis cluster-sharding infra in
// every example repo this was grounded on deploys to Linux/Darwin, and
// golang.org/x/sys's epoll/kqueue/select wrappers don't exist on Windows.
package poller

import "time"

// FDer is satisfied by anything exposing a raw file descriptor —
// redisconn.Conn and shardbuffer.Buffer both do.
type FDer interface {
	SocketFD() int
}

// Poller multiplexes readiness across a fixed set of (hostName, FDer)
// pairs registered at construction.
type Poller interface {
	// Poll blocks up to timeout (or indefinitely if timeout < 0) and
	// returns the host names ready for reading and for writing. A host
	// may appear in both, in neither, or in exactly one list per call;
	// a host ready on both axes at once may take a few ticks to surface
	// both, which is fine because the fan-out engine keeps polling until
	// it has nothing left to do.
	Poll(timeout time.Duration) (readable, writable []string, err error)
	// Pop stops watching hostName.
	Pop(hostName string)
	// Len reports how many hosts are still registered.
	Len() int
}

type constructor func(objects map[string]FDer) (Poller, error)

// backends is populated by each platform-specific file's init(), in
// filename-alphabetical order: epoll_linux.go < kqueue_bsd.go <
// poll_unix.go < select_unix.go, which happens to match the required
// preference order exactly.
var backends []constructor

func register(c constructor) {
	backends = append(backends, c)
}

// New builds a Poller over objects using the most capable backend
// available on this platform.
func New(objects map[string]FDer) (Poller, error) {
	var lastErr error
	for _, ctor := range backends {
		p, err := ctor(objects)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func copyObjects(objects map[string]FDer) map[string]FDer {
	out := make(map[string]FDer, len(objects))
	for k, v := range objects {
		out[k] = v
	}
	return out
}

func millis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	return int(timeout / time.Millisecond)
}
