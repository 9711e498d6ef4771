// Package pool manages bounded, lazily-populated connection pools per
// Redis shard. HostPool owns the connections for one host; ClusterPool
// fans a set of HostPools out over a hostconfig.HostMap and routes
// Release calls back to the pool a connection was born from.
package pool

import (
	"sync"

	"github.com/shardis/shardis/cerrors"
	"github.com/shardis/shardis/hostconfig"
	"github.com/shardis/shardis/logging"
	"github.com/shardis/shardis/redisconn"
)

// DefaultMaxConnections caps how many sockets a single HostPool will open
// before Acquire starts blocking for a Release.
const DefaultMaxConnections = 64

// HostPool is a bounded pool of connections to one Redis endpoint.
// Connections are opened lazily: the pool starts empty and dials on first
// demand, up to maxConnections concurrently open.
type HostPool struct {
	cfg            hostconfig.HostConfig
	maxConnections int
	logger         logging.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	idle    []*redisconn.Conn
	numOpen int
	closed  bool
}

// NewHostPool builds a pool for cfg. A maxConnections <= 0 falls back to
// DefaultMaxConnections. A nil logger defaults to logging.NopLogger.
func NewHostPool(cfg hostconfig.HostConfig, maxConnections int, logger logging.Logger) *HostPool {
	if maxConnections <= 0 {
		maxConnections = DefaultMaxConnections
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	p := &HostPool{cfg: cfg, maxConnections: maxConnections, logger: logger}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// HostName returns the shard identifier this pool serves.
func (p *HostPool) HostName() string { return p.cfg.HostName }

// Acquire returns an idle connection if one is available, dials a new one
// if the pool has room, or blocks until another caller releases one.
func (p *HostPool) Acquire() (*redisconn.Conn, error) {
	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return nil, cerrors.ErrIllegalState
		}
		if n := len(p.idle); n > 0 {
			conn := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()
			return conn, nil
		}
		if p.numOpen < p.maxConnections {
			p.numOpen++
			p.mu.Unlock()
			conn, err := redisconn.Dial(p.cfg)
			if err != nil {
				p.mu.Lock()
				p.numOpen--
				p.cond.Signal()
				p.mu.Unlock()
				return nil, err
			}
			return conn, nil
		}
		p.cond.Wait()
	}
}

// Release returns conn to the idle set for reuse.
func (p *HostPool) Release(conn *redisconn.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.numOpen--
		_ = conn.Disconnect()
		p.cond.Signal()
		return
	}
	p.idle = append(p.idle, conn)
	p.cond.Signal()
}

// Discard drops conn instead of returning it to the idle set — used when
// the caller knows the connection is no longer usable (a connection or
// timeout error occurred on it).
func (p *HostPool) Discard(conn *redisconn.Conn) {
	p.logger.Debugf("discarding connection to %s after error", p.cfg.HostName)
	_ = conn.Disconnect()
	p.mu.Lock()
	p.numOpen--
	p.cond.Signal()
	p.mu.Unlock()
}

// Close disconnects every idle connection and marks the pool closed;
// connections currently checked out are closed as they're released.
func (p *HostPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var firstErr error
	for _, conn := range p.idle {
		if err := conn.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.numOpen--
	}
	p.idle = nil
	p.cond.Broadcast()
	return firstErr
}

// InUse reports how many connections are currently checked out.
func (p *HostPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numOpen - len(p.idle)
}
