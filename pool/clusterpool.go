package pool

import (
	"sync"

	"github.com/shardis/shardis/cerrors"
	"github.com/shardis/shardis/hostconfig"
	"github.com/shardis/shardis/logging"
	"github.com/shardis/shardis/redisconn"
)

// ClusterPool fans a HostPool out per shard in a hostconfig.HostMap.
//
// Release/Discard take only a *redisconn.Conn, not a host name, so callers
// deep in the fan-out engine don't need to thread hostName alongside every
// connection they hold. ClusterPool remembers which HostPool a connection
// was born from in a birth map keyed by pointer identity — the Go stand-in
// for the original's weak back-pointer from connection to owning pool,
// since a struct field can't hold an unmanaged weak reference here without
// runtime.AddCleanup bookkeeping this doesn't need.
type ClusterPool struct {
	pools map[string]*HostPool

	mu    sync.Mutex
	birth map[*redisconn.Conn]*HostPool
}

// NewClusterPool builds one HostPool per entry in hosts.
func NewClusterPool(hosts hostconfig.HostMap, maxConnectionsPerHost int, logger logging.Logger) *ClusterPool {
	cp := &ClusterPool{
		pools: make(map[string]*HostPool, len(hosts)),
		birth: make(map[*redisconn.Conn]*HostPool),
	}
	for name, cfg := range hosts {
		cp.pools[name] = NewHostPool(cfg, maxConnectionsPerHost, logger)
	}
	return cp
}

// Acquire checks out a connection to hostName, recording its birth pool.
func (cp *ClusterPool) Acquire(hostName string) (*redisconn.Conn, error) {
	hp, ok := cp.pools[hostName]
	if !ok {
		return nil, cerrors.ErrUnknownHost
	}
	conn, err := hp.Acquire()
	if err != nil {
		return nil, err
	}
	cp.mu.Lock()
	cp.birth[conn] = hp
	cp.mu.Unlock()
	return conn, nil
}

// Release returns conn to the pool it was acquired from.
func (cp *ClusterPool) Release(conn *redisconn.Conn) {
	hp := cp.takeBirth(conn)
	if hp == nil {
		return
	}
	hp.Release(conn)
}

// Discard drops conn instead of returning it to its pool.
func (cp *ClusterPool) Discard(conn *redisconn.Conn) {
	hp := cp.takeBirth(conn)
	if hp == nil {
		_ = conn.Disconnect()
		return
	}
	hp.Discard(conn)
}

func (cp *ClusterPool) takeBirth(conn *redisconn.Conn) *HostPool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	hp := cp.birth[conn]
	delete(cp.birth, conn)
	return hp
}

// HostPool exposes the per-host pool for hostName, e.g. for metrics.
func (cp *ClusterPool) HostPool(hostName string) (*HostPool, bool) {
	hp, ok := cp.pools[hostName]
	return hp, ok
}

// Hosts returns every host name this pool serves.
func (cp *ClusterPool) Hosts() []string {
	names := make([]string, 0, len(cp.pools))
	for name := range cp.pools {
		names = append(names, name)
	}
	return names
}

// Close closes every underlying HostPool.
func (cp *ClusterPool) Close() error {
	var firstErr error
	for _, hp := range cp.pools {
		if err := hp.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
