package pool

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardis/shardis/hostconfig"
)

func startMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func cfgFor(srv *miniredis.Miniredis, name string) hostconfig.HostConfig {
	port, _ := strconv.Atoi(srv.Port())
	return hostconfig.HostConfig{HostName: name, Host: srv.Host(), Port: port}
}

func TestHostPoolReusesReleasedConnections(t *testing.T) {
	srv := startMiniredis(t)
	hp := NewHostPool(cfgFor(srv, "a"), 2, nil)
	t.Cleanup(func() { _ = hp.Close() })

	conn, err := hp.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, hp.InUse())

	hp.Release(conn)
	assert.Equal(t, 0, hp.InUse())

	again, err := hp.Acquire()
	require.NoError(t, err)
	assert.Same(t, conn, again)
}

func TestHostPoolDiscardDropsConnection(t *testing.T) {
	srv := startMiniredis(t)
	hp := NewHostPool(cfgFor(srv, "a"), 2, nil)
	t.Cleanup(func() { _ = hp.Close() })

	conn, err := hp.Acquire()
	require.NoError(t, err)
	hp.Discard(conn)
	assert.Equal(t, 0, hp.InUse())

	fresh, err := hp.Acquire()
	require.NoError(t, err)
	assert.NotSame(t, conn, fresh)
}

func TestClusterPoolRoutesReleaseToBirthPool(t *testing.T) {
	srvA := startMiniredis(t)
	srvB := startMiniredis(t)

	hosts := hostconfig.HostMap{
		"a": cfgFor(srvA, "a"),
		"b": cfgFor(srvB, "b"),
	}
	cp := NewClusterPool(hosts, 2, nil)
	t.Cleanup(func() { _ = cp.Close() })

	connA, err := cp.Acquire("a")
	require.NoError(t, err)

	hpA, _ := cp.HostPool("a")
	assert.Equal(t, 1, hpA.InUse())

	cp.Release(connA)
	assert.Equal(t, 0, hpA.InUse())
}

func TestClusterPoolUnknownHostIsError(t *testing.T) {
	cp := NewClusterPool(hostconfig.HostMap{}, 2, nil)
	_, err := cp.Acquire("nope")
	assert.Error(t, err)
}
