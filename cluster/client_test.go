package cluster

import (
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardis/shardis/hostconfig"
	"github.com/shardis/shardis/router"
)

func startCluster(t *testing.T, n int) (hostconfig.HostMap, []*miniredis.Miniredis) {
	t.Helper()
	hosts := make(hostconfig.HostMap, n)
	servers := make([]*miniredis.Miniredis, n)
	for i := 0; i < n; i++ {
		srv, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(srv.Close)
		servers[i] = srv
		port, err := strconv.Atoi(srv.Port())
		require.NoError(t, err)
		name := strconv.Itoa(i)
		hosts[name] = hostconfig.HostConfig{HostName: name, Host: srv.Host(), Port: port}
	}
	return hosts, servers
}

func TestSingleKeyRoundTrip(t *testing.T) {
	hosts, _ := startCluster(t, 1)
	c := New(hosts, router.NewCRC32Router(hosts))
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Set("k", "v")
	require.NoError(t, err)

	resp, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), resp)
}

func TestMGetPreservesCallerKeyOrder(t *testing.T) {
	hosts, servers := startCluster(t, 4)
	c := New(hosts, router.NewCRC32Router(hosts))
	t.Cleanup(func() { _ = c.Close() })

	keys := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	for i, k := range keys {
		rtr := router.NewCRC32Router(hosts)
		host, err := rtr.HostForKey(k)
		require.NoError(t, err)
		idx, err := strconv.Atoi(host)
		require.NoError(t, err)
		servers[idx].Set(k, "val-"+strconv.Itoa(i))
	}

	values, err := c.MGet(keys)
	require.NoError(t, err)
	require.Len(t, values, len(keys))
	for i, k := range keys {
		assert.Equal(t, []byte("val-"+strconv.Itoa(i)), values[i], "key %s out of order", k)
	}
}

func TestMSetWithExpiryThenMGet(t *testing.T) {
	hosts, _ := startCluster(t, 3)
	c := New(hosts, router.NewCRC32Router(hosts))
	t.Cleanup(func() { _ = c.Close() })

	mapping := map[string]string{"a": "1", "b": "2", "c": "3"}
	require.NoError(t, c.MSetWithExpiry(mapping, time.Minute))

	keys := []string{"a", "b", "c"}
	values, err := c.MGet(keys)
	require.NoError(t, err)
	for i, k := range keys {
		assert.Equal(t, []byte(mapping[k]), values[i])
	}
}

func TestMDeleteRemovesKeysAcrossShards(t *testing.T) {
	hosts, _ := startCluster(t, 3)
	c := New(hosts, router.NewCRC32Router(hosts))
	t.Cleanup(func() { _ = c.Close() })

	mapping := map[string]string{"a": "1", "b": "2", "c": "3"}
	require.NoError(t, c.MSetWithExpiry(mapping, time.Minute))
	require.NoError(t, c.MDelete([]string{"a", "b", "c"}))

	values, err := c.MGet([]string{"a", "b", "c"})
	require.NoError(t, err)
	for _, v := range values {
		assert.Nil(t, v)
	}
}

func TestMGetWithMaxConcurrencyBelowShardCountStillCoversAllShards(t *testing.T) {
	hosts, servers := startCluster(t, 6)
	c := New(hosts, router.NewCRC32Router(hosts), WithMaxConcurrency(2))
	t.Cleanup(func() { _ = c.Close() })

	keys := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}
	for i, k := range keys {
		rtr := router.NewCRC32Router(hosts)
		host, err := rtr.HostForKey(k)
		require.NoError(t, err)
		idx, err := strconv.Atoi(host)
		require.NoError(t, err)
		servers[idx].Set(k, "val-"+strconv.Itoa(i))
	}

	values, err := c.MGet(keys)
	require.NoError(t, err)
	require.Len(t, values, len(keys))
	for i, k := range keys {
		assert.Equal(t, []byte("val-"+strconv.Itoa(i)), values[i], "key %s out of order", k)
	}
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	hosts, _ := startCluster(t, 1)
	c := New(hosts, router.NewCRC32Router(hosts))
	t.Cleanup(func() { _ = c.Close() })

	resp, err := c.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, resp)
}
