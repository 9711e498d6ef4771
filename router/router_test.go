package router

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardis/shardis/cerrors"
	"github.com/shardis/shardis/hostconfig"
)

func threeHosts() hostconfig.HostMap {
	return hostconfig.HostMap{
		"0": {HostName: "0"},
		"1": {HostName: "1"},
		"2": {HostName: "2"},
	}
}

func TestCRC32RoutingLiteralScenario(t *testing.T) {
	r := NewCRC32Router(threeHosts())

	cases := map[string]string{
		"c": "0",
		"g": "1",
		"a": "2",
	}
	for key, want := range cases {
		got, err := r.HostForKey(key)
		require.NoError(t, err)
		assert.Equal(t, want, got, "key %q", key)
	}
}

func TestCRC32RoutingIsStable(t *testing.T) {
	r := NewCRC32Router(threeHosts())
	first, err := r.HostForKey("stable-key")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.HostForKey("stable-key")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestUnsupportedCommandRejected(t *testing.T) {
	r := NewCRC32Router(threeHosts())
	_, err := r.HostForCommand("MGET", []string{"a", "b"})
	assert.ErrorIs(t, err, cerrors.ErrUnsupportedCommand)
}

func TestConsistentRouterCoversAllNodes(t *testing.T) {
	hosts := hostconfig.HostMap{}
	for i := 1; i <= 4; i++ {
		name := "node0" + strconv.Itoa(i)
		hosts[name] = hostconfig.HostConfig{HostName: name}
	}
	r := NewConsistentRouter(hosts, nil)

	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		key := "key-" + strconv.Itoa(i)
		host, err := r.HostForKey(key)
		require.NoError(t, err)
		seen[host] = true
	}
	for name := range hosts {
		assert.True(t, seen[name], "node %s never received a key", name)
	}
}

func TestConsistentRouterEmptyIsError(t *testing.T) {
	r := NewConsistentRouter(hostconfig.HostMap{}, nil)
	_, err := r.HostForKey("x")
	assert.Error(t, err)
}
