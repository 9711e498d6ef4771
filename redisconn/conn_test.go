package redisconn

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardis/shardis/hostconfig"
)

func dialMiniredis(t *testing.T) (*miniredis.Miniredis, *Conn) {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)

	conn, err := Dial(hostconfig.HostConfig{HostName: "a", Host: srv.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Disconnect() })
	return srv, conn
}

func TestSendCommandAndParseResponse(t *testing.T) {
	srv, conn := dialMiniredis(t)
	srv.Set("k", "v")

	require.NoError(t, conn.SendCommand("GET", "k"))
	resp, err := conn.ParseResponse()
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), resp)
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	_, conn := dialMiniredis(t)

	require.NoError(t, conn.SendCommand("GET", "nope"))
	resp, err := conn.ParseResponse()
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestSetExReturnsOK(t *testing.T) {
	_, conn := dialMiniredis(t)

	require.NoError(t, conn.SendCommand("SETEX", "k", "100", "v"))
	resp, err := conn.ParseResponse()
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)
}

func TestPackCommandsConcatenatesPipeline(t *testing.T) {
	conn := &Conn{}
	packed := conn.PackCommands([][]string{{"GET", "a"}, {"GET", "b"}})
	expected := append(append([]byte{}, packCommand("GET", "a")...), packCommand("GET", "b")...)
	assert.Equal(t, expected, packed)
}

func TestSocketFDIsValid(t *testing.T) {
	_, conn := dialMiniredis(t)
	assert.GreaterOrEqual(t, conn.SocketFD(), 0)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	_, conn := dialMiniredis(t)
	require.NoError(t, conn.Disconnect())
	require.NoError(t, conn.Disconnect())
}
