package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	c := JSONCodec{}
	data, err := c.Encode(map[string]any{"a": float64(1), "b": "two"})
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": "two"}, got)
}

func TestJSONDecodeAbsentIsNil(t *testing.T) {
	c := JSONCodec{}
	got, err := c.Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJSONCoercesArraysToSlices(t *testing.T) {
	c := JSONCodec{}
	data, err := c.Encode([]int{1, 2, 3})
	require.NoError(t, err)
	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, got)
}

func TestMsgpackRoundTrip(t *testing.T) {
	c := MsgpackCodec{}
	data, err := c.Encode("hello")
	require.NoError(t, err)
	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestMsgpackDecodeAbsentIsNil(t *testing.T) {
	c := MsgpackCodec{}
	got, err := c.Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMsgpackRoundTripMap(t *testing.T) {
	c := MsgpackCodec{}
	data, err := c.Encode(map[string]string{"x": "1", "y": "2"})
	require.NoError(t, err)
	got, err := c.Decode(data)
	require.NoError(t, err)
	asMap, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1", asMap["x"])
	assert.Equal(t, "2", asMap["y"])
}
