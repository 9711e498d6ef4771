package promise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardis/shardis/cerrors"
)

func TestPendingThenResolved(t *testing.T) {
	p := New[string]()
	assert.True(t, p.IsPending())
	assert.False(t, p.IsResolved())
	assert.Equal(t, "", p.Value())

	require.NoError(t, p.Resolve("value"))
	assert.False(t, p.IsPending())
	assert.True(t, p.IsResolved())
	assert.Equal(t, "value", p.Value())
}

func TestDoubleResolveIsError(t *testing.T) {
	p := New[int]()
	require.NoError(t, p.Resolve(1))
	err := p.Resolve(2)
	assert.ErrorIs(t, err, cerrors.ErrDoubleResolve)
	assert.Equal(t, 1, p.Value(), "value from first resolve must stick")
}

func TestCallbacksFireInRegistrationOrder(t *testing.T) {
	p := New[int]()
	var order []int
	p.Then(func(v int) { order = append(order, v*10+1) })
	p.Then(func(v int) { order = append(order, v*10+2) })
	p.Then(func(v int) { order = append(order, v*10+3) })

	require.NoError(t, p.Resolve(7))
	assert.Equal(t, []int{71, 72, 73}, order)
}

func TestLateRegistrationFiresImmediately(t *testing.T) {
	p := New[string]()
	require.NoError(t, p.Resolve("done"))

	var got string
	p.Then(func(v string) { got = v })
	assert.Equal(t, "done", got)
}

func TestNeverBothPendingAndResolved(t *testing.T) {
	p := New[int]()
	assert.NotEqual(t, p.IsPending(), p.IsResolved())
	_ = p.Resolve(1)
	assert.NotEqual(t, p.IsPending(), p.IsResolved())
}
