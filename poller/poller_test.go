package poller

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeFDer struct {
	r, w *os.File
}

func (p *pipeFDer) SocketFD() int { return int(p.r.Fd()) }

func newPipeFDer(t *testing.T) *pipeFDer {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(); _ = w.Close() })
	return &pipeFDer{r: r, w: w}
}

func TestNewPicksASupportedBackend(t *testing.T) {
	p, err := New(map[string]FDer{})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
}

func TestPollReportsReadability(t *testing.T) {
	a := newPipeFDer(t)
	b := newPipeFDer(t)

	p, err := New(map[string]FDer{"a": a, "b": b})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())

	_, err = a.w.Write([]byte("x"))
	require.NoError(t, err)

	readable, _, err := p.Poll(time.Second)
	require.NoError(t, err)
	assert.Contains(t, readable, "a")
	assert.NotContains(t, readable, "b")
}

func TestPollTimesOutWithNoActivity(t *testing.T) {
	a := newPipeFDer(t)
	p, err := New(map[string]FDer{"a": a})
	require.NoError(t, err)

	readable, _, err := p.Poll(50 * time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, readable)
}

func TestPopStopsWatchingHost(t *testing.T) {
	a := newPipeFDer(t)
	p, err := New(map[string]FDer{"a": a})
	require.NoError(t, err)

	p.Pop("a")
	assert.Equal(t, 0, p.Len())
}
