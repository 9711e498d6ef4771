// Package shardbuffer holds the queued commands bound for one shard during
// a fan-out operation and drives them onto the wire without blocking the
// goroutine running the fan-out loop. A Buffer is handed to a
// poller.Poller as a poller.FDer and is writable/readable in the same
// sense as the connection it wraps.
package shardbuffer

import (
	"fmt"

	"github.com/shardis/shardis/cerrors"
	"github.com/shardis/shardis/redisconn"
)

// collapsibleCommands can be issued as a single multi-key wire command
// instead of one pipelined command per key. MSET-with-expiry cannot join
// this set: Redis has no atomic "set many keys each with its own TTL"
// command, so per-key SETEX calls are always pipelined individually.
var collapsibleCommands = map[string]bool{
	"MGET": true,
	"DEL":  true,
}

type entry struct {
	key  string
	args []string
}

// Buffer accumulates every (key, extra-args) request destined for one host
// under one command name, then sends and parses them as a unit.
type Buffer struct {
	hostName    string
	conn        *redisconn.Conn
	commandName string
	collapsible bool

	entries []entry

	built     bool
	sendBytes []byte
}

// New builds an empty buffer for commandName against conn on hostName.
// Every entry later enqueued on this buffer must share commandName.
func New(hostName string, conn *redisconn.Conn, commandName string) *Buffer {
	return &Buffer{
		hostName:    hostName,
		conn:        conn,
		commandName: commandName,
		collapsible: collapsibleCommands[commandName],
	}
}

// Enqueue queues one logical request for key, with any args that follow
// the key in the wire command (e.g. ttl and value for SETEX).
func (b *Buffer) Enqueue(key string, args ...string) {
	b.entries = append(b.entries, entry{key: key, args: args})
}

// HostName identifies the shard this buffer is bound for.
func (b *Buffer) HostName() string { return b.hostName }

// SocketFD satisfies poller.FDer by delegating to the owned connection.
func (b *Buffer) SocketFD() int { return b.conn.SocketFD() }

// Conn returns the connection this buffer writes to and reads from.
func (b *Buffer) Conn() *redisconn.Conn { return b.conn }

// Len reports how many requests are queued on this buffer.
func (b *Buffer) Len() int { return len(b.entries) }

// HasPendingRequest reports whether there is wire data still to be sent.
func (b *Buffer) HasPendingRequest() bool {
	return !b.built || len(b.sendBytes) > 0
}

func (b *Buffer) build() {
	if b.built {
		return
	}
	b.built = true

	if b.collapsible && len(b.entries) > 0 {
		args := make([]string, 0, len(b.entries)+1)
		args = append(args, b.commandName)
		for _, e := range b.entries {
			args = append(args, e.key)
		}
		b.sendBytes = b.conn.PackCommand(args...)
		return
	}

	commands := make([][]string, 0, len(b.entries))
	for _, e := range b.entries {
		args := make([]string, 0, len(e.args)+2)
		args = append(args, b.commandName, e.key)
		args = append(args, e.args...)
		commands = append(commands, args)
	}
	b.sendBytes = b.conn.PackCommands(commands)
}

// SendPendingRequest writes as much of the buffer as the socket will take
// right now without blocking. done is true once every byte has been
// handed to the kernel; the caller should keep calling SendPendingRequest
// after the poller reports this host writable again until done is true.
func (b *Buffer) SendPendingRequest() (done bool, err error) {
	b.build()
	for len(b.sendBytes) > 0 {
		n, wouldBlock, err := b.conn.TryWrite(b.sendBytes)
		if err != nil {
			return false, err
		}
		b.sendBytes = b.sendBytes[n:]
		if wouldBlock {
			return false, nil
		}
	}
	return true, nil
}

// FetchResponse blocks until every reply for this buffer's requests has
// been read and returns them keyed by the original request key, in no
// particular order.
//
// A collapsed DEL only gets back a single integer — how many of the keys
// existed — not which ones, so the per-key 1/0 vector is reconstructed by
// crediting the first N keys in enqueue order and zeroing the rest. This
// is an approximation inherited from Redis's own DEL reply shape: callers
// that need exact per-key deletion status should issue individual DEL
// commands instead of relying on collapsing.
func (b *Buffer) FetchResponse() (map[string]any, error) {
	out := make(map[string]any, len(b.entries))

	if b.collapsible && len(b.entries) > 0 {
		resp, err := b.conn.ParseResponse()
		if err != nil {
			return nil, err
		}

		if b.commandName == "DEL" {
			count, ok := resp.(int64)
			if !ok {
				return nil, fmt.Errorf("%w: expected integer reply from DEL, got %T", cerrors.ErrProtocol, resp)
			}
			remaining := count
			for _, e := range b.entries {
				if remaining > 0 {
					out[e.key] = int64(1)
					remaining--
				} else {
					out[e.key] = int64(0)
				}
			}
			return out, nil
		}

		values, ok := resp.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected array reply from %s, got %T", cerrors.ErrProtocol, b.commandName, resp)
		}
		if len(values) != len(b.entries) {
			return nil, fmt.Errorf("%w: %s returned %d values for %d keys", cerrors.ErrProtocol, b.commandName, len(values), len(b.entries))
		}
		for i, e := range b.entries {
			out[e.key] = values[i]
		}
		return out, nil
	}

	for _, e := range b.entries {
		v, err := b.conn.ParseResponse()
		if err != nil {
			return nil, err
		}
		out[e.key] = v
	}
	return out, nil
}
