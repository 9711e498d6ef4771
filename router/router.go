// Package router maps a command/key to the shard host_name responsible for
// it. Two strategies are provided: CRC32-modulo (simple, no rebalancing
// quality) and consistent hashing via a ketama ring (stable under host
// additions/removals).
package router

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"

	"github.com/shardis/shardis/cerrors"
	"github.com/shardis/shardis/hostconfig"
	"github.com/shardis/shardis/ring"
)

// routableCommands is the whitelist of single-key commands a router can
// derive a key from. Multi-key commands (MGET, the collapsed DEL) are
// split upstream by the fan-out engine and never reach a router directly.
var routableCommands = map[string]bool{
	"GET":   true,
	"SET":   true,
	"SETEX": true,
	"DEL":   true,
}

// Router maps keys and commands to shard host names.
type Router interface {
	// HostForKey returns the host_name that owns key.
	HostForKey(key string) (string, error)
	// HostForCommand derives the routing key from args and resolves it.
	HostForCommand(command string, args []string) (string, error)
}

// KeyForCommand returns the routing key for command given its args, or
// cerrors.ErrUnsupportedCommand if command isn't single-key routable.
func KeyForCommand(command string, args []string) (string, error) {
	if !routableCommands[strings.ToUpper(command)] {
		return "", fmt.Errorf("%w: %q", cerrors.ErrUnsupportedCommand, command)
	}
	if len(args) == 0 {
		return "", fmt.Errorf("%w: %q called with no arguments", cerrors.ErrUnsupportedCommand, command)
	}
	return args[0], nil
}

// CRC32Router sorts host names lexicographically once and assigns
// shard = crc32(utf8(key)) mod N.
type CRC32Router struct {
	sortedHostNames []string
}

// NewCRC32Router builds a CRC32Router over hosts.
func NewCRC32Router(hosts hostconfig.HostMap) *CRC32Router {
	names := hosts.Names()
	sort.Strings(names)
	return &CRC32Router{sortedHostNames: names}
}

func (r *CRC32Router) HostForKey(key string) (string, error) {
	if len(r.sortedHostNames) == 0 {
		return "", cerrors.ErrEmptyHostMap
	}
	// The original implementation computes crc32 via Python 2's binascii,
	// which returns a signed 32-bit int, then reduces it with Python's %
	// (floor division, result takes the sign of the divisor). Reproduce
	// both quirks here: reinterpret the checksum as signed before the mod,
	// and floor rather than truncate so a negative checksum still lands
	// on a valid, positive shard index.
	signed := int64(int32(crc32.ChecksumIEEE([]byte(key))))
	n := int64(len(r.sortedHostNames))
	pos := signed % n
	if pos < 0 {
		pos += n
	}
	return r.sortedHostNames[pos], nil
}

func (r *CRC32Router) HostForCommand(command string, args []string) (string, error) {
	key, err := KeyForCommand(command, args)
	if err != nil {
		return "", err
	}
	return r.HostForKey(key)
}

// ConsistentRouter delegates to a ketama ring built over the host configs.
type ConsistentRouter struct {
	hosts hostconfig.HostMap
	ring  *ring.HashRing
}

// NewConsistentRouter builds a ConsistentRouter over hosts, with each host
// weighted equally unless overridden in weights (keyed by host_name).
func NewConsistentRouter(hosts hostconfig.HostMap, weights map[string]int) *ConsistentRouter {
	names := hosts.Names()
	return &ConsistentRouter{hosts: hosts, ring: ring.New(names, weights)}
}

func (r *ConsistentRouter) HostForKey(key string) (string, error) {
	node, ok := r.ring.GetNode(key)
	if !ok {
		return "", fmt.Errorf("%w: ring has no nodes", cerrors.ErrEmptyHostMap)
	}
	return node, nil
}

func (r *ConsistentRouter) HostForCommand(command string, args []string) (string, error) {
	key, err := KeyForCommand(command, args)
	if err != nil {
		return "", err
	}
	return r.HostForKey(key)
}
