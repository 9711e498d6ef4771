// Package cache is the public façade: Get/Set/Delete/GetMany/SetMany,
// memoized-function caching, and a batch-mode scope that collapses many
// memoized lookups into one round trip. BaseCache carries all of that
// logic over a pluggable Backend; SingleCache and ClusterCache are the two
// concrete backends (one go-redis endpoint, or a sharded cluster.Client).
package cache

import "time"

// Backend is the storage operations BaseCache needs: raw bytes in, raw
// bytes out. Encoding/decoding values and deriving keys both happen above
// this layer.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	GetMany(keys []string) ([][]byte, error)
	SetMany(mapping map[string][]byte, ttl time.Duration) error
	DeleteMany(keys []string) error
}
