package cache

import (
	"reflect"
	"sync"
	"time"

	"github.com/shardis/shardis/cerrors"
	"github.com/shardis/shardis/keyderive"
	"github.com/shardis/shardis/logging"
	"github.com/shardis/shardis/promise"
	"github.com/shardis/shardis/serializer"
)

// Bypass is the sentinel cache-bypass value: if fn's result is Bypass, or
// matches any value in a Memoize call's bypassValues list, that result is
// never written back to the cache. The call itself is never skipped — the
// cache is still consulted first and fn still only runs on a miss; bypass
// only suppresses the store that would otherwise follow a miss. Compared
// by identity, not by value, so it can't collide with a legitimate result.
var Bypass = &struct{ name string }{"shardis.cache.Bypass"}

// Result is what Memoize returns: a handle over a promise.Promise that
// resolves to fn's (possibly cached) value. Outside batch mode it is
// already resolved by the time Memoize returns; inside batch mode it only
// resolves once the owning BatchManager is closed.
type Result struct {
	p   *promise.Promise[any]
	err error
}

// Wait returns the result without blocking. Calling Wait before the owning
// batch has been flushed (BatchManager.Close) returns
// cerrors.ErrIllegalState.
func (r *Result) Wait() (any, error) {
	if r.err != nil {
		return nil, r.err
	}
	// Memoize and flush both run synchronously on the caller's goroutine
	// (there is no background event loop here), so by the time a caller
	// reaches Wait after closing its BatchManager every queued promise is
	// already resolved; an unresolved promise here means Wait was called
	// before the batch was flushed.
	if !r.p.IsResolved() {
		return nil, cerrors.ErrIllegalState
	}
	return r.p.Value(), nil
}

type queuedCall struct {
	key          string
	ttl          time.Duration
	bypassValues []any
	fn           func() (any, error)
	p            *promise.Promise[any]
}

// BaseCache implements Get/Set/Delete/GetMany/SetMany/Memoize over a
// Backend. NORMAL mode runs every operation immediately; BATCH mode (see
// BatchMode) queues Memoize calls for a single collective flush.
type BaseCache struct {
	backend       Backend
	codec         serializer.Codec
	namespace     string
	logger        logging.Logger
	defaultExpire time.Duration

	mu      sync.Mutex
	inBatch bool
	queue   []*queuedCall
}

// NewBaseCache builds a BaseCache. A nil codec defaults to JSON, a nil
// logger to logging.NopLogger. defaultExpire is the ttl applied whenever a
// caller passes 0 to Set/SetMany/Memoize; 0 here means "no default", which
// backend implementations treat as "never expire".
func NewBaseCache(backend Backend, codec serializer.Codec, namespace string, logger logging.Logger, defaultExpire time.Duration) *BaseCache {
	if codec == nil {
		codec = serializer.JSONCodec{}
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &BaseCache{backend: backend, codec: codec, namespace: namespace, logger: logger, defaultExpire: defaultExpire}
}

// resolveTTL substitutes the configured default for an omitted (zero) ttl.
func (c *BaseCache) resolveTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return c.defaultExpire
	}
	return ttl
}

func (c *BaseCache) namespacedKey(key string) string {
	if c.namespace == "" {
		return key
	}
	return c.namespace + ":" + key
}

// Get returns the decoded value stored under key, or nil if absent.
func (c *BaseCache) Get(key string) (any, error) {
	raw, err := c.backend.Get(c.namespacedKey(key))
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(raw)
}

// Set encodes value and stores it under key with the given ttl. A zero ttl
// uses the cache's configured default expiry instead.
func (c *BaseCache) Set(key string, value any, ttl time.Duration) error {
	data, err := c.codec.Encode(value)
	if err != nil {
		return err
	}
	return c.backend.Set(c.namespacedKey(key), data, c.resolveTTL(ttl))
}

// Delete removes key.
func (c *BaseCache) Delete(key string) error {
	return c.backend.Delete(c.namespacedKey(key))
}

// Invalidate removes a memoized call's entry; an alias for Delete kept
// separate so call sites read by intent.
func (c *BaseCache) Invalidate(key string) error { return c.Delete(key) }

// GetMany returns the decoded values for keys, in the same order, with
// nil for any absent key.
func (c *BaseCache) GetMany(keys []string) ([]any, error) {
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = c.namespacedKey(k)
	}
	raw, err := c.backend.GetMany(namespaced)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(raw))
	for i, r := range raw {
		v, err := c.codec.Decode(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// SetMany encodes and stores every value in mapping under the same ttl. A
// zero ttl uses the cache's configured default expiry instead.
func (c *BaseCache) SetMany(mapping map[string]any, ttl time.Duration) error {
	encoded := make(map[string][]byte, len(mapping))
	for k, v := range mapping {
		data, err := c.codec.Encode(v)
		if err != nil {
			return err
		}
		encoded[c.namespacedKey(k)] = data
	}
	return c.backend.SetMany(encoded, c.resolveTTL(ttl))
}

// DeleteMany removes every key in keys.
func (c *BaseCache) DeleteMany(keys []string) error {
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = c.namespacedKey(k)
	}
	return c.backend.DeleteMany(namespaced)
}

// BatchMode enters batch scope. Until the returned BatchManager is
// closed, Memoize calls on c are queued rather than hitting the backend
// immediately. Returns cerrors.ErrAlreadyBatchMode if c is already in
// batch mode — batches don't nest.
func (c *BaseCache) BatchMode() (*BatchManager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inBatch {
		return nil, cerrors.ErrAlreadyBatchMode
	}
	c.inBatch = true
	c.queue = nil
	return &BatchManager{cache: c}, nil
}

// Memoize returns a Result over fn's cached value for the key derived
// from prefix/pkgPath/funcName/args/kwargs (see package keyderive). The
// cache is always consulted first, and fn only ever runs on a miss — there
// is no bypass of the lookup itself. bypassValues (together with the
// package-level Bypass sentinel) instead gates the write-back that follows
// a miss: if fn's result matches one of them, that result is still
// returned to the caller but is never stored, so the next call misses
// again and recomputes it.
//
// bypassValues defaults to nil at every call site rather than a shared
// package-level slice — each caller's bypass list is its own, so one
// call site appending to its slice can never leak into another's.
func (c *BaseCache) Memoize(prefix, pkgPath, funcName string, args []any, kwargs map[string]any, bypassValues []any, ttl time.Duration, fn func() (any, error)) *Result {
	key := keyderive.Derive(prefix, pkgPath, funcName, args, kwargs)

	c.mu.Lock()
	if c.inBatch {
		for _, qc := range c.queue {
			if qc.key == key {
				c.mu.Unlock()
				return &Result{p: qc.p}
			}
		}
		qc := &queuedCall{key: key, ttl: ttl, bypassValues: bypassValues, fn: fn, p: promise.New[any]()}
		c.queue = append(c.queue, qc)
		c.mu.Unlock()
		return &Result{p: qc.p}
	}
	c.mu.Unlock()

	value, err := c.resolveOne(key, ttl, bypassValues, fn)
	if err != nil {
		return &Result{err: err}
	}
	return resolvedResult(value)
}

func resolvedResult(value any) *Result {
	p := promise.New[any]()
	_ = p.Resolve(value)
	return &Result{p: p}
}

func (c *BaseCache) resolveOne(key string, ttl time.Duration, bypassValues []any, fn func() (any, error)) (any, error) {
	cached, err := c.Get(key)
	if err == nil && cached != nil {
		return cached, nil
	}
	value, err := fn()
	if err != nil {
		return nil, err
	}
	if isBypassValue(value, bypassValues) {
		return value, nil
	}
	if err := c.Set(key, value, ttl); err != nil {
		return nil, err
	}
	return value, nil
}

// flush runs every queued Memoize call: one GetMany fetches the current
// value for every queued key, misses call fn and are written back with
// SetMany (grouped by ttl, since SetMany takes one ttl for the whole
// batch), and every queued promise resolves in registration order.
func (c *BaseCache) flush() error {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.inBatch = false
	c.mu.Unlock()

	if len(queue) == 0 {
		return nil
	}

	keys := make([]string, len(queue))
	for i, qc := range queue {
		keys[i] = qc.key
	}

	cached, err := c.GetMany(keys)
	if err != nil {
		return err
	}

	toStore := make(map[time.Duration]map[string]any)
	for i, qc := range queue {
		if cached[i] != nil {
			_ = qc.p.Resolve(cached[i])
			continue
		}
		value, err := qc.fn()
		if err != nil {
			return err
		}
		_ = qc.p.Resolve(value)
		if isBypassValue(value, qc.bypassValues) {
			continue
		}
		group, ok := toStore[qc.ttl]
		if !ok {
			group = make(map[string]any)
			toStore[qc.ttl] = group
		}
		group[qc.key] = value
	}

	for ttl, mapping := range toStore {
		if err := c.SetMany(mapping, ttl); err != nil {
			return err
		}
	}
	return nil
}

// BatchManager scopes a batch-mode window opened by BaseCache.BatchMode.
type BatchManager struct {
	cache *BaseCache
}

// Close flushes every Memoize call queued since BatchMode was entered.
func (b *BatchManager) Close() error {
	return b.cache.flush()
}

// isBypassValue reports whether value is the Bypass sentinel or matches
// one of the call's own bypassValues — the signal that value should be
// returned to the caller but never written back to the cache.
func isBypassValue(value any, bypassValues []any) bool {
	if value == any(Bypass) {
		return true
	}
	return matchesAny(value, bypassValues)
}

func matchesAny(v any, sentinels []any) bool {
	for _, s := range sentinels {
		if reflect.DeepEqual(v, s) {
			return true
		}
	}
	return false
}
