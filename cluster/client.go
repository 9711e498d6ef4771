// Package cluster is the fan-out engine: the hard core of shardis. Client
// routes single-key commands to the one shard that owns them and splits
// multi-key commands (MGET, MSETWITHEXPIRY, MDELETE) into per-shard
// shardbuffer.Buffers, drives them to completion through a poller.Poller,
// and reassembles replies in the caller's original key order.
package cluster

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shardis/shardis/cerrors"
	"github.com/shardis/shardis/hostconfig"
	"github.com/shardis/shardis/logging"
	"github.com/shardis/shardis/poller"
	"github.com/shardis/shardis/pool"
	"github.com/shardis/shardis/redisconn"
	"github.com/shardis/shardis/router"
	"github.com/shardis/shardis/shardbuffer"
)

// Defaults for the knobs an Option can override.
const (
	DefaultMaxConcurrency       = 64
	DefaultPollerTimeout        = time.Second
	DefaultMaxConnectionsPerHost = pool.DefaultMaxConnections
)

// Client fans commands out across a sharded set of Redis hosts.
type Client struct {
	hosts  hostconfig.HostMap
	router router.Router
	pool   *pool.ClusterPool
	logger logging.Logger
	metrics *Metrics

	maxConcurrency       int
	pollerTimeout        time.Duration
	maxConnectionsPerHost int
}

// Option configures a Client at construction.
type Option func(*clientConfig)

type clientConfig struct {
	logger                logging.Logger
	registerer            prometheus.Registerer
	maxConcurrency        int
	pollerTimeout         time.Duration
	maxConnectionsPerHost int
}

// WithLogger sets the diagnostic logger. Default is logging.NopLogger.
func WithLogger(l logging.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithMetricsRegisterer wires the client's Prometheus collectors into reg.
// Unset, metrics are tracked internally but never exported.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *clientConfig) { c.registerer = reg }
}

// WithMaxConcurrency bounds how many shards a single fan-out operation
// drives at once. Default DefaultMaxConcurrency.
func WithMaxConcurrency(n int) Option {
	return func(c *clientConfig) { c.maxConcurrency = n }
}

// WithPollerTimeout bounds how long a single Poll call inside a fan-out
// waits for a shard to become writable or readable. Default
// DefaultPollerTimeout.
func WithPollerTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.pollerTimeout = d }
}

// WithMaxConnectionsPerHost bounds each shard's connection pool. Default
// DefaultMaxConnectionsPerHost.
func WithMaxConnectionsPerHost(n int) Option {
	return func(c *clientConfig) { c.maxConnectionsPerHost = n }
}

// New builds a Client over hosts, routed by rtr.
func New(hosts hostconfig.HostMap, rtr router.Router, opts ...Option) *Client {
	cfg := &clientConfig{
		logger:                logging.NopLogger{},
		maxConcurrency:        DefaultMaxConcurrency,
		pollerTimeout:         DefaultPollerTimeout,
		maxConnectionsPerHost: DefaultMaxConnectionsPerHost,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		hosts:                 hosts,
		router:                rtr,
		pool:                  pool.NewClusterPool(hosts, cfg.maxConnectionsPerHost, cfg.logger),
		logger:                cfg.logger,
		metrics:               newMetrics(cfg.registerer),
		maxConcurrency:        cfg.maxConcurrency,
		pollerTimeout:         cfg.pollerTimeout,
		maxConnectionsPerHost: cfg.maxConnectionsPerHost,
	}
}

// Close releases every pooled connection.
func (c *Client) Close() error { return c.pool.Close() }

// Get issues a single-key GET, returning nil if the key is absent.
func (c *Client) Get(key string) (any, error) {
	return c.singleKey("GET", key)
}

// Set issues a single-key SET.
func (c *Client) Set(key, value string) (any, error) {
	return c.singleKeyWithArgs("SET", key, value)
}

// SetEx issues a single-key SETEX with the given expiry.
func (c *Client) SetEx(key string, ttl time.Duration, value string) (any, error) {
	return c.singleKeyWithArgs("SETEX", key, strconv.Itoa(int(ttl/time.Second)), value)
}

// Del issues a single-key DEL.
func (c *Client) Del(key string) (any, error) {
	return c.singleKey("DEL", key)
}

func (c *Client) singleKey(command, key string) (any, error) {
	return c.singleKeyWithArgs(command, key)
}

func (c *Client) singleKeyWithArgs(command, key string, extra ...string) (any, error) {
	host, err := c.router.HostForKey(key)
	if err != nil {
		return nil, err
	}
	args := append([]string{command, key}, extra...)
	return c.sendOnHost(host, args)
}

// sendOnHost sends args on a pooled connection to host, retrying once on a
// connection or timeout error with a freshly dialed connection.
func (c *Client) sendOnHost(host string, args []string) (any, error) {
	conn, err := c.pool.Acquire(host)
	if err != nil {
		return nil, err
	}
	c.observePoolInUse(host)

	resp, err := sendAndParse(conn, args)
	if err == nil {
		c.pool.Release(conn)
		c.observePoolInUse(host)
		return resp, nil
	}
	if !isRetryable(err) {
		c.pool.Release(conn)
		return nil, err
	}

	c.metrics.shardErrorsTotal.WithLabelValues(host).Inc()
	c.pool.Discard(conn)
	c.logger.Debugf("retrying %v on %s after %v", args, host, err)

	conn2, err2 := c.pool.Acquire(host)
	if err2 != nil {
		return nil, err2
	}
	resp2, err2 := sendAndParse(conn2, args)
	if err2 != nil {
		c.metrics.shardErrorsTotal.WithLabelValues(host).Inc()
		c.pool.Discard(conn2)
		return nil, err2
	}
	c.pool.Release(conn2)
	return resp2, nil
}

func sendAndParse(conn *redisconn.Conn, args []string) (any, error) {
	if err := conn.SendCommand(args...); err != nil {
		return nil, err
	}
	return conn.ParseResponse()
}

func isRetryable(err error) bool {
	var connErr *cerrors.ConnectionError
	var timeoutErr *cerrors.TimeoutError
	return errors.As(err, &connErr) || errors.As(err, &timeoutErr)
}

func (c *Client) observePoolInUse(host string) {
	hp, ok := c.pool.HostPool(host)
	if !ok {
		return
	}
	c.metrics.poolConnectionsInUse.WithLabelValues(host).Set(float64(hp.InUse()))
}

// MGet fans GET out across every shard the keys resolve to, returning
// values in the same order as keys. A missing key's slot is nil.
func (c *Client) MGet(keys []string) ([]any, error) {
	results, err := c.fanOut("MGET", keys, nil)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = results[k]
	}
	return out, nil
}

// MDelete fans DEL out across every shard the keys resolve to.
func (c *Client) MDelete(keys []string) error {
	_, err := c.fanOut("DEL", keys, nil)
	return err
}

// MSetWithExpiry fans SETEX out across every shard the mapping's keys
// resolve to, each key written with the same ttl. There is no atomic
// multi-key SET-with-expiry in the Redis wire protocol, so this always
// pipelines one SETEX per key on each shard rather than collapsing.
func (c *Client) MSetWithExpiry(mapping map[string]string, ttl time.Duration) error {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	ttlStr := strconv.Itoa(int(ttl / time.Second))
	_, err := c.fanOut("SETEX", keys, func(key string) []string {
		return []string{ttlStr, mapping[key]}
	})
	return err
}

// fanOut groups keys by owning shard, then walks the shards in chunks of at
// most c.maxConcurrency, driving each chunk's shardbuffer.Buffers through a
// readiness poller until fully sent and reading back their replies, before
// moving on to the next chunk. This bounds how many shard sockets are open
// and in flight at once, regardless of how many distinct shards a single
// call touches. extraArgs, when non-nil, supplies the per-key args that
// follow the key in the wire command (e.g. ttl+value for SETEX); nil means
// the command takes only the key (MGET, DEL).
func (c *Client) fanOut(command string, keys []string, extraArgs func(key string) []string) (map[string]any, error) {
	if len(keys) == 0 {
		return map[string]any{}, nil
	}

	start := time.Now()
	defer func() {
		c.metrics.fanoutDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	}()

	groups := make(map[string][]string)
	for _, k := range keys {
		host, err := c.router.HostForKey(k)
		if err != nil {
			return nil, err
		}
		groups[host] = append(groups[host], k)
	}
	c.metrics.fanoutShardsTotal.Add(float64(len(groups)))

	hosts := make([]string, 0, len(groups))
	for host := range groups {
		hosts = append(hosts, host)
	}

	chunkSize := c.maxConcurrency
	if chunkSize <= 0 {
		chunkSize = len(hosts)
	}

	results := make(map[string]any, len(keys))
	for chunkStart := 0; chunkStart < len(hosts); chunkStart += chunkSize {
		chunkEnd := chunkStart + chunkSize
		if chunkEnd > len(hosts) {
			chunkEnd = len(hosts)
		}
		if err := c.fanOutChunk(command, hosts[chunkStart:chunkEnd], groups, extraArgs, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// fanOutChunk drives a single chunk of at most c.maxConcurrency shards to
// completion: acquire a connection per shard, enqueue each shard's keys,
// drain the sends through a poller, fetch every reply, and release the
// connections before returning.
func (c *Client) fanOutChunk(command string, hosts []string, groups map[string][]string, extraArgs func(key string) []string, results map[string]any) error {
	conns := make(map[string]*redisconn.Conn, len(hosts))
	buffers := make(map[string]*shardbuffer.Buffer, len(hosts))
	defer func() {
		for host, conn := range conns {
			c.pool.Release(conn)
			c.observePoolInUse(host)
		}
	}()

	for _, host := range hosts {
		conn, err := c.pool.Acquire(host)
		if err != nil {
			return err
		}
		conns[host] = conn
		c.observePoolInUse(host)

		buf := shardbuffer.New(host, conn, command)
		for _, k := range groups[host] {
			if extraArgs != nil {
				buf.Enqueue(k, extraArgs(k)...)
			} else {
				buf.Enqueue(k)
			}
		}
		buffers[host] = buf
	}

	if err := c.drainSends(buffers, conns); err != nil {
		return err
	}

	for host, buf := range buffers {
		resp, err := buf.FetchResponse()
		if err != nil {
			c.metrics.shardErrorsTotal.WithLabelValues(host).Inc()
			c.pool.Discard(conns[host])
			delete(conns, host)
			return err
		}
		for k, v := range resp {
			results[k] = v
		}
	}
	return nil
}

// drainSends writes every buffer's pending bytes to the wire, using a
// readiness poller to avoid blocking on a shard whose socket buffer is
// full while others are ready to take more data. Responses are read back
// afterwards with blocking reads: shard replies here are small
// (key/value pairs or integers), so multiplexing the read side buys
// nothing over the complexity it costs.
func (c *Client) drainSends(buffers map[string]*shardbuffer.Buffer, conns map[string]*redisconn.Conn) error {
	pending := make(map[string]*shardbuffer.Buffer, len(buffers))
	fders := make(map[string]poller.FDer, len(buffers))
	for host, buf := range buffers {
		pending[host] = buf
		fders[host] = buf
	}

	p, err := poller.New(fders)
	if err != nil {
		return err
	}

	advance := func(host string, buf *shardbuffer.Buffer) error {
		done, err := buf.SendPendingRequest()
		if err != nil {
			c.metrics.shardErrorsTotal.WithLabelValues(host).Inc()
			c.pool.Discard(conns[host])
			delete(conns, host)
			delete(pending, host)
			p.Pop(host)
			return err
		}
		if done {
			delete(pending, host)
			p.Pop(host)
		}
		return nil
	}

	for host, buf := range pending {
		if err := advance(host, buf); err != nil {
			return err
		}
	}

	for len(pending) > 0 {
		_, writable, err := p.Poll(c.pollerTimeout)
		if err != nil {
			return err
		}
		for _, host := range writable {
			buf, ok := pending[host]
			if !ok {
				continue
			}
			if err := advance(host, buf); err != nil {
				return err
			}
		}
	}
	return nil
}
