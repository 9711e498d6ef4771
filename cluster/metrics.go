package cluster

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors a Client reports against. They
// are always constructed; newMetrics only wires them into a registry when
// the caller supplies one (a nil prometheus.Registerer means "don't
// export metrics," not "don't track them").
type Metrics struct {
	poolConnectionsInUse *prometheus.GaugeVec
	fanoutDuration       *prometheus.HistogramVec
	fanoutShardsTotal    prometheus.Counter
	shardErrorsTotal     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		poolConnectionsInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shardis_pool_connections_in_use",
			Help: "Connections currently checked out of a shard's connection pool.",
		}, []string{"host"}),
		fanoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shardis_fanout_duration_seconds",
			Help:    "Wall-clock time to complete a multi-shard fan-out operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		fanoutShardsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shardis_fanout_shards_total",
			Help: "Number of shards touched by fan-out operations, cumulative.",
		}),
		shardErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shardis_shard_errors_total",
			Help: "Connection or timeout errors observed per shard.",
		}, []string{"host"}),
	}
	if reg != nil {
		reg.MustRegister(m.poolConnectionsInUse, m.fanoutDuration, m.fanoutShardsTotal, m.shardErrorsTotal)
	}
	return m
}
