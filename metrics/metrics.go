package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_cache_hits_total",
			Help: "Total number of cache hits per data family",
		},
		[]string{"family"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_cache_misses_total",
			Help: "Total number of cache misses per data family",
		},
		[]string{"family"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_cache_evictions_total",
			Help: "Total number of cache keys evicted per data family",
		},
		[]string{"family"},
	)

	CacheKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "argus_cache_keys",
			Help: "Current number of distinct cache keys per data family",
		},
		[]string{"family"},
	)

	RealtimeUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_realtime_upserts_total",
			Help: "Total number of realtime pushes applied to the cache",
		},
		[]string{"family"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_upstream_requests_total",
			Help: "Total number of upstream query requests issued",
		},
		[]string{"endpoint"},
	)

	UpstreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_upstream_failures_total",
			Help: "Total number of failed upstream query requests",
		},
		[]string{"endpoint"},
	)

	DedupedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_deduped_requests_total",
			Help: "Total number of queries coalesced onto an in-flight request",
		},
	)

	StreamMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_stream_messages_total",
			Help: "Total number of streamed messages received per type",
		},
		[]string{"type"},
	)

	StreamDecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_stream_decode_failures_total",
			Help: "Total number of streamed messages dropped due to decode errors",
		},
	)

	StreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_stream_reconnects_total",
			Help: "Total number of stream reconnect attempts",
		},
	)

	CorrelationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_correlation_requests_total",
			Help: "Total number of correlation requests per path (worker, fallback)",
		},
		[]string{"path"},
	)

	CorrelationTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_correlation_timeouts_total",
			Help: "Total number of correlation requests that timed out",
		},
	)

	SnapshotBuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_snapshot_builds_total",
			Help: "Total number of snapshots composed from upstream data",
		},
	)

	SnapshotCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_snapshot_cache_hits_total",
			Help: "Total number of snapshots served from the TTL cache",
		},
	)
)
