// Package service wires the telemetry cache, request coordinator, stream
// client, worker bridge and snapshot aggregator into one explicitly
// constructed Analytics value with a start/stop lifecycle. Hosts build it
// once and pass it to consumers; there is no implicit singleton.
package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"argus/bus"
	"argus/cache"
	"argus/config"
	"argus/core"
	"argus/query"
	"argus/snapshot"
	"argus/stream"
	"argus/worker"
)

// Topics is the typed subscription surface for realtime telemetry.
type Topics struct {
	Metrics      *bus.Topic[core.SecurityMetric]
	Events       *bus.Topic[core.SecurityEvent]
	Anomalies    *bus.Topic[core.AnomalyDetection]
	Threats      *bus.Topic[core.ThreatIndicator]
	Correlations *bus.Topic[core.CorrelationResult]
}

// Stats reports runtime state for operators and the HTTP surface.
type Stats struct {
	CacheKeys       map[core.Family]int `json:"cacheKeys"`
	StreamState     stream.State        `json:"streamState"`
	WorkerAvailable bool                `json:"workerAvailable"`
}

// Analytics is the telemetry cache and correlation service facade.
type Analytics struct {
	cfg    *config.Config
	logger *zap.SugaredLogger

	cache       *cache.TimeWindowCache
	coordinator *query.Coordinator
	stream      *stream.Client
	bridge      *worker.Bridge
	aggregator  *snapshot.Aggregator
	topics      Topics
}

// New constructs the service from configuration. The runner supplies the
// worker execution context; pass nil to run without one (correlation then
// falls back to the upstream endpoint).
func New(cfg *config.Config, runner worker.Runner, logger *zap.SugaredLogger) *Analytics {
	s := &Analytics{
		cfg:    cfg,
		logger: logger,
		cache:  cache.New(cfg.Cache.MaxKeys, cfg.Cache.MaxEvents),
		coordinator: query.New(query.Config{
			BaseURL:   cfg.Upstream.BaseURL,
			Timeout:   cfg.Upstream.Timeout,
			RateLimit: cfg.Upstream.RateLimit,
			RateBurst: cfg.Upstream.RateBurst,
			ChunkSize: cfg.Upstream.BatchSize,
		}, logger),
		topics: Topics{
			Metrics:      bus.NewTopic[core.SecurityMetric]("metric", logger),
			Events:       bus.NewTopic[core.SecurityEvent]("event", logger),
			Anomalies:    bus.NewTopic[core.AnomalyDetection]("anomaly", logger),
			Threats:      bus.NewTopic[core.ThreatIndicator]("threat", logger),
			Correlations: bus.NewTopic[core.CorrelationResult]("correlation", logger),
		},
	}

	s.aggregator = snapshot.New(s, snapshot.Config{
		TTL:              cfg.Snapshot.TTL,
		MaxEntries:       cfg.Snapshot.MaxEntries,
		RecentEventLimit: cfg.Snapshot.RecentEventLimit,
		BlendComputed:    cfg.Snapshot.BlendComputed,
		BlendReported:    cfg.Snapshot.BlendReported,
	}, logger)

	s.bridge = worker.NewBridge(runner, s.coordinator, s, worker.Config{
		QueueSize:          cfg.Worker.QueueSize,
		CorrelationTimeout: cfg.Worker.CorrelationTimeout,
	}, logger)

	s.stream = stream.NewClient(stream.Config{
		URL:         cfg.Upstream.StreamURL,
		BackoffBase: cfg.Stream.ReconnectBase,
		BackoffMax:  cfg.Stream.ReconnectMax,
		MaxAttempts: cfg.Stream.MaxAttempts,
	}, logger)
	s.registerStreamRoutes()

	return s
}

// Start launches the worker bridge and, when enabled, the stream
// connection.
func (s *Analytics) Start(ctx context.Context) {
	s.bridge.Start(ctx)
	if s.cfg.Stream.Enabled {
		s.stream.Connect(ctx)
	}
	s.logger.Infow("Analytics service started",
		"stream", s.cfg.Stream.Enabled,
		"worker", s.bridge.Available())
}

// Stop disconnects the stream, stops the worker bridge and flushes all
// cached state.
func (s *Analytics) Stop() {
	s.stream.Disconnect()
	s.bridge.Stop()
	s.cache.Flush()
	s.aggregator.Flush()
	s.logger.Info("Analytics service stopped")
}

// Topics exposes the typed subscription surface.
func (s *Analytics) Topics() *Topics { return &s.topics }

// fetchFamily answers a family query cache-first: a hit under the
// canonical filter key is served directly, a miss (or explicit refresh)
// goes through the deduplicating coordinator and populates the cache.
func fetchFamily[T core.Entity](ctx context.Context, s *Analytics, store *cache.Store[T], family core.Family, path string, opts core.QueryOptions) ([]T, error) {
	key := cache.Key(family, opts)
	if !opts.RefreshCache {
		if items, ok := store.Get(key); ok {
			return items, nil
		}
	}

	items, err := query.FetchList[T](ctx, s.coordinator, path, opts)
	if err != nil {
		return nil, err
	}
	store.Put(key, items)
	return items, nil
}

// Metrics returns security metrics matching the filters.
func (s *Analytics) Metrics(ctx context.Context, opts core.QueryOptions) ([]core.SecurityMetric, error) {
	return fetchFamily(ctx, s, s.cache.Metrics, core.FamilyMetrics, "/metrics", opts)
}

// Events returns security events matching the filters, most recent first.
func (s *Analytics) Events(ctx context.Context, opts core.QueryOptions) ([]core.SecurityEvent, error) {
	return fetchFamily(ctx, s, s.cache.Events, core.FamilyEvents, "/events", opts)
}

// Anomalies returns detected anomalies matching the filters.
func (s *Analytics) Anomalies(ctx context.Context, opts core.QueryOptions) ([]core.AnomalyDetection, error) {
	return fetchFamily(ctx, s, s.cache.Anomalies, core.FamilyAnomalies, "/anomalies", opts)
}

// Threats returns threat indicators matching the filters.
func (s *Analytics) Threats(ctx context.Context, opts core.QueryOptions) ([]core.ThreatIndicator, error) {
	return fetchFamily(ctx, s, s.cache.Threats, core.FamilyThreats, "/threats", opts)
}

// EventsByID resolves events by id through the chunked batch endpoint.
func (s *Analytics) EventsByID(ctx context.Context, ids []string, opts core.QueryOptions) (map[string]core.SecurityEvent, error) {
	return query.BatchFetch[core.SecurityEvent](ctx, s.coordinator, "/events", ids, opts)
}

// MetricsByID resolves metrics by id through the chunked batch endpoint.
func (s *Analytics) MetricsByID(ctx context.Context, ids []string, opts core.QueryOptions) (map[string]core.SecurityMetric, error) {
	return query.BatchFetch[core.SecurityMetric](ctx, s.coordinator, "/metrics", ids, opts)
}

// AnomaliesByID resolves anomalies by id through the chunked batch endpoint.
func (s *Analytics) AnomaliesByID(ctx context.Context, ids []string, opts core.QueryOptions) (map[string]core.AnomalyDetection, error) {
	return query.BatchFetch[core.AnomalyDetection](ctx, s.coordinator, "/anomalies", ids, opts)
}

// ThreatsByID resolves threat indicators by id through the chunked batch
// endpoint.
func (s *Analytics) ThreatsByID(ctx context.Context, ids []string, opts core.QueryOptions) (map[string]core.ThreatIndicator, error) {
	return query.BatchFetch[core.ThreatIndicator](ctx, s.coordinator, "/threats", ids, opts)
}

// Snapshot returns the aggregated point-in-time view.
func (s *Analytics) Snapshot(ctx context.Context, opts core.QueryOptions) (core.Snapshot, error) {
	return s.aggregator.Snapshot(ctx, opts)
}

// CorrelateEvents runs correlation analysis for the given event ids,
// through the worker when available and the upstream endpoint otherwise.
func (s *Analytics) CorrelateEvents(ctx context.Context, eventIDs []string, opts core.QueryOptions) (core.CorrelationResult, error) {
	return s.bridge.Correlate(ctx, eventIDs, opts)
}

// Refresh forces a fresh fetch for the given families (all four when none
// are named), repopulating their caches.
func (s *Analytics) Refresh(ctx context.Context, families ...core.Family) error {
	if len(families) == 0 {
		families = core.Families()
	}
	opts := core.QueryOptions{RefreshCache: true}

	g, gctx := errgroup.WithContext(ctx)
	for _, family := range families {
		g.Go(func() error {
			var err error
			switch family {
			case core.FamilyMetrics:
				_, err = s.Metrics(gctx, opts)
			case core.FamilyEvents:
				_, err = s.Events(gctx, opts)
			case core.FamilyAnomalies:
				_, err = s.Anomalies(gctx, opts)
			case core.FamilyThreats:
				_, err = s.Threats(gctx, opts)
			}
			return err
		})
	}
	return g.Wait()
}

// Stats reports cache sizes, stream state and worker availability.
func (s *Analytics) Stats() Stats {
	return Stats{
		CacheKeys:       s.cache.Sizes(),
		StreamState:     s.stream.State(),
		WorkerAvailable: s.bridge.Available(),
	}
}
