// Package snapshot composes point-in-time aggregate views across all four
// telemetry families and derives the overall security score and posture.
package snapshot

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"argus/cache"
	"argus/core"
	"argus/metrics"
)

// scoreMetricName is the upstream metric blended into the computed score
// when present.
const scoreMetricName = "Security Score"

// Score penalties per active anomaly and base impacts per threat
// indicator, keyed by severity tier. Threat impact is scaled by the
// indicator's confidence.
var (
	anomalyPenalty = map[core.Severity]float64{
		core.SeverityLow:      1,
		core.SeverityMedium:   3,
		core.SeverityHigh:     5,
		core.SeverityCritical: 10,
	}
	threatImpact = map[core.Severity]float64{
		core.SeverityLow:      2,
		core.SeverityMedium:   4,
		core.SeverityHigh:     7,
		core.SeverityCritical: 12,
	}
)

// Source supplies the four family queries the aggregator composes. The
// analytics service implements it cache-first through the coordinator.
type Source interface {
	Metrics(ctx context.Context, opts core.QueryOptions) ([]core.SecurityMetric, error)
	Events(ctx context.Context, opts core.QueryOptions) ([]core.SecurityEvent, error)
	Anomalies(ctx context.Context, opts core.QueryOptions) ([]core.AnomalyDetection, error)
	Threats(ctx context.Context, opts core.QueryOptions) ([]core.ThreatIndicator, error)
}

// Config holds aggregator construction parameters.
type Config struct {
	TTL              time.Duration // snapshot cache TTL, longer than family caches
	MaxEntries       int
	RecentEventLimit int

	// Blend weights applied when the upstream reports its own
	// "Security Score" metric. Defaults to a 70/30 split.
	BlendComputed float64
	BlendReported float64
}

// Aggregator builds snapshots and caches them under their filter key with
// an independent TTL.
type Aggregator struct {
	source Source
	cfg    Config
	cache  *expirable.LRU[string, core.Snapshot]
	logger *zap.SugaredLogger
	now    func() time.Time
}

// New creates an aggregator over the given source.
func New(source Source, cfg Config, logger *zap.SugaredLogger) *Aggregator {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 128
	}
	if cfg.RecentEventLimit <= 0 {
		cfg.RecentEventLimit = 10
	}
	if cfg.BlendComputed <= 0 {
		cfg.BlendComputed = 0.7
	}
	if cfg.BlendReported <= 0 {
		cfg.BlendReported = 0.3
	}
	return &Aggregator{
		source: source,
		cfg:    cfg,
		cache:  expirable.NewLRU[string, core.Snapshot](cfg.MaxEntries, nil, cfg.TTL),
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot returns the aggregate view for the given filters, serving from
// the TTL cache unless RefreshCache is set. The four family queries run in
// parallel; recent events are capped and anomalies exclude resolved items.
func (a *Aggregator) Snapshot(ctx context.Context, opts core.QueryOptions) (core.Snapshot, error) {
	key := cache.Key("snapshot", opts)
	if !opts.RefreshCache {
		if snap, ok := a.cache.Get(key); ok {
			metrics.SnapshotCacheHits.Inc()
			return snap, nil
		}
	}

	var (
		mets      []core.SecurityMetric
		events    []core.SecurityEvent
		anomalies []core.AnomalyDetection
		threats   []core.ThreatIndicator
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mets, err = a.source.Metrics(gctx, opts)
		return err
	})
	g.Go(func() error {
		eventOpts := opts
		eventOpts.Limit = a.cfg.RecentEventLimit
		var err error
		events, err = a.source.Events(gctx, eventOpts)
		return err
	})
	g.Go(func() error {
		anomalyOpts := opts
		anomalyOpts.IncludeResolved = false
		var err error
		anomalies, err = a.source.Anomalies(gctx, anomalyOpts)
		return err
	})
	g.Go(func() error {
		var err error
		threats, err = a.source.Threats(gctx, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Snapshot{}, err
	}

	var count core.AlertCount
	for _, anomaly := range anomalies {
		if anomaly.Status == core.AnomalyStatusFalsePositive {
			continue
		}
		count.Add(anomaly.Severity)
	}
	for _, threat := range threats {
		count.Add(threat.Severity)
	}

	snap := core.Snapshot{
		Timestamp:       a.now(),
		Metrics:         mets,
		RecentEvents:    events,
		ActiveAnomalies: anomalies,
		ActiveThreats:   threats,
		SecurityScore:   a.score(mets, anomalies, threats),
		SecurityStatus:  count.Status(),
		AlertCount:      count,
	}

	a.cache.Add(key, snap)
	metrics.SnapshotBuilds.Inc()
	return snap, nil
}

// score starts at 100, subtracts per-anomaly penalties and
// confidence-scaled threat impacts, blends in a reported "Security Score"
// metric when one exists, and clamps to [0,100].
func (a *Aggregator) score(mets []core.SecurityMetric, anomalies []core.AnomalyDetection, threats []core.ThreatIndicator) float64 {
	score := 100.0

	for _, anomaly := range anomalies {
		if anomaly.Status == core.AnomalyStatusFalsePositive {
			continue
		}
		score -= anomalyPenalty[anomaly.Severity]
	}
	for _, threat := range threats {
		score -= threatImpact[threat.Severity] * threat.Confidence
	}

	for _, m := range mets {
		if m.Name == scoreMetricName {
			score = a.cfg.BlendComputed*score + a.cfg.BlendReported*m.Value
			break
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Flush drops all cached snapshots.
func (a *Aggregator) Flush() {
	a.cache.Purge()
}
