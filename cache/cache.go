// Package cache implements the bounded, time-windowed in-memory cache
// backing all four telemetry data families. Keys are canonical encodings
// of a family plus its filter set; entries hold ordered item lists and are
// evicted oldest-inserted-first once a family exceeds its key bound.
package cache

import "argus/core"

// TimeWindowCache groups the four family stores behind one value. Events
// keep most-recent-first order on realtime pushes and cap the per-key list
// length; metrics merge by id in place; anomalies and threats merge by id
// with head insertion for new items.
type TimeWindowCache struct {
	Metrics   *Store[core.SecurityMetric]
	Events    *Store[core.SecurityEvent]
	Anomalies *Store[core.AnomalyDetection]
	Threats   *Store[core.ThreatIndicator]
}

// New builds a cache bounded to maxKeys distinct keys per family and
// maxEvents items per events-family key.
func New(maxKeys, maxEvents int) *TimeWindowCache {
	return &TimeWindowCache{
		Metrics:   NewStore[core.SecurityMetric](core.FamilyMetrics, maxKeys, 0, false),
		Events:    NewStore[core.SecurityEvent](core.FamilyEvents, maxKeys, maxEvents, true),
		Anomalies: NewStore[core.AnomalyDetection](core.FamilyAnomalies, maxKeys, 0, true),
		Threats:   NewStore[core.ThreatIndicator](core.FamilyThreats, maxKeys, 0, true),
	}
}

// Sizes reports the distinct key count per family.
func (c *TimeWindowCache) Sizes() map[core.Family]int {
	return map[core.Family]int{
		core.FamilyMetrics:   c.Metrics.Len(),
		core.FamilyEvents:    c.Events.Len(),
		core.FamilyAnomalies: c.Anomalies.Len(),
		core.FamilyThreats:   c.Threats.Len(),
	}
}

// Flush drops every cached entry in every family.
func (c *TimeWindowCache) Flush() {
	c.Metrics.Flush()
	c.Events.Flush()
	c.Anomalies.Flush()
	c.Threats.Flush()
}
