package core

import "time"

// SnapshotStatus is the overall posture derived from outstanding alerts.
type SnapshotStatus string

const (
	SnapshotStatusNormal    SnapshotStatus = "normal"
	SnapshotStatusElevated  SnapshotStatus = "elevated"
	SnapshotStatusHighAlert SnapshotStatus = "high_alert"
	SnapshotStatusCritical  SnapshotStatus = "critical"
)

// AlertCount tallies unresolved alerts per severity tier.
type AlertCount struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Add increments the bucket matching the given severity. Info and unknown
// severities are not tallied.
func (c *AlertCount) Add(s Severity) {
	switch s {
	case SeverityLow:
		c.Low++
	case SeverityMedium:
		c.Medium++
	case SeverityHigh:
		c.High++
	case SeverityCritical:
		c.Critical++
	}
}

// Status derives the overall posture from the tallied counts.
func (c AlertCount) Status() SnapshotStatus {
	switch {
	case c.Critical > 0:
		return SnapshotStatusCritical
	case c.High > 0:
		return SnapshotStatusHighAlert
	case c.Medium > 0:
		return SnapshotStatusElevated
	default:
		return SnapshotStatusNormal
	}
}

// Snapshot is a point-in-time read-only composite of all four data families
// plus the derived security score and alert tally.
type Snapshot struct {
	Timestamp       time.Time          `json:"timestamp"`
	Metrics         []SecurityMetric   `json:"metrics"`
	RecentEvents    []SecurityEvent    `json:"recentEvents"`
	ActiveAnomalies []AnomalyDetection `json:"activeAnomalies"`
	ActiveThreats   []ThreatIndicator  `json:"activeThreatIndicators"`
	SecurityScore   float64            `json:"securityScore"`
	SecurityStatus  SnapshotStatus     `json:"securityStatus"`
	AlertCount      AlertCount         `json:"alertCount"`
}

// CorrelationResult links a set of events into a related pattern.
type CorrelationResult struct {
	CorrelationID   string          `json:"correlationId"`
	RelatedEvents   []SecurityEvent `json:"relatedEvents"`
	Patterns        []string        `json:"patterns"`
	Score           float64         `json:"score"`
	Recommendations []string        `json:"recommendations"`
}
