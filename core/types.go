package core

import "time"

// Family identifies one of the four telemetry data families tracked by the
// service. Family names appear in cache keys and upstream endpoint paths.
type Family string

const (
	FamilyMetrics   Family = "metrics"
	FamilyEvents    Family = "events"
	FamilyAnomalies Family = "anomalies"
	FamilyThreats   Family = "threats"
)

// Families lists all tracked data families in a stable order.
func Families() []Family {
	return []Family{FamilyMetrics, FamilyEvents, FamilyAnomalies, FamilyThreats}
}

// Severity represents ordered alert severity levels.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal position of a severity for comparisons.
// Unknown severities rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityLow:
		return 2
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 4
	case SeverityCritical:
		return 5
	default:
		return 0
	}
}

// ValueKind describes how a metric value should be interpreted.
type ValueKind string

const (
	ValueKindCount      ValueKind = "count"
	ValueKindPercentage ValueKind = "percentage"
	ValueKindDuration   ValueKind = "duration"
	ValueKindScore      ValueKind = "score"
)

// EventStatus tracks the lifecycle of a security event.
type EventStatus string

const (
	EventStatusDetected      EventStatus = "detected"
	EventStatusInvestigating EventStatus = "investigating"
	EventStatusMitigated     EventStatus = "mitigated"
	EventStatusResolved      EventStatus = "resolved"
)

// AnomalyStatus tracks the lifecycle of a detected anomaly.
// Confirmed and false_positive are terminal.
type AnomalyStatus string

const (
	AnomalyStatusNew           AnomalyStatus = "new"
	AnomalyStatusAnalyzing     AnomalyStatus = "analyzing"
	AnomalyStatusConfirmed     AnomalyStatus = "confirmed"
	AnomalyStatusFalsePositive AnomalyStatus = "false_positive"
)

// IndicatorType classifies a threat indicator value.
type IndicatorType string

const (
	IndicatorTypeIP        IndicatorType = "ip"
	IndicatorTypeDomain    IndicatorType = "domain"
	IndicatorTypeFileHash  IndicatorType = "file_hash"
	IndicatorTypeURL       IndicatorType = "url"
	IndicatorTypeUserAgent IndicatorType = "user_agent"
	IndicatorTypeBehavior  IndicatorType = "behavior"
)

// SecurityMetric is a single named measurement from the telemetry source.
// Metrics are mutable by upsert: a push with an existing id replaces the
// cached value in place.
type SecurityMetric struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	ValueKind ValueKind `json:"valueType"`
	Trend     string    `json:"trend,omitempty"`  // "up", "down", "stable"
	Status    string    `json:"status,omitempty"` // "normal", "warning", "critical"
}

// SecurityEvent is a discrete security occurrence.
type SecurityEvent struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Severity        Severity       `json:"severity"`
	Timestamp       time.Time      `json:"timestamp"`
	Source          string         `json:"source"`
	Details         map[string]any `json:"details"`
	RelatedEntities []string       `json:"relatedEntities,omitempty"`
	Status          EventStatus    `json:"status"`
	ActionTaken     string         `json:"actionTaken,omitempty"`
}

// AnomalyDetection is a detected behavioral pattern with a confidence in
// the range [0,1].
type AnomalyDetection struct {
	ID              string        `json:"id"`
	Pattern         string        `json:"pattern"`
	Confidence      float64       `json:"confidence"`
	Severity        Severity      `json:"severity"`
	DetectedAt      time.Time     `json:"detectedAt"`
	AffectedSystems []string      `json:"affectedSystems"`
	Description     string        `json:"description"`
	Recommendations []string      `json:"recommendations"`
	Status          AnomalyStatus `json:"status"`
	RelatedEvents   []string      `json:"relatedEvents,omitempty"`
}

// ThreatIndicator is an observed indicator of compromise with a confidence
// in the range [0,1].
type ThreatIndicator struct {
	ID            string         `json:"id"`
	Type          IndicatorType  `json:"type"`
	Value         string         `json:"value"`
	Confidence    float64        `json:"confidence"`
	Severity      Severity       `json:"severity"`
	FirstSeen     time.Time      `json:"firstSeen"`
	LastSeen      time.Time      `json:"lastSeen"`
	Source        string         `json:"source"`
	Context       map[string]any `json:"context,omitempty"`
	RelatedEvents []string       `json:"relatedEvents,omitempty"`
}

// EntityID and EntityTime give the cache a uniform view of the four
// entity types. EntityTime is the timestamp used for timeframe membership.

func (m SecurityMetric) EntityID() string      { return m.ID }
func (m SecurityMetric) EntityTime() time.Time { return m.Timestamp }

func (e SecurityEvent) EntityID() string      { return e.ID }
func (e SecurityEvent) EntityTime() time.Time { return e.Timestamp }

func (a AnomalyDetection) EntityID() string      { return a.ID }
func (a AnomalyDetection) EntityTime() time.Time { return a.DetectedAt }

func (t ThreatIndicator) EntityID() string      { return t.ID }
func (t ThreatIndicator) EntityTime() time.Time { return t.LastSeen }

// Entity is implemented by all four telemetry entity types.
type Entity interface {
	EntityID() string
	EntityTime() time.Time
}
