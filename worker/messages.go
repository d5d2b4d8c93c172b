package worker

import "argus/core"

// Request message types accepted by the worker.
const (
	MsgProcessEvent    = "process_event"
	MsgProcessAnomaly  = "process_anomaly"
	MsgProcessThreat   = "process_threat"
	MsgCorrelateEvents = "correlate_events"
	MsgClose           = "close"
)

// Response message types emitted by the worker.
const (
	MsgMetricsUpdate     = "metrics_update"
	MsgEventsUpdate      = "events_update"
	MsgAnomaliesUpdate   = "anomalies_update"
	MsgThreatsUpdate     = "threats_update"
	MsgCorrelationResult = "correlation_result"
)

// Request is one message sent across the worker boundary. Messages are
// plain values: everything crossing the boundary is copied, no shared
// mutable memory.
type Request struct {
	Type          string                `json:"type"`
	CorrelationID string                `json:"correlationId,omitempty"`
	Event         core.SecurityEvent    `json:"event,omitempty"`
	Anomaly       core.AnomalyDetection `json:"anomaly,omitempty"`
	Threat        core.ThreatIndicator  `json:"threat,omitempty"`
	EventIDs      []string              `json:"eventIds,omitempty"`
	Options       core.QueryOptions     `json:"options,omitempty"`
}

// Response is one message received from the worker. Update responses carry
// the cache key their items belong to; correlation responses are matched
// to their request by correlation id.
type Response struct {
	Type          string                  `json:"type"`
	CorrelationID string                  `json:"correlationId,omitempty"`
	Key           string                  `json:"key,omitempty"`
	Metrics       []core.SecurityMetric   `json:"metrics,omitempty"`
	Events        []core.SecurityEvent    `json:"events,omitempty"`
	Anomalies     []core.AnomalyDetection `json:"anomalies,omitempty"`
	Threats       []core.ThreatIndicator  `json:"threats,omitempty"`
	Correlation   core.CorrelationResult  `json:"correlation,omitempty"`
}
