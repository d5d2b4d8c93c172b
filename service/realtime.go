package service

import (
	"encoding/json"

	"argus/core"
	"argus/stream"
)

// registerStreamRoutes wires the four streamed message types into the
// cache, the typed topics, and (for events, anomalies and threats) the
// worker enrichment path. A payload that fails to decode is reported back
// to the stream client, which drops that single message.
func (s *Analytics) registerStreamRoutes() {
	s.stream.OnMessage(stream.MsgSecurityMetric, s.onStreamMetric)
	s.stream.OnMessage(stream.MsgSecurityEvent, s.onStreamEvent)
	s.stream.OnMessage(stream.MsgAnomalyDetection, s.onStreamAnomaly)
	s.stream.OnMessage(stream.MsgThreatIndicator, s.onStreamThreat)
}

func (s *Analytics) onStreamMetric(data json.RawMessage) error {
	var m core.SecurityMetric
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	s.cache.Metrics.UpsertRealtime(m)
	s.topics.Metrics.Publish(m)
	return nil
}

func (s *Analytics) onStreamEvent(data json.RawMessage) error {
	var ev core.SecurityEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	s.cache.Events.UpsertRealtime(ev)
	s.topics.Events.Publish(ev)
	s.bridge.EnrichEvent(ev)
	return nil
}

func (s *Analytics) onStreamAnomaly(data json.RawMessage) error {
	var a core.AnomalyDetection
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	s.cache.Anomalies.UpsertRealtime(a)
	s.topics.Anomalies.Publish(a)
	s.bridge.EnrichAnomaly(a)
	return nil
}

func (s *Analytics) onStreamThreat(data json.RawMessage) error {
	var t core.ThreatIndicator
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	s.cache.Threats.UpsertRealtime(t)
	s.topics.Threats.Publish(t)
	s.bridge.EnrichThreat(t)
	return nil
}

// The methods below implement worker.Sink: update responses coming back
// across the worker boundary land in the same cache the query path reads.

func (s *Analytics) ApplyMetrics(key string, items []core.SecurityMetric) {
	s.cache.Metrics.Put(key, items)
}

func (s *Analytics) ApplyEvents(key string, items []core.SecurityEvent) {
	s.cache.Events.Put(key, items)
}

func (s *Analytics) ApplyAnomalies(key string, items []core.AnomalyDetection) {
	s.cache.Anomalies.Put(key, items)
}

func (s *Analytics) ApplyThreats(key string, items []core.ThreatIndicator) {
	s.cache.Threats.Put(key, items)
}

func (s *Analytics) ApplyCorrelation(result core.CorrelationResult) {
	s.topics.Correlations.Publish(result)
}
