package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"argus/core"
	"argus/worker"
)

// parseOptions translates request query parameters into typed query
// options. Unknown parameters are ignored; malformed numeric or date
// values fall back to the zero value for that field.
func parseOptions(r *http.Request) core.QueryOptions {
	q := r.URL.Query()
	opts := core.QueryOptions{
		Timeframe: core.Timeframe(q.Get("timeframe")),
		Category:  q.Get("category"),
		Source:    q["source"],
	}

	if v := q.Get("start"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.StartDate = t
		}
	}
	if v := q.Get("end"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.EndDate = t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Page = n
		}
	}
	for _, s := range q["severity"] {
		opts.Severity = append(opts.Severity, core.Severity(s))
	}
	opts.IncludeResolved = q.Get("includeResolved") == "true"
	opts.RefreshCache = q.Get("refreshCache") == "true"

	return opts
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (a *API) handleStats(w http.ResponseWriter, _ *http.Request) {
	a.respondJSON(w, a.svc.Stats(), http.StatusOK)
}

func (a *API) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := a.svc.Snapshot(r.Context(), parseOptions(r))
	if err != nil {
		a.logger.Errorw("Snapshot failed", "error", err)
		a.respondError(w, "failed to build snapshot", http.StatusBadGateway)
		return
	}
	a.respondJSON(w, snap, http.StatusOK)
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.Metrics(r.Context(), parseOptions(r))
	if err != nil {
		a.respondUpstreamError(w, "metrics", err)
		return
	}
	a.respondJSON(w, items, http.StatusOK)
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.Events(r.Context(), parseOptions(r))
	if err != nil {
		a.respondUpstreamError(w, "events", err)
		return
	}
	a.respondJSON(w, items, http.StatusOK)
}

func (a *API) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.Anomalies(r.Context(), parseOptions(r))
	if err != nil {
		a.respondUpstreamError(w, "anomalies", err)
		return
	}
	a.respondJSON(w, items, http.StatusOK)
}

func (a *API) handleThreats(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.Threats(r.Context(), parseOptions(r))
	if err != nil {
		a.respondUpstreamError(w, "threats", err)
		return
	}
	a.respondJSON(w, items, http.StatusOK)
}

type correlateRequest struct {
	EventIDs []string `json:"eventIds"`
}

func (a *API) handleCorrelate(w http.ResponseWriter, r *http.Request) {
	var req correlateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.EventIDs) == 0 {
		a.respondError(w, "eventIds is required", http.StatusBadRequest)
		return
	}

	result, err := a.svc.CorrelateEvents(r.Context(), req.EventIDs, parseOptions(r))
	if err != nil {
		if errors.Is(err, worker.ErrCorrelationTimeout) {
			a.respondError(w, "correlation timed out", http.StatusGatewayTimeout)
			return
		}
		a.respondUpstreamError(w, "correlate", err)
		return
	}
	a.respondJSON(w, result, http.StatusOK)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var families []core.Family
	for _, f := range r.URL.Query()["family"] {
		families = append(families, core.Family(f))
	}

	if err := a.svc.Refresh(r.Context(), families...); err != nil {
		a.respondUpstreamError(w, "refresh", err)
		return
	}
	a.respondJSON(w, map[string]string{"status": "refreshed"}, http.StatusOK)
}

func (a *API) respondUpstreamError(w http.ResponseWriter, op string, err error) {
	a.logger.Errorw("Upstream query failed", "op", op, "error", err)
	a.respondError(w, "upstream query failed", http.StatusBadGateway)
}
