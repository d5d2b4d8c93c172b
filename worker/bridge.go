// Package worker offloads per-event enrichment and multi-event correlation
// to a separate execution context behind an explicit message-passing
// boundary. The bridge owns the request and response channels; the actual
// enrichment computation is supplied as a Runner by the host. When no
// runner is available, correlation falls back to the external correlation
// endpoint and enrichment is skipped as best-effort.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"argus/core"
	"argus/metrics"
)

// ErrCorrelationTimeout is returned when the worker does not answer a
// correlation request within the configured timeout. The registered
// response handler is released regardless.
var ErrCorrelationTimeout = errors.New("event correlation timed out")

// Runner executes worker requests on its own goroutine(s). Run must
// consume requests until the context is cancelled or a close message
// arrives, and may emit responses at any time.
type Runner interface {
	Run(ctx context.Context, requests <-chan Request, responses chan<- Response)
}

// Correlator is the fallback correlation path used when no runner is
// available; the request coordinator implements it against /correlate.
type Correlator interface {
	Correlate(ctx context.Context, eventIDs []string, opts core.QueryOptions) (core.CorrelationResult, error)
}

// Sink receives worker update responses. The analytics service implements
// it by writing into the time-window cache and publishing on the bus.
type Sink interface {
	ApplyMetrics(key string, items []core.SecurityMetric)
	ApplyEvents(key string, items []core.SecurityEvent)
	ApplyAnomalies(key string, items []core.AnomalyDetection)
	ApplyThreats(key string, items []core.ThreatIndicator)
	ApplyCorrelation(result core.CorrelationResult)
}

// Config holds bridge construction parameters.
type Config struct {
	QueueSize          int
	CorrelationTimeout time.Duration
}

// Bridge dispatches enrichment and correlation work across the worker
// boundary and demultiplexes responses back into the process.
type Bridge struct {
	runner   Runner
	fallback Correlator
	sink     Sink
	timeout  time.Duration
	queue    int
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	pending map[string]chan core.CorrelationResult
	running bool

	requests  chan Request
	responses chan Response
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewBridge creates a bridge. A nil runner means the worker context is
// unavailable: enrichment becomes a no-op and correlation uses the
// fallback correlator.
func NewBridge(runner Runner, fallback Correlator, sink Sink, cfg Config, logger *zap.SugaredLogger) *Bridge {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.CorrelationTimeout <= 0 {
		cfg.CorrelationTimeout = 10 * time.Second
	}
	return &Bridge{
		runner:   runner,
		fallback: fallback,
		sink:     sink,
		timeout:  cfg.CorrelationTimeout,
		queue:    cfg.QueueSize,
		logger:   logger,
		pending:  make(map[string]chan core.CorrelationResult),
	}
}

// Start launches the runner and the response demux loop. Starting a bridge
// without a runner succeeds and leaves it in fallback mode.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running || b.runner == nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.requests = make(chan Request, b.queue)
	b.responses = make(chan Response, b.queue)
	b.done = make(chan struct{})
	b.running = true

	go b.runner.Run(runCtx, b.requests, b.responses)
	go b.demux(runCtx)
}

// Stop signals the runner to close and stops the demux loop.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	requests, cancel, done := b.requests, b.cancel, b.done
	b.mu.Unlock()

	select {
	case requests <- Request{Type: MsgClose}:
	default:
	}
	cancel()
	<-done
}

// Available reports whether the worker context is up.
func (b *Bridge) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Enrich forwards an item to the worker, fire-and-forget. When the worker
// is unavailable or its queue is full the request is dropped; enrichment
// is best-effort and has no fallback.
func (b *Bridge) Enrich(req Request) {
	b.mu.Lock()
	running, requests := b.running, b.requests
	b.mu.Unlock()
	if !running {
		return
	}
	select {
	case requests <- req:
	default:
		b.logger.Debugw("Worker queue full, dropping enrichment request", "type", req.Type)
	}
}

// EnrichEvent forwards a streamed security event for enrichment.
func (b *Bridge) EnrichEvent(ev core.SecurityEvent) {
	b.Enrich(Request{Type: MsgProcessEvent, Event: ev})
}

// EnrichAnomaly forwards a streamed anomaly for enrichment.
func (b *Bridge) EnrichAnomaly(a core.AnomalyDetection) {
	b.Enrich(Request{Type: MsgProcessAnomaly, Anomaly: a})
}

// EnrichThreat forwards a streamed threat indicator for enrichment.
func (b *Bridge) EnrichThreat(t core.ThreatIndicator) {
	b.Enrich(Request{Type: MsgProcessThreat, Threat: t})
}

// Correlate performs correlation analysis for a set of event ids. With a
// worker available it sends a correlate_events request tagged with a fresh
// correlation id and awaits the matching response or the timeout, releasing
// the one-shot handler in every outcome. Without a worker it issues the
// equivalent request through the fallback correlator instead of failing.
func (b *Bridge) Correlate(ctx context.Context, eventIDs []string, opts core.QueryOptions) (core.CorrelationResult, error) {
	b.mu.Lock()
	running, requests := b.running, b.requests
	b.mu.Unlock()

	if !running {
		metrics.CorrelationRequests.WithLabelValues("fallback").Inc()
		return b.fallback.Correlate(ctx, eventIDs, opts)
	}
	metrics.CorrelationRequests.WithLabelValues("worker").Inc()

	corrID := fmt.Sprintf("corr_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	resultCh := make(chan core.CorrelationResult, 1)

	b.mu.Lock()
	b.pending[corrID] = resultCh
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, corrID)
		b.mu.Unlock()
	}()

	req := Request{
		Type:          MsgCorrelateEvents,
		CorrelationID: corrID,
		EventIDs:      eventIDs,
		Options:       opts,
	}
	select {
	case requests <- req:
	case <-ctx.Done():
		return core.CorrelationResult{}, ctx.Err()
	}

	select {
	case result := <-resultCh:
		return result, nil
	case <-time.After(b.timeout):
		metrics.CorrelationTimeouts.Inc()
		return core.CorrelationResult{}, ErrCorrelationTimeout
	case <-ctx.Done():
		return core.CorrelationResult{}, ctx.Err()
	}
}

// demux routes worker responses: correlation results to their one-shot
// waiters, update messages into the sink.
func (b *Bridge) demux(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-b.responses:
			b.handle(resp)
		}
	}
}

func (b *Bridge) handle(resp Response) {
	switch resp.Type {
	case MsgCorrelationResult:
		b.mu.Lock()
		ch, ok := b.pending[resp.CorrelationID]
		delete(b.pending, resp.CorrelationID)
		b.mu.Unlock()
		if ok {
			ch <- resp.Correlation
		}
		if b.sink != nil {
			b.sink.ApplyCorrelation(resp.Correlation)
		}
	case MsgMetricsUpdate:
		if b.sink != nil {
			b.sink.ApplyMetrics(resp.Key, resp.Metrics)
		}
	case MsgEventsUpdate:
		if b.sink != nil {
			b.sink.ApplyEvents(resp.Key, resp.Events)
		}
	case MsgAnomaliesUpdate:
		if b.sink != nil {
			b.sink.ApplyAnomalies(resp.Key, resp.Anomalies)
		}
	case MsgThreatsUpdate:
		if b.sink != nil {
			b.sink.ApplyThreats(resp.Key, resp.Threats)
		}
	default:
		b.logger.Warnw("Unknown worker response type", "type", resp.Type)
	}
}
