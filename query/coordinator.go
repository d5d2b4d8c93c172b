// Package query implements the outbound request coordinator: a rate-limited
// HTTP client for the upstream telemetry endpoints that coalesces identical
// in-flight queries onto a single round trip and splits large id sets into
// parallel chunked batch requests.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"argus/cache"
	"argus/core"
	"argus/metrics"
)

// DefaultChunkSize bounds the number of ids carried by one batch request,
// keeping URLs well under endpoint length limits.
const DefaultChunkSize = 20

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %s", e.Endpoint, e.Status)
}

// Config holds coordinator construction parameters.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // outbound requests per second, 0 disables limiting
	RateBurst int
	ChunkSize int
}

// Coordinator issues upstream GET queries. Identical concurrent queries
// (same endpoint, same canonical filter encoding) share one network call
// and one result; the in-flight entry is released as soon as the call
// settles, so a retry after failure is a fresh request.
type Coordinator struct {
	baseURL   string
	client    *http.Client
	group     singleflight.Group
	limiter   *rate.Limiter
	chunkSize int
	logger    *zap.SugaredLogger

	now func() time.Time
}

// New creates a coordinator for the upstream base URL.
func New(cfg Config, logger *zap.SugaredLogger) *Coordinator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Coordinator{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		limiter:   limiter,
		chunkSize: chunk,
		logger:    logger,
		now:       time.Now,
	}
}

// ChunkSize returns the configured batch chunk size.
func (c *Coordinator) ChunkSize() int { return c.chunkSize }

// params translates options into upstream query parameters. The timeframe
// resolves to concrete ISO-8601 start/end bounds at call time.
func (c *Coordinator) params(opts core.QueryOptions) (url.Values, error) {
	start, end, err := opts.Range(c.now())
	if err != nil {
		return nil, err
	}

	vals := url.Values{}
	vals.Set("start", start.UTC().Format(time.RFC3339))
	vals.Set("end", end.UTC().Format(time.RFC3339))

	if opts.Limit > 0 {
		vals.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Category != "" {
		vals.Set("category", opts.Category)
	}
	if len(opts.Severity) > 0 {
		sevs := make([]string, len(opts.Severity))
		for i, s := range opts.Severity {
			sevs[i] = string(s)
		}
		sort.Strings(sevs)
		for _, s := range sevs {
			vals.Add("severity", s)
		}
	}
	if len(opts.Source) > 0 {
		srcs := append([]string(nil), opts.Source...)
		sort.Strings(srcs)
		for _, s := range srcs {
			vals.Add("source", s)
		}
	}
	if opts.IncludeResolved {
		vals.Set("includeResolved", "true")
	}
	if opts.Page > 0 {
		vals.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.WithCorrelation {
		vals.Set("withCorrelation", "true")
	}
	if opts.WithRecommendations {
		vals.Set("withRecommendations", "true")
	}
	return vals, nil
}

// signature builds the deduplication key. It deliberately uses the
// canonical filter encoding rather than the rendered URL: the URL carries
// sub-second start/end bounds derived from now, which would defeat
// coalescing of concurrent identical queries.
func signature(path string, opts core.QueryOptions, ids []string) string {
	sig := path + "|" + cache.EncodeOptions(opts)
	if len(ids) > 0 {
		sig += "|ids=" + strings.Join(ids, ",")
	}
	return sig
}

// fetch performs the deduplicated GET and returns the raw response body.
func (c *Coordinator) fetch(ctx context.Context, path string, opts core.QueryOptions, ids []string) ([]byte, error) {
	vals, err := c.params(opts)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		vals.Add("ids", id)
	}

	v, err, shared := c.group.Do(signature(path, opts, ids), func() (any, error) {
		return c.do(ctx, path, vals)
	})
	if shared {
		metrics.DedupedRequests.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Coordinator) do(ctx context.Context, path string, vals url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+vals.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	metrics.UpstreamRequests.WithLabelValues(path).Inc()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.UpstreamFailures.WithLabelValues(path).Inc()
		return nil, fmt.Errorf("failed to query %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamFailures.WithLabelValues(path).Inc()
		return nil, &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamFailures.WithLabelValues(path).Inc()
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}
	return body, nil
}

// FetchList issues one logical query against a family endpoint and decodes
// the item list. Concurrent identical calls observe the same round trip.
func FetchList[T any](ctx context.Context, c *Coordinator, path string, opts core.QueryOptions) ([]T, error) {
	body, err := c.fetch(ctx, path, opts, nil)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return items, nil
}

// BatchFetch resolves a set of ids against a family batch endpoint. Ids are
// split into fixed-size chunks issued in parallel and the chunk results are
// merged into a single id-to-item map. An empty id list short-circuits to
// an empty map without any network call.
func BatchFetch[T any](ctx context.Context, c *Coordinator, path string, ids []string, opts core.QueryOptions) (map[string]T, error) {
	merged := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return merged, nil
	}

	batchPath := path + "/batch"
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for start := 0; start < len(ids); start += c.chunkSize {
		chunk := ids[start:min(start+c.chunkSize, len(ids))]
		g.Go(func() error {
			body, err := c.fetch(gctx, batchPath, opts, chunk)
			if err != nil {
				return err
			}
			var part map[string]T
			if err := json.Unmarshal(body, &part); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", batchPath, err)
			}
			mu.Lock()
			for id, item := range part {
				merged[id] = item
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}

// Correlate requests correlation analysis for a set of event ids from the
// external correlation endpoint.
func (c *Coordinator) Correlate(ctx context.Context, eventIDs []string, opts core.QueryOptions) (core.CorrelationResult, error) {
	body, err := c.fetch(ctx, "/correlate", opts, eventIDs)
	if err != nil {
		return core.CorrelationResult{}, err
	}
	var result core.CorrelationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return core.CorrelationResult{}, fmt.Errorf("failed to decode /correlate response: %w", err)
	}
	return result, nil
}
