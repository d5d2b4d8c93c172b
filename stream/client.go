// Package stream maintains the live connection to the telemetry event
// source. Inbound messages carry a type discriminator and a JSON payload;
// decode failures are isolated per message, transport failures trigger
// exponential-backoff reconnects up to a terminal attempt bound.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"argus/metrics"
)

// Streamed message types emitted by the telemetry source.
const (
	MsgSecurityMetric   = "security_metric"
	MsgSecurityEvent    = "security_event"
	MsgAnomalyDetection = "anomaly_detection"
	MsgThreatIndicator  = "threat_indicator"
)

// State is the connection state of the stream client.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// ErrReconnectExhausted is the terminal failure reported once the maximum
// reconnect attempt count is exceeded. No further retries follow; cached
// telemetry keeps serving but goes stale.
var ErrReconnectExhausted = errors.New("stream reconnect attempts exhausted")

// Message is the wire envelope for one streamed event.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Handler consumes the raw payload of one streamed message. A returned
// error marks the single message as undecodable; it is logged and dropped
// without affecting the connection or later messages.
type Handler func(data json.RawMessage) error

// Config holds stream client construction parameters.
type Config struct {
	URL              string
	BackoffBase      time.Duration // first reconnect delay, doubled per attempt
	BackoffMax       time.Duration // delay cap
	MaxAttempts      int           // reconnect attempts before terminal failure
	HandshakeTimeout time.Duration
}

// Client is the stream connection state machine:
// disconnected -> connecting -> connected, with transport errors routing
// through reconnecting back to connecting, and failed as the sole terminal
// state. The attempt counter resets on every successful connection.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	state    State
	handlers map[string][]Handler
	err      error
	attempts int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a stream client. Handlers should be registered with
// OnMessage before Connect.
func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Client{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger:   logger,
		state:    StateDisconnected,
		handlers: make(map[string][]Handler),
	}
}

// OnMessage registers a handler for a streamed message type. Multiple
// handlers per type run in registration order.
func (c *Client) OnMessage(msgType string, h Handler) {
	c.mu.Lock()
	c.handlers[msgType] = append(c.handlers[msgType], h)
	c.mu.Unlock()
}

// Connect starts the connection state machine. It returns immediately; the
// connection is maintained on a background goroutine until Disconnect is
// called, the context is cancelled, or reconnects are exhausted.
func (c *Client) Connect(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.attempts = 0
	c.err = nil
	c.mu.Unlock()

	go c.run(runCtx)
}

// Disconnect stops the state machine and waits for the background
// goroutine to exit.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the terminal error, if the client has failed.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Done returns a channel closed when the state machine goroutine exits.
func (c *Client) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		c.setState(StateConnecting)
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return
			}
			c.logger.Warnw("Stream dial failed", "url", c.cfg.URL, "error", err)
			if !c.waitReconnect(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.state = StateConnected
		c.attempts = 0
		c.mu.Unlock()
		c.logger.Infow("Telemetry stream connected", "url", c.cfg.URL)

		err = c.readLoop(conn)
		conn.Close()

		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		c.logger.Warnw("Stream connection lost", "error", err)
		c.setState(StateReconnecting)
		if !c.waitReconnect(ctx) {
			return
		}
	}
}

// waitReconnect sleeps for the next backoff delay. It returns false when
// the attempt budget is exhausted (terminal failure) or the context is
// cancelled.
func (c *Client) waitReconnect(ctx context.Context) bool {
	c.mu.Lock()
	if c.attempts >= c.cfg.MaxAttempts {
		c.state = StateFailed
		c.err = ErrReconnectExhausted
		c.mu.Unlock()
		c.logger.Errorw("Stream reconnect attempts exhausted, realtime telemetry is stale",
			"attempts", c.cfg.MaxAttempts)
		return false
	}
	delay := backoffDelay(c.cfg.BackoffBase, c.cfg.BackoffMax, c.attempts)
	c.attempts++
	c.mu.Unlock()

	metrics.StreamReconnects.Inc()
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		c.setState(StateDisconnected)
		return false
	}
}

// backoffDelay returns base doubled attempt times, capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base << attempt
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

// dispatch decodes and routes one inbound message. A malformed message is
// logged and dropped; the connection stays up and later messages are
// still processed.
func (c *Client) dispatch(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		metrics.StreamDecodeFailures.Inc()
		c.logger.Warnw("Dropping malformed stream message", "error", err)
		return
	}
	metrics.StreamMessages.WithLabelValues(msg.Type).Inc()

	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers[msg.Type]...)
	c.mu.RUnlock()

	for _, h := range handlers {
		if err := h(msg.Data); err != nil {
			metrics.StreamDecodeFailures.Inc()
			c.logger.Warnw("Dropping undecodable stream payload",
				"type", msg.Type,
				"error", err)
		}
	}
}
