package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	assert.Equal(t, 1*time.Second, backoffDelay(base, max, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(base, max, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(base, max, 2))
	assert.Equal(t, 8*time.Second, backoffDelay(base, max, 3))
	assert.Equal(t, 16*time.Second, backoffDelay(base, max, 4))
	assert.Equal(t, 30*time.Second, backoffDelay(base, max, 5), "capped at max")
	assert.Equal(t, 30*time.Second, backoffDelay(base, max, 20))
	assert.Equal(t, max, backoffDelay(base, max, 63), "shift overflow falls back to max")
}

// streamServer serves one websocket connection per request and pushes the
// given frames before closing.
func streamServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientDispatchesMessagesByType(t *testing.T) {
	srv := streamServer(t, []string{
		`{"type":"security_event","data":{"id":"e1"}}`,
		`{"type":"security_metric","data":{"id":"m1"}}`,
		`{"type":"security_event","data":{"id":"e2"}}`,
	})

	var mu sync.Mutex
	var events, metrics []string
	c := NewClient(Config{URL: wsURL(srv)}, testLogger())
	c.OnMessage(MsgSecurityEvent, func(data json.RawMessage) error {
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		mu.Lock()
		events = append(events, payload.ID)
		mu.Unlock()
		return nil
	})
	c.OnMessage(MsgSecurityMetric, func(data json.RawMessage) error {
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		mu.Lock()
		metrics = append(metrics, payload.ID)
		mu.Unlock()
		return nil
	})

	c.Connect(context.Background())
	defer c.Disconnect()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2 && len(metrics) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"e1", "e2"}, events)
	assert.Equal(t, []string{"m1"}, metrics)
}

func TestMalformedMessageDoesNotBreakStream(t *testing.T) {
	srv := streamServer(t, []string{
		`{not json`,
		`{"data":{"id":"missing-type"}}`,
		`{"type":"security_event","data":{"id":"valid"}}`,
	})

	var mu sync.Mutex
	var got []string
	c := NewClient(Config{URL: wsURL(srv)}, testLogger())
	c.OnMessage(MsgSecurityEvent, func(data json.RawMessage) error {
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, payload.ID)
		mu.Unlock()
		return nil
	})

	c.Connect(context.Background())
	defer c.Disconnect()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"valid"}, got, "valid message after malformed ones is still delivered")
	assert.Equal(t, StateConnected, c.State())
}

func TestHandlerErrorDropsSingleMessage(t *testing.T) {
	srv := streamServer(t, []string{
		`{"type":"security_event","data":"not an object"}`,
		`{"type":"security_event","data":{"id":"ok"}}`,
	})

	var mu sync.Mutex
	var got []string
	c := NewClient(Config{URL: wsURL(srv)}, testLogger())
	c.OnMessage(MsgSecurityEvent, func(data json.RawMessage) error {
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, payload.ID)
		mu.Unlock()
		return nil
	})

	c.Connect(context.Background())
	defer c.Disconnect()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ok"}, got)
}

func TestReconnectExhaustionIsTerminal(t *testing.T) {
	// Nothing listens here, so every dial fails immediately.
	c := NewClient(Config{
		URL:         "ws://127.0.0.1:1",
		BackoffBase: time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
		MaxAttempts: 3,
	}, testLogger())

	c.Connect(context.Background())

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("state machine did not reach a terminal state")
	}

	assert.Equal(t, StateFailed, c.State())
	assert.ErrorIs(t, c.Err(), ErrReconnectExhausted)
}

func TestDisconnectStopsReconnecting(t *testing.T) {
	c := NewClient(Config{
		URL:         "ws://127.0.0.1:1",
		BackoffBase: time.Hour, // long enough that only cancellation can end the wait
		MaxAttempts: 100,
	}, testLogger())

	c.Connect(context.Background())
	time.Sleep(20 * time.Millisecond)
	c.Disconnect()

	assert.Equal(t, StateDisconnected, c.State())
	require.NoError(t, c.Err())
}

func TestAttemptCounterResetsOnSuccessfulConnect(t *testing.T) {
	srv := streamServer(t, []string{`{"type":"security_event","data":{"id":"e1"}}`})

	got := make(chan struct{}, 1)
	c := NewClient(Config{
		URL:         wsURL(srv),
		BackoffBase: time.Millisecond,
		MaxAttempts: 5,
	}, testLogger())
	c.OnMessage(MsgSecurityEvent, func(json.RawMessage) error {
		select {
		case got <- struct{}{}:
		default:
		}
		return nil
	})

	c.Connect(context.Background())
	defer c.Disconnect()

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered")
	}

	c.mu.RLock()
	attempts := c.attempts
	c.mu.RUnlock()
	assert.Zero(t, attempts, "successful connect resets the reconnect budget")
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
