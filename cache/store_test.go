package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/core"
)

func testEvent(id string, ts time.Time) core.SecurityEvent {
	return core.SecurityEvent{
		ID:        id,
		Type:      "login_failure",
		Severity:  core.SeverityMedium,
		Timestamp: ts,
		Source:    "auth",
		Status:    core.EventStatusDetected,
	}
}

func TestStoreGetPut(t *testing.T) {
	store := NewStore[core.SecurityEvent](core.FamilyEvents, 10, 0, true)

	_, ok := store.Get("events_last_hour")
	assert.False(t, ok, "empty store must miss")

	want := []core.SecurityEvent{testEvent("e1", time.Now())}
	store.Put("events_last_hour", want)

	got, ok := store.Get("events_last_hour")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStoreEvictionOldestInsertedFirst(t *testing.T) {
	store := NewStore[core.SecurityEvent](core.FamilyEvents, 2, 0, true)

	store.Put("k1", nil)
	store.Put("k2", nil)
	store.Put("k3", nil)
	require.Equal(t, 2, store.Len())
	assert.Equal(t, []string{"k2", "k3"}, store.Keys())

	store.Put("k4", nil)
	assert.Equal(t, 2, store.Len(), "a 4th key must evict back down to the bound")
	assert.Equal(t, []string{"k3", "k4"}, store.Keys(), "the two most recently inserted keys survive")
}

func TestStoreRewriteKeepsEvictionPosition(t *testing.T) {
	store := NewStore[core.SecurityEvent](core.FamilyEvents, 2, 0, true)

	store.Put("k1", nil)
	store.Put("k2", nil)
	store.Put("k1", nil) // rewrite, not reinsertion
	store.Put("k3", nil)

	assert.Equal(t, []string{"k2", "k3"}, store.Keys(), "rewriting k1 must not refresh its insertion position")
}

func TestStoreRealtimePrependAndTruncate(t *testing.T) {
	const maxItems = 5
	store := NewStore[core.SecurityEvent](core.FamilyEvents, 10, maxItems, true)
	store.Put("events_last_24_hours", nil)

	for i := 0; i < 12; i++ {
		store.UpsertRealtime(testEvent(fmt.Sprintf("e%d", i), time.Now()))
	}

	items, ok := store.Get("events_last_24_hours")
	require.True(t, ok)
	require.Len(t, items, maxItems, "list length must never exceed the configured maximum")
	assert.Equal(t, "e11", items[0].ID, "most recent push comes first")
	assert.Equal(t, "e7", items[maxItems-1].ID, "oldest surviving entries are the most recent pushes")
}

func TestStoreRealtimeUpsertReplacesByID(t *testing.T) {
	store := NewStore[core.SecurityMetric](core.FamilyMetrics, 10, 0, false)
	store.Put("metrics_last_24_hours", []core.SecurityMetric{
		{ID: "m1", Name: "Failed Logins", Value: 3, Timestamp: time.Now()},
		{ID: "m2", Name: "Blocked IPs", Value: 7, Timestamp: time.Now()},
	})

	store.UpsertRealtime(core.SecurityMetric{ID: "m1", Name: "Failed Logins", Value: 9, Timestamp: time.Now()})

	items, ok := store.Get("metrics_last_24_hours")
	require.True(t, ok)
	require.Len(t, items, 2, "an id match must replace, never duplicate")
	assert.Equal(t, float64(9), items[0].Value)
}

func TestStoreRealtimeSkipsForeignTimeframes(t *testing.T) {
	store := NewStore[core.SecurityEvent](core.FamilyEvents, 10, 0, true)
	store.Put("events_last_hour", nil)

	store.UpsertRealtime(testEvent("old", time.Now().Add(-3*time.Hour)))

	items, ok := store.Get("events_last_hour")
	require.True(t, ok)
	assert.Empty(t, items, "an out-of-window item must not enter the entry")
}

func TestStoreFlush(t *testing.T) {
	store := NewStore[core.SecurityEvent](core.FamilyEvents, 10, 0, true)
	store.Put("k1", []core.SecurityEvent{testEvent("e1", time.Now())})

	store.Flush()

	assert.Zero(t, store.Len())
	_, ok := store.Get("k1")
	assert.False(t, ok)
}

func TestStoreConcurrentReadersAndWriters(t *testing.T) {
	store := NewStore[core.SecurityEvent](core.FamilyEvents, 50, 100, true)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Put(fmt.Sprintf("k%d", j%20), []core.SecurityEvent{testEvent(fmt.Sprintf("w%d-%d", n, j), time.Now())})
				store.UpsertRealtime(testEvent(fmt.Sprintf("rt%d-%d", n, j), time.Now()))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if items, ok := store.Get(fmt.Sprintf("k%d", j%20)); ok {
					for _, item := range items {
						_ = item.EntityID()
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Len(), 50)
}
