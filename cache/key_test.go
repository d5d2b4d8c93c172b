package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"argus/core"
)

func TestKeyDeterministic(t *testing.T) {
	opts := core.QueryOptions{
		Timeframe:       core.TimeframeLast7Days,
		Limit:           25,
		Category:        "auth",
		Severity:        []core.Severity{core.SeverityHigh, core.SeverityCritical},
		Source:          []string{"waf", "ids"},
		IncludeResolved: true,
		Page:            2,
	}

	key := Key(core.FamilyEvents, opts)
	assert.Equal(t, "events_last_7_days_limit25_catauth_sevcritical-high_srcids-waf_resolved_page2", key)
	assert.Equal(t, key, Key(core.FamilyEvents, opts), "same options must produce the same key")
}

func TestKeyListOrderIndependent(t *testing.T) {
	a := core.QueryOptions{
		Severity: []core.Severity{core.SeverityCritical, core.SeverityLow},
		Source:   []string{"b", "a"},
	}
	b := core.QueryOptions{
		Severity: []core.Severity{core.SeverityLow, core.SeverityCritical},
		Source:   []string{"a", "b"},
	}

	assert.Equal(t, Key(core.FamilyThreats, a), Key(core.FamilyThreats, b))
}

func TestKeyDefaultTimeframe(t *testing.T) {
	assert.Equal(t, "metrics_last_24_hours", Key(core.FamilyMetrics, core.QueryOptions{}))
}

func TestKeyCustomRange(t *testing.T) {
	start := time.UnixMilli(1700000000000)
	end := time.UnixMilli(1700003600000)
	opts := core.QueryOptions{Timeframe: core.TimeframeCustom, StartDate: start, EndDate: end}

	assert.Equal(t, "events_custom_1700000000000_to_1700003600000", Key(core.FamilyEvents, opts))
}

func TestInTimeframe(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		ts   time.Time
		key  string
		want bool
	}{
		{"within last hour", now.Add(-10 * time.Minute), "events_last_hour", true},
		{"outside last hour", now.Add(-2 * time.Hour), "events_last_hour", false},
		{"within last 24 hours", now.Add(-3 * time.Hour), "events_last_24_hours", true},
		{"outside last 24 hours", now.Add(-25 * time.Hour), "events_last_24_hours", false},
		{"within last 7 days", now.Add(-3 * 24 * time.Hour), "metrics_last_7_days", true},
		{"outside last 7 days", now.Add(-8 * 24 * time.Hour), "metrics_last_7_days", false},
		{"within last 30 days", now.Add(-20 * 24 * time.Hour), "threats_last_30_days", true},
		{"unknown token is permissive", now.Add(-365 * 24 * time.Hour), "events_next_fortnight", true},
		{"zero timestamp excluded", time.Time{}, "events_last_hour", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InTimeframe(tt.ts, tt.key))
		})
	}
}

func TestInTimeframeCustomRange(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	end := time.Now().Add(-time.Hour)
	key := Key(core.FamilyEvents, core.QueryOptions{
		Timeframe: core.TimeframeCustom,
		StartDate: start,
		EndDate:   end,
	})

	assert.True(t, InTimeframe(start.Add(30*time.Minute), key))
	assert.False(t, InTimeframe(end.Add(30*time.Minute), key))
	assert.False(t, InTimeframe(start.Add(-30*time.Minute), key))
}

func TestInTimeframeToday(t *testing.T) {
	now := time.Now()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	assert.True(t, InTimeframe(now, "events_today"))
	assert.False(t, InTimeframe(midnight.Add(-time.Minute), "events_today"))
	assert.True(t, InTimeframe(midnight.Add(-time.Minute), "events_yesterday"))
	assert.False(t, InTimeframe(now, "events_yesterday"))
}
