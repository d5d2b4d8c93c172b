package core

import (
	"errors"
	"time"
)

// Timeframe selects a query time window relative to wall-clock now, except
// TimeframeCustom which requires explicit bounds.
type Timeframe string

const (
	TimeframeLastHour    Timeframe = "last_hour"
	TimeframeToday       Timeframe = "today"
	TimeframeYesterday   Timeframe = "yesterday"
	TimeframeLast7Days   Timeframe = "last_7_days"
	TimeframeLast30Days  Timeframe = "last_30_days"
	TimeframeLast24Hours Timeframe = "last_24_hours"
	TimeframeCustom      Timeframe = "custom"
)

// DefaultTimeframe is applied when a query does not name a timeframe.
const DefaultTimeframe = TimeframeLast24Hours

// ErrCustomRangeRequired is returned when a custom timeframe is requested
// without an explicit start date.
var ErrCustomRangeRequired = errors.New("start date is required for custom timeframe")

// QueryOptions is the full, explicitly typed filter set accepted by every
// query operation. The zero value means: last 24 hours, no filters, page 0.
type QueryOptions struct {
	Timeframe Timeframe
	StartDate time.Time // custom timeframe lower bound
	EndDate   time.Time // custom timeframe upper bound; defaults to now

	Limit           int
	Category        string
	Severity        []Severity
	Source          []string
	IncludeResolved bool
	Page            int

	// RefreshCache bypasses the in-memory cache and forces a fresh fetch.
	RefreshCache bool

	// Correlation extras, only meaningful on correlate calls.
	WithCorrelation     bool
	WithRecommendations bool
	EventIDs            []string
}

// EffectiveTimeframe resolves the timeframe, applying the default when unset.
func (o QueryOptions) EffectiveTimeframe() Timeframe {
	if o.Timeframe == "" {
		return DefaultTimeframe
	}
	return o.Timeframe
}

// Range resolves the concrete [start, end] window for the options at the
// given instant. Custom timeframes require StartDate; EndDate falls back
// to now.
func (o QueryOptions) Range(now time.Time) (time.Time, time.Time, error) {
	end := now
	if !o.EndDate.IsZero() {
		end = o.EndDate
	}

	switch o.EffectiveTimeframe() {
	case TimeframeLastHour:
		return now.Add(-time.Hour), end, nil
	case TimeframeToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), end, nil
	case TimeframeYesterday:
		y, m, d := now.Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -1)
		return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	case TimeframeLast7Days:
		return now.Add(-7 * 24 * time.Hour), end, nil
	case TimeframeLast30Days:
		return now.Add(-30 * 24 * time.Hour), end, nil
	case TimeframeCustom:
		if o.StartDate.IsZero() {
			return time.Time{}, time.Time{}, ErrCustomRangeRequired
		}
		return o.StartDate, end, nil
	default:
		return now.Add(-24 * time.Hour), end, nil
	}
}
