package cache

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"argus/core"
)

// Key derives the canonical cache key for a family and filter set. Two
// option values carrying the same filters always produce the same key:
// tokens are appended in a fixed order and list-valued filters are sorted
// before encoding, so neither field specification order nor list element
// order can yield distinct keys.
//
// Layout: <family>_<timeframe>[_limitN][_catC][_sevS-S][_srcS-S][_resolved][_pageN]
// Custom ranges encode their bounds: <family>_custom_<startms>_to_<endms>.
func Key(family core.Family, opts core.QueryOptions) string {
	return string(family) + "_" + EncodeOptions(opts)
}

// EncodeOptions renders the canonical filter token sequence without the
// family prefix. It is also the serialized-filter half of the request
// coordinator's deduplication signature.
func EncodeOptions(opts core.QueryOptions) string {
	var b strings.Builder

	tf := opts.EffectiveTimeframe()
	if tf == core.TimeframeCustom && !opts.StartDate.IsZero() && !opts.EndDate.IsZero() {
		fmt.Fprintf(&b, "custom_%d_to_%d", opts.StartDate.UnixMilli(), opts.EndDate.UnixMilli())
	} else {
		b.WriteString(string(tf))
	}

	if opts.Limit > 0 {
		fmt.Fprintf(&b, "_limit%d", opts.Limit)
	}
	if opts.Category != "" {
		b.WriteString("_cat")
		b.WriteString(opts.Category)
	}
	if len(opts.Severity) > 0 {
		sevs := make([]string, len(opts.Severity))
		for i, s := range opts.Severity {
			sevs[i] = string(s)
		}
		sort.Strings(sevs)
		b.WriteString("_sev")
		b.WriteString(strings.Join(sevs, "-"))
	}
	if len(opts.Source) > 0 {
		srcs := append([]string(nil), opts.Source...)
		sort.Strings(srcs)
		b.WriteString("_src")
		b.WriteString(strings.Join(srcs, "-"))
	}
	if opts.IncludeResolved {
		b.WriteString("_resolved")
	}
	if opts.Page > 0 {
		fmt.Fprintf(&b, "_page%d", opts.Page)
	}

	return b.String()
}

var customRangeRe = regexp.MustCompile(`custom_(\d+)_to_(\d+)`)

// InTimeframe reports whether a timestamp falls inside the time window
// named by the timeframe token embedded in a cache key, evaluated against
// wall-clock now. Keys carrying an unrecognized token report true, so
// realtime updates are never silently dropped into an unknown bucket.
func InTimeframe(ts time.Time, key string) bool {
	if ts.IsZero() {
		return false
	}
	now := time.Now()

	if m := customRangeRe.FindStringSubmatch(key); m != nil {
		startMs, err1 := strconv.ParseInt(m[1], 10, 64)
		endMs, err2 := strconv.ParseInt(m[2], 10, 64)
		if err1 == nil && err2 == nil {
			start := time.UnixMilli(startMs)
			end := time.UnixMilli(endMs)
			return !ts.Before(start) && !ts.After(end)
		}
	}

	switch {
	case strings.Contains(key, string(core.TimeframeLastHour)):
		return !ts.Before(now.Add(-time.Hour))
	case strings.Contains(key, string(core.TimeframeLast24Hours)):
		return !ts.Before(now.Add(-24 * time.Hour))
	case strings.Contains(key, string(core.TimeframeYesterday)):
		y, m, d := now.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		return !ts.Before(midnight.AddDate(0, 0, -1)) && ts.Before(midnight)
	case strings.Contains(key, string(core.TimeframeToday)):
		y, m, d := now.Date()
		return !ts.Before(time.Date(y, m, d, 0, 0, 0, 0, now.Location()))
	case strings.Contains(key, string(core.TimeframeLast7Days)):
		return !ts.Before(now.Add(-7 * 24 * time.Hour))
	case strings.Contains(key, string(core.TimeframeLast30Days)):
		return !ts.Before(now.Add(-30 * 24 * time.Hour))
	}

	return true
}
