// Package calendar turns occupancy intervals into per-day duration series.
//
// Everything here is pure: no shared state, safe for concurrent callers.
package calendar

import "time"

// Span is a closed time interval. Spans with Start after End are ignored.
type Span struct {
	Start time.Time
	End   time.Time
}

// DailyDuration is the time accumulated on a single calendar day. Overlapping
// input spans are summed as given, so Duration can exceed 24h.
type DailyDuration struct {
	Date     Date
	Duration time.Duration
}

// Range selects the days Aggregate reports on: either an explicit inclusive
// pair of dates, or the days covered by the input spans.
type Range struct {
	from     Date
	to       Date
	explicit bool
}

// Between is the explicit range [from, to], both inclusive.
func Between(from, to Date) Range {
	return Range{from: from, to: to, explicit: true}
}

// Inferred derives the range from the earliest start and latest end day.
func Inferred() Range {
	return Range{}
}

// Bounds returns the explicit dates, if any.
func (r Range) Bounds() (from, to Date, ok bool) {
	return r.from, r.to, r.explicit
}

// Aggregate splits spans at every midnight in loc, sums the pieces per day and
// emits one entry per day of rng in ascending order, zero-filling days
// without activity.
func Aggregate(loc *time.Location, spans []Span, rng Range) []DailyDuration {
	if loc == nil {
		loc = time.UTC
	}

	totals := make(ledger)
	var first, last Date
	seen := false

	for _, s := range spans {
		if s.Start.After(s.End) {
			continue
		}
		startDay, endDay := spanDays(s, loc)
		if !seen || startDay.Before(first) {
			first = startDay
		}
		if !seen || endDay.After(last) {
			last = endDay
		}
		seen = true

		cursor := s.Start
		for day := startDay; day.Before(endDay); day = day.AddDays(1) {
			next := day.AddDays(1).Midnight(loc)
			totals.add(day, next.Sub(cursor))
			cursor = next
		}
		totals.add(endDay, s.End.Sub(cursor))
	}

	from, to, ok := rng.Bounds()
	if !ok {
		if !seen {
			return []DailyDuration{}
		}
		from, to = first, last
	}
	if to.Before(from) {
		return []DailyDuration{}
	}

	series := make([]DailyDuration, 0, from.DaysUntil(to)+1)
	for day := from; !day.After(to); day = day.AddDays(1) {
		series = append(series, DailyDuration{Date: day, Duration: totals.get(day)})
	}
	return series
}

// Total sums a series.
func Total(series []DailyDuration) time.Duration {
	var total time.Duration
	for _, d := range series {
		total += d.Duration
	}
	return total
}

// spanDays returns the first and last calendar day a span contributes to.
// A span ending exactly at midnight stops on the day before.
func spanDays(s Span, loc *time.Location) (Date, Date) {
	startDay := Of(s.Start, loc)
	endDay := Of(s.End, loc)
	if endDay.After(startDay) && s.End.Equal(endDay.Midnight(loc)) {
		endDay = endDay.AddDays(-1)
	}
	return startDay, endDay
}

type ledger map[Date]time.Duration

func (l ledger) add(d Date, v time.Duration) {
	cur, ok := l[d]
	if !ok {
		cur = 0
	}
	l[d] = cur + v
}

func (l ledger) get(d Date) time.Duration {
	if v, ok := l[d]; ok {
		return v
	}
	return 0
}
