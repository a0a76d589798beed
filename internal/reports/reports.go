// Package reports holds the calendar arithmetic behind the admin dashboard and
// reports: period ranges, series buckets and growth percentages.
package reports

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Granularity is the width of one series bucket.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// DailyLimit is the most calendar days, counted inclusively, still reported day by day.
const DailyLimit = 91

const dateLayout = "2006-01-02"

var ErrInvalidRange = errors.New("from must be before to")

// Range is the half-open interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside r.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Empty reports whether r contains no instant.
func (r Range) Empty() bool {
	return !r.From.Before(r.To)
}

// Intersect returns the overlap of r and other. The result may be Empty.
func (r Range) Intersect(other Range) Range {
	out := r
	if other.From.After(out.From) {
		out.From = other.From
	}
	if other.To.Before(out.To) {
		out.To = other.To
	}
	if out.To.Before(out.From) {
		out.To = out.From
	}
	return out
}

// ParseRange reads inclusive yyyy-mm-dd dates. Both empty means no filter (nil).
// A missing bound is open ended.
func ParseRange(from, to string, loc *time.Location) (*Range, error) {
	if from == "" && to == "" {
		return nil, nil
	}

	r := Range{
		From: time.Date(1970, 1, 1, 0, 0, 0, 0, loc),
		To:   time.Date(9999, 1, 1, 0, 0, 0, 0, loc),
	}
	if from != "" {
		t, err := time.ParseInLocation(dateLayout, from, loc)
		if err != nil {
			return nil, err
		}
		r.From = t
	}
	if to != "" {
		t, err := time.ParseInLocation(dateLayout, to, loc)
		if err != nil {
			return nil, err
		}
		r.To = t.AddDate(0, 0, 1)
	}
	if r.Empty() {
		return nil, ErrInvalidRange
	}
	return &r, nil
}

// StartOfDay truncates t to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth truncates t to the first day of its month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// Today is the calendar day containing now.
func Today(now time.Time) Range {
	start := StartOfDay(now)
	return Range{From: start, To: start.AddDate(0, 0, 1)}
}

// ThisMonth is the calendar month containing now.
func ThisMonth(now time.Time) Range {
	start := StartOfMonth(now)
	return Range{From: start, To: start.AddDate(0, 1, 0)}
}

// LastMonth is the calendar month before the one containing now.
func LastMonth(now time.Time) Range {
	start := StartOfMonth(now)
	return Range{From: start.AddDate(0, -1, 0), To: start}
}

// LastMonths covers the n calendar months ending with the current one.
func LastMonths(now time.Time, n int) Range {
	start := StartOfMonth(now)
	return Range{From: start.AddDate(0, -(n - 1), 0), To: start.AddDate(0, 1, 0)}
}

// LastDays covers the n calendar days ending with today.
func LastDays(now time.Time, n int) Range {
	start := StartOfDay(now)
	return Range{From: start.AddDate(0, 0, -(n - 1)), To: start.AddDate(0, 0, 1)}
}

// GranularityFor picks daily buckets for ranges up to DailyLimit days and weekly ones beyond.
func GranularityFor(r Range) Granularity {
	if !r.To.After(r.From.AddDate(0, 0, DailyLimit)) {
		return Daily
	}
	return Weekly
}

// Bucket is one slot of a series.
type Bucket struct {
	Label string          `json:"label"`
	Start time.Time       `json:"start"`
	Count int64           `json:"count"`
	Value decimal.Decimal `json:"value"`

	end time.Time
}

// Buckets splits r into consecutive buckets of width g. The last bucket is
// clipped to r.To.
func Buckets(r Range, g Granularity) []Bucket {
	var out []Bucket
	for start := r.From; start.Before(r.To); {
		var end time.Time
		label := start.Format(dateLayout)
		switch g {
		case Monthly:
			end = StartOfMonth(start).AddDate(0, 1, 0)
			label = start.Format("2006-01")
		case Weekly:
			end = start.AddDate(0, 0, 7)
		default:
			end = start.AddDate(0, 0, 1)
		}
		if end.After(r.To) {
			end = r.To
		}
		out = append(out, Bucket{Label: label, Start: start, Value: decimal.Zero, end: end})
		start = end
	}
	return out
}

// Point is one observation to be placed into buckets.
type Point struct {
	At    time.Time
	Value decimal.Decimal
}

// Fill accumulates points into buckets. Points outside every bucket are ignored.
func Fill(buckets []Bucket, points []Point) []Bucket {
	for _, p := range points {
		i := sort.Search(len(buckets), func(i int) bool { return p.At.Before(buckets[i].end) })
		if i == len(buckets) || p.At.Before(buckets[i].Start) {
			continue
		}
		buckets[i].Count++
		buckets[i].Value = buckets[i].Value.Add(p.Value)
	}
	return buckets
}

// SeriesRange is the span a chart should cover. Without a filter it is fallback.
// A filter is clipped to end today and to start no earlier than the first
// recorded activity, so open ended filters do not produce empty decades.
func SeriesRange(filter *Range, fallback Range, now, earliest time.Time) Range {
	if filter == nil {
		return fallback
	}

	r := filter.Intersect(Range{From: StartOfDay(earliest), To: Today(now).To})
	if r.Empty() {
		return Range{From: filter.From, To: filter.From}
	}
	return r
}

// Growth is the percentage change from prev to cur rounded to one decimal.
// A change from zero counts as 100% growth when cur is positive.
func Growth(cur, prev float64) float64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return math.Round((cur-prev)/prev*1000) / 10
}
