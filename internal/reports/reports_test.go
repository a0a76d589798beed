package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

func TestGrowth(t *testing.T) {
	assert.Equal(t, 50.0, Growth(15, 10))
	assert.Equal(t, -33.3, Growth(2, 3))
	assert.Equal(t, 100.0, Growth(4, 0))
	assert.Equal(t, 0.0, Growth(0, 0))
	assert.Equal(t, -100.0, Growth(0, 7))
}

func TestPeriods(t *testing.T) {
	today := Today(now)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), today.From)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), today.To)

	month := ThisMonth(now)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), month.From)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), month.To)

	prev := LastMonth(now)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), prev.From)
	assert.Equal(t, month.From, prev.To)

	year := LastMonths(now, 12)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), year.From)
	assert.Len(t, Buckets(year, Monthly), 12)

	days := LastDays(now, 30)
	assert.Len(t, Buckets(days, Daily), 30)
	assert.True(t, days.Contains(now))
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("", "", time.UTC)
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = ParseRange("2026-01-01", "2026-01-31", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), r.To)
	assert.Equal(t, Daily, GranularityFor(*r))

	r, err = ParseRange("2025-01-01", "2025-12-31", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, Weekly, GranularityFor(*r))

	r, err = ParseRange("2026-01-01", "2026-04-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, Daily, GranularityFor(*r), "91 inclusive days stay daily")

	r, err = ParseRange("2026-01-01", "2026-04-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, Weekly, GranularityFor(*r), "92 inclusive days switch to weekly")

	r, err = ParseRange("2026-01-01", "", time.UTC)
	require.NoError(t, err)
	assert.True(t, r.Contains(now))

	_, err = ParseRange("2026-02-01", "2026-01-01", time.UTC)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ParseRange("01/02/2026", "", time.UTC)
	assert.Error(t, err)
}

func TestIntersect(t *testing.T) {
	month := ThisMonth(now)
	filter := Range{From: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}

	got := month.Intersect(filter)
	assert.Equal(t, filter.From, got.From)
	assert.Equal(t, month.To, got.To)

	disjoint := LastMonth(now).Intersect(filter)
	assert.True(t, disjoint.Empty())
}

func TestBucketsWeeklyClipsLast(t *testing.T) {
	r := Range{From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)}
	buckets := Buckets(r, Weekly)
	require.Len(t, buckets, 3)
	assert.Equal(t, "2026-01-15", buckets[2].Label)
}

func TestFill(t *testing.T) {
	r := LastDays(now, 3)
	buckets := Fill(Buckets(r, Daily), []Point{
		{At: now, Value: decimal.NewFromInt(10)},
		{At: now.Add(-time.Hour), Value: decimal.NewFromInt(5)},
		{At: now.AddDate(0, 0, -2), Value: decimal.NewFromInt(1)},
		{At: now.AddDate(0, 0, -10), Value: decimal.NewFromInt(99)},
	})

	require.Len(t, buckets, 3)
	assert.Equal(t, "2026-03-13", buckets[0].Label)
	assert.Equal(t, int64(1), buckets[0].Count)
	assert.Equal(t, int64(0), buckets[1].Count)
	assert.Equal(t, int64(2), buckets[2].Count)
	assert.True(t, buckets[2].Value.Equal(decimal.NewFromInt(15)))
}

func TestSeriesRange(t *testing.T) {
	fallback := LastDays(now, 30)
	assert.Equal(t, fallback, SeriesRange(nil, fallback, now, now))

	open, err := ParseRange("", "2026-12-31", time.UTC)
	require.NoError(t, err)
	got := SeriesRange(open, fallback, now, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got.From)
	assert.Equal(t, Today(now).To, got.To)
	assert.Len(t, Buckets(got, GranularityFor(got)), 15)
}
