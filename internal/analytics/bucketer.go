package analytics

import (
	"time"

	"analytics-engine/internal/models"
)

const dayLayout = "2006-01-02"

// DailyBuckets returns one bucket per calendar day in loc, from the day
// containing start through the day containing end. Days without records
// are present with a zero count.
func DailyBuckets(times []time.Time, start, end time.Time, loc *time.Location) ([]models.DayBucket, error) {
	if start.IsZero() || end.IsZero() {
		return nil, &InvalidRangeError{Start: start, End: end, Reason: "from and to must be set"}
	}
	if end.Before(start) {
		return nil, &InvalidRangeError{Start: start, End: end, Reason: "to must not be before from"}
	}
	if loc == nil {
		loc = time.UTC
	}

	counts := make(map[string]int, len(times))
	for _, t := range times {
		counts[t.In(loc).Format(dayLayout)]++
	}

	// Days are walked as UTC calendar dates: local midnight does not exist
	// on some DST transition days.
	first := calendarDate(start.In(loc))
	n := daysBetween(first, calendarDate(end.In(loc)))

	buckets := make([]models.DayBucket, 0, n+1)
	for i := 0; i <= n; i++ {
		key := first.AddDate(0, 0, i).Format(dayLayout)
		buckets = append(buckets, models.DayBucket{Date: key, Count: counts[key]})
	}
	return buckets, nil
}

// HourlyBuckets groups by hour of day in loc, ignoring the date.
// The result always has 24 entries.
func HourlyBuckets(times []time.Time, loc *time.Location) []models.HourBucket {
	if loc == nil {
		loc = time.UTC
	}
	buckets := make([]models.HourBucket, 24)
	for h := range buckets {
		buckets[h].Hour = h
	}
	for _, t := range times {
		buckets[t.In(loc).Hour()].Count++
	}
	return buckets
}

func EventTimes(events []models.Event) []time.Time {
	times := make([]time.Time, len(events))
	for i, e := range events {
		times[i] = e.Timestamp
	}
	return times
}

func AlertTimes(alerts []models.Alert) []time.Time {
	times := make([]time.Time, len(alerts))
	for i, a := range alerts {
		times[i] = a.CreatedAt
	}
	return times
}

// calendarDate keeps t's wall-clock date as midnight UTC.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days between two calendarDate values.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
