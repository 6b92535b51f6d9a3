package models

import "time"

// TimeRange is a half-open interval over event time in milliseconds:
// a trade belongs to the range when FromMillis < tsMs <= ToMillis.
type TimeRange struct {
	FromMillis int64
	ToMillis   int64
}

// Contains reports whether the given event time falls inside the range.
func (r TimeRange) Contains(tsMillis int64) bool {
	return tsMillis > r.FromMillis && tsMillis <= r.ToMillis
}

// AggregationWindow defines the trailing interval every aggregate statistic is
// computed over, plus the equally sized interval immediately before it that
// delta comparisons use. It is a value object constructed per request and
// never persisted.
type AggregationWindow struct {
	Now    time.Time
	Length time.Duration
}

// NewWindow builds a window of the given length in minutes ending at now.
func NewWindow(now time.Time, lengthMinutes int) AggregationWindow {
	return AggregationWindow{Now: now, Length: time.Duration(lengthMinutes) * time.Minute}
}

// Minutes returns the window length in whole minutes.
func (w AggregationWindow) Minutes() int {
	return int(w.Length / time.Minute)
}

// CurrentRange is (now - length, now]. A trade timestamped exactly at
// now - length is NOT part of it; it belongs to the previous range.
func (w AggregationWindow) CurrentRange() TimeRange {
	nowMs := w.Now.UnixMilli()
	return TimeRange{FromMillis: nowMs - w.Length.Milliseconds(), ToMillis: nowMs}
}

// PreviousRange is (now - 2*length, now - length]: contiguous with and
// non-overlapping the current range.
func (w AggregationWindow) PreviousRange() TimeRange {
	nowMs := w.Now.UnixMilli()
	return TimeRange{
		FromMillis: nowMs - 2*w.Length.Milliseconds(),
		ToMillis:   nowMs - w.Length.Milliseconds(),
	}
}
