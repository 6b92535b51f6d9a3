package models

import (
	"testing"
	"time"
)

func TestWindowRanges_ContiguousNonOverlapping(t *testing.T) {
	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	w := NewWindow(now, 5)

	cur := w.CurrentRange()
	prev := w.PreviousRange()

	if cur.ToMillis != now.UnixMilli() {
		t.Fatalf("current range must end at now, got %d", cur.ToMillis)
	}
	if cur.FromMillis != prev.ToMillis {
		t.Fatalf("ranges must be contiguous: cur.From=%d prev.To=%d", cur.FromMillis, prev.ToMillis)
	}
	if got, want := cur.ToMillis-cur.FromMillis, int64(5*60*1000); got != want {
		t.Fatalf("current range length = %d, want %d", got, want)
	}
	if got, want := prev.ToMillis-prev.FromMillis, int64(5*60*1000); got != want {
		t.Fatalf("previous range length = %d, want %d", got, want)
	}
}

// A trade timestamped exactly at now - length belongs to the previous range,
// never the current one.
func TestWindowRanges_BoundaryTrade(t *testing.T) {
	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	w := NewWindow(now, 1)

	boundary := now.UnixMilli() - 60*1000

	if w.CurrentRange().Contains(boundary) {
		t.Fatalf("boundary trade misclassified into current range")
	}
	if !w.PreviousRange().Contains(boundary) {
		t.Fatalf("boundary trade not classified into previous range")
	}

	// One millisecond later it flips to the current range.
	if !w.CurrentRange().Contains(boundary + 1) {
		t.Fatalf("trade just inside window not classified into current range")
	}
	if w.PreviousRange().Contains(boundary + 1) {
		t.Fatalf("trade just inside window leaked into previous range")
	}
}

func TestWindowMinutes(t *testing.T) {
	w := NewWindow(time.Now(), 60)
	if w.Minutes() != 60 {
		t.Fatalf("want 60 got %d", w.Minutes())
	}
}
