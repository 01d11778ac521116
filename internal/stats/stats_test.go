package stats

import (
	"testing"
	"time"

	"github.com/eliraz-refael/go-imposters/internal/models"
)

func entryAt(ts time.Time, method string, status int, durationMs float64) models.RequestLogEntry {
	return models.RequestLogEntry{
		ImposterID: "imp1",
		Timestamp:  ts,
		Request:    models.LoggedRequest{Method: method, Path: "/x"},
		Response:   models.LoggedResponse{Status: status},
		DurationMs: durationMs,
	}
}

func TestCountsAndErrorRate(t *testing.T) {
	a := NewAggregator()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a.Record(entryAt(base, "GET", 200, 10))
	a.Record(entryAt(base.Add(time.Second), "GET", 200, 20))
	a.Record(entryAt(base.Add(2*time.Second), "POST", 500, 30))
	a.Record(entryAt(base.Add(3*time.Second), "GET", 404, 40))

	s := a.Stats("imp1")
	if s.TotalRequests != 4 {
		t.Errorf("total = %d, want 4", s.TotalRequests)
	}
	if s.RequestsByMethod["GET"] != 3 || s.RequestsByMethod["POST"] != 1 {
		t.Errorf("method counts wrong: %v", s.RequestsByMethod)
	}
	if s.RequestsByStatus["200"] != 2 || s.RequestsByStatus["500"] != 1 || s.RequestsByStatus["404"] != 1 {
		t.Errorf("status counts wrong: %v", s.RequestsByStatus)
	}
	if s.ErrorRate != 0.5 {
		t.Errorf("error rate = %v, want 0.5", s.ErrorRate)
	}
	if s.AverageResponseMs != 25 {
		t.Errorf("average = %v, want 25", s.AverageResponseMs)
	}
}

func TestSingleRequestRPMIsTotal(t *testing.T) {
	a := NewAggregator()
	a.Record(entryAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), "GET", 200, 10))

	s := a.Stats("imp1")
	if s.RequestsPerMinute != 1 {
		t.Errorf("rpm with elapsed=0 should equal total, got %v", s.RequestsPerMinute)
	}
}

func TestRPMOverElapsedWindow(t *testing.T) {
	a := NewAggregator()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// 3 requests over 2 minutes → 1.5 rpm.
	a.Record(entryAt(base, "GET", 200, 10))
	a.Record(entryAt(base.Add(time.Minute), "GET", 200, 10))
	a.Record(entryAt(base.Add(2*time.Minute), "GET", 200, 10))

	s := a.Stats("imp1")
	if s.RequestsPerMinute != 1.5 {
		t.Errorf("rpm = %v, want 1.5", s.RequestsPerMinute)
	}
}

func TestPercentiles(t *testing.T) {
	a := NewAggregator()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Durations 1..100: p50 = ceil(0.5*100)-1 = idx 49 → 50.
	for i := 1; i <= 100; i++ {
		a.Record(entryAt(base.Add(time.Duration(i)*time.Second), "GET", 200, float64(i)))
	}

	s := a.Stats("imp1")
	if s.P50ResponseMs != 50 {
		t.Errorf("p50 = %v, want 50", s.P50ResponseMs)
	}
	if s.P95ResponseMs != 95 {
		t.Errorf("p95 = %v, want 95", s.P95ResponseMs)
	}
	if s.P99ResponseMs != 99 {
		t.Errorf("p99 = %v, want 99", s.P99ResponseMs)
	}
}

func TestRingWrapsAt1000(t *testing.T) {
	a := NewAggregator()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Exactly 1000 samples of value 5.
	for i := 0; i < RingSize; i++ {
		a.Record(entryAt(base.Add(time.Duration(i)*time.Millisecond), "GET", 200, 5))
	}
	s := a.Stats("imp1")
	if s.AverageResponseMs != 5 {
		t.Errorf("average over full ring = %v, want 5", s.AverageResponseMs)
	}

	// Sample 1001 overwrites the oldest slot; the window stays at 1000.
	a.Record(entryAt(base.Add(time.Second), "GET", 200, 1005))
	s = a.Stats("imp1")
	want := (5*float64(RingSize-1) + 1005) / float64(RingSize)
	if s.AverageResponseMs != roundTo2(want) {
		t.Errorf("average after wrap = %v, want %v", s.AverageResponseMs, roundTo2(want))
	}
	if s.TotalRequests != RingSize+1 {
		t.Errorf("total = %d, want %d", s.TotalRequests, RingSize+1)
	}
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func TestResetDropsSlot(t *testing.T) {
	a := NewAggregator()
	a.Record(entryAt(time.Now().UTC(), "GET", 200, 10))

	a.Reset("imp1")

	s := a.Stats("imp1")
	if s.TotalRequests != 0 {
		t.Errorf("total after reset = %d", s.TotalRequests)
	}
	if s.FirstRequestAt != nil {
		t.Error("first timestamp should be cleared")
	}
}

func TestStatsForUnknownImposterIsZero(t *testing.T) {
	a := NewAggregator()
	s := a.Stats("ghost")
	if s.TotalRequests != 0 || s.ErrorRate != 0 {
		t.Errorf("expected zero stats, got %+v", s)
	}
}

func TestRoundingPrecision(t *testing.T) {
	a := NewAggregator()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a.Record(entryAt(base, "GET", 200, 10))
	a.Record(entryAt(base.Add(time.Second), "GET", 200, 10))
	a.Record(entryAt(base.Add(2*time.Second), "GET", 500, 10))

	s := a.Stats("imp1")
	if s.ErrorRate != 0.3333 {
		t.Errorf("error rate = %v, want 0.3333 (4 decimals)", s.ErrorRate)
	}
}
