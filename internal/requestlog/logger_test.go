package requestlog

import (
	"fmt"
	"testing"
	"time"

	"github.com/eliraz-refael/go-imposters/internal/models"
)

func entry(imposterID, method, path string, status int) models.RequestLogEntry {
	return models.RequestLogEntry{
		ID:         fmt.Sprintf("%s-%s-%s-%d", imposterID, method, path, status),
		ImposterID: imposterID,
		Timestamp:  time.Now().UTC(),
		Request:    models.LoggedRequest{Method: method, Path: path},
		Response:   models.LoggedResponse{Status: status},
	}
}

func TestRingKeepsLast100(t *testing.T) {
	l := NewLogger()

	for i := 0; i < 100; i++ {
		e := entry("imp1", "GET", fmt.Sprintf("/n/%d", i), 200)
		l.Log(e)
	}
	if got := l.Count("imp1"); got != 100 {
		t.Fatalf("count after 100 = %d", got)
	}

	// Entry 101 drops the oldest.
	l.Log(entry("imp1", "GET", "/n/100", 200))
	if got := l.Count("imp1"); got != 100 {
		t.Fatalf("count after 101 = %d", got)
	}

	entries := l.Entries("imp1", Filter{Limit: 100})
	if entries[0].Request.Path != "/n/1" {
		t.Errorf("oldest retained = %q, want /n/1", entries[0].Request.Path)
	}
	if entries[len(entries)-1].Request.Path != "/n/100" {
		t.Errorf("newest = %q, want /n/100", entries[len(entries)-1].Request.Path)
	}
}

func TestEntriesDefaultLimit(t *testing.T) {
	l := NewLogger()
	for i := 0; i < 80; i++ {
		l.Log(entry("imp1", "GET", "/x", 200))
	}

	if got := len(l.Entries("imp1", Filter{})); got != DefaultLimit {
		t.Errorf("default limit returned %d entries, want %d", got, DefaultLimit)
	}
}

func TestEntriesFilters(t *testing.T) {
	l := NewLogger()
	l.Log(entry("imp1", "GET", "/a", 200))
	l.Log(entry("imp1", "POST", "/a", 201))
	l.Log(entry("imp1", "GET", "/b", 404))

	if got := len(l.Entries("imp1", Filter{Method: "GET"})); got != 2 {
		t.Errorf("method filter: %d, want 2", got)
	}
	if got := len(l.Entries("imp1", Filter{Path: "/a"})); got != 2 {
		t.Errorf("path filter: %d, want 2", got)
	}
	if got := len(l.Entries("imp1", Filter{Status: 404})); got != 1 {
		t.Errorf("status filter: %d, want 1", got)
	}
	if got := len(l.Entries("imp1", Filter{Method: "GET", Status: 200})); got != 1 {
		t.Errorf("combined filter: %d, want 1", got)
	}
}

func TestEntryByID(t *testing.T) {
	l := NewLogger()
	e := entry("imp1", "GET", "/a", 200)
	l.Log(e)

	got, ok := l.Entry("imp1", e.ID)
	if !ok {
		t.Fatal("entry not found")
	}
	if got.Request.Path != "/a" {
		t.Errorf("wrong entry: %+v", got)
	}

	if _, ok := l.Entry("imp1", "nope"); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestClearKeepsSlotRemoveDiscardsIt(t *testing.T) {
	l := NewLogger()
	l.Log(entry("imp1", "GET", "/a", 200))

	l.Clear("imp1")
	if got := l.Count("imp1"); got != 0 {
		t.Errorf("count after clear = %d", got)
	}

	l.Log(entry("imp1", "GET", "/b", 200))
	l.RemoveImposter("imp1")
	if got := l.Count("imp1"); got != 0 {
		t.Errorf("count after remove = %d", got)
	}
}

func TestSubscribeReceivesNewEntries(t *testing.T) {
	l := NewLogger()
	ch, cancel := l.Subscribe()
	defer cancel()

	want := entry("imp1", "GET", "/a", 200)
	l.Log(want)

	select {
	case got := <-ch:
		if got.ID != want.ID {
			t.Errorf("received %q, want %q", got.ID, want.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestSlowSubscriberNeverBlocksLog(t *testing.T) {
	l := NewLogger()
	_, cancel := l.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Nobody drains the subscription; Log must still complete.
		for i := 0; i < SubscriberBuffer+50; i++ {
			l.Log(entry("imp1", "GET", "/x", 200))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Log blocked on a slow subscriber")
	}
}

func TestCancelledSubscriberIsDetached(t *testing.T) {
	l := NewLogger()
	ch, cancel := l.Subscribe()
	cancel()

	l.Log(entry("imp1", "GET", "/a", 200))

	if _, open := <-ch; open {
		t.Error("channel should be closed after cancel")
	}
}
