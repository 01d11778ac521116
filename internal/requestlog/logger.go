// Package requestlog keeps a bounded per-imposter log of handled requests
// and fans new entries out to subscribers.
package requestlog

import (
	"strconv"
	"sync"

	"github.com/eliraz-refael/go-imposters/internal/models"
)

const (
	// MaxEntries is the per-imposter ring size.
	MaxEntries = 100
	// SubscriberBuffer is each subscriber's channel capacity; the oldest
	// buffered entry is dropped for a subscriber that falls behind.
	SubscriberBuffer = 256
	// DefaultLimit applies when a query does not set one.
	DefaultLimit = 50
)

// Filter narrows a log query. Zero values mean no constraint, except for
// Limit, where zero selects DefaultLimit.
type Filter struct {
	Limit  int
	Method string
	Path   string
	Status int
}

// Logger stores request log entries per imposter.
type Logger struct {
	entries map[string][]models.RequestLogEntry
	subs    map[int]chan models.RequestLogEntry
	nextSub int
	mu      sync.RWMutex
}

// NewLogger creates an empty logger.
func NewLogger() *Logger {
	return &Logger{
		entries: make(map[string][]models.RequestLogEntry),
		subs:    make(map[int]chan models.RequestLogEntry),
	}
}

// Log appends an entry to its imposter's ring, trimming to MaxEntries, and
// publishes it to every subscriber without blocking.
func (l *Logger) Log(entry models.RequestLogEntry) {
	l.mu.Lock()
	list := append(l.entries[entry.ImposterID], entry)
	if len(list) > MaxEntries {
		list = list[len(list)-MaxEntries:]
	}
	l.entries[entry.ImposterID] = list

	for _, ch := range l.subs {
		select {
		case ch <- entry:
		default:
			// Slow subscriber: drop its oldest buffered entry.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- entry:
			default:
			}
		}
	}
	l.mu.Unlock()
}

// Entries returns the last filter.Limit entries (default 50) after applying
// the filter, oldest first.
func (l *Logger) Entries(imposterID string, filter Filter) []models.RequestLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	filtered := make([]models.RequestLogEntry, 0, len(l.entries[imposterID]))
	for _, e := range l.entries[imposterID] {
		if filter.Method != "" && e.Request.Method != filter.Method {
			continue
		}
		if filter.Path != "" && e.Request.Path != filter.Path {
			continue
		}
		if filter.Status != 0 && e.Response.Status != filter.Status {
			continue
		}
		filtered = append(filtered, e)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

// Count returns the number of retained entries for an imposter.
func (l *Logger) Count(imposterID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries[imposterID])
}

// Entry looks up one entry by id.
func (l *Logger) Entry(imposterID, entryID string) (models.RequestLogEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries[imposterID] {
		if e.ID == entryID {
			return e, true
		}
	}
	return models.RequestLogEntry{}, false
}

// Clear empties an imposter's log but keeps its slot.
func (l *Logger) Clear(imposterID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[imposterID]; ok {
		l.entries[imposterID] = nil
	}
}

// RemoveImposter discards an imposter's slot entirely.
func (l *Logger) RemoveImposter(imposterID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, imposterID)
}

// Subscribe attaches a consumer to the broadcast. The returned cancel
// function detaches it and closes the channel.
func (l *Logger) Subscribe() (<-chan models.RequestLogEntry, func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan models.RequestLogEntry, SubscriberBuffer)
	l.subs[id] = ch
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if existing, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(existing)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}

// ParseStatusFilter converts a status query value, tolerating garbage.
func ParseStatusFilter(raw string) int {
	if raw == "" {
		return 0
	}
	status, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return status
}
