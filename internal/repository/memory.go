package repository

import (
	"sync"

	"github.com/eliraz-refael/go-imposters/internal/models"
)

// InMemory implements Repository with in-memory storage. The outer mutex
// guards the slot map; each slot has its own lock so record mutations are
// atomic per record without serializing unrelated imposters.
type InMemory struct {
	slots map[string]*slot
	mu    sync.RWMutex
}

type slot struct {
	mu  sync.Mutex
	rec Record
}

// NewInMemory creates an empty in-memory repository.
func NewInMemory() *InMemory {
	return &InMemory{slots: make(map[string]*slot)}
}

func (r *InMemory) slot(id string) (*slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, NotFoundError{ID: id}
	}
	return s, nil
}

// Create stores a new imposter record.
func (r *InMemory) Create(cfg models.ImposterConfig) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &slot{rec: Record{Config: cfg, Stubs: []models.Stub{}}}
	r.slots[cfg.ID] = s
	return s.rec.Clone(), nil
}

// Get returns a snapshot of one record.
func (r *InMemory) Get(id string) (*Record, error) {
	s, err := r.slot(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone(), nil
}

// All returns snapshots of every record.
func (r *InMemory) All() []*Record {
	r.mu.RLock()
	slots := make([]*slot, 0, len(r.slots))
	for _, s := range r.slots {
		slots = append(slots, s)
	}
	r.mu.RUnlock()

	out := make([]*Record, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		out = append(out, s.rec.Clone())
		s.mu.Unlock()
	}
	return out
}

// Update applies fn under the record's critical section and returns the new
// snapshot. fn returning an error aborts the mutation.
func (r *InMemory) Update(id string, fn func(*Record) error) (*Record, error) {
	s, err := r.slot(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.rec.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	s.rec = *work
	return s.rec.Clone(), nil
}

// Remove deletes a record, returning its final snapshot.
func (r *InMemory) Remove(id string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, NotFoundError{ID: id}
	}
	delete(r.slots, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone(), nil
}

// Count returns the number of stored imposters.
func (r *InMemory) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}

// AddStub appends a stub to the imposter's list.
func (r *InMemory) AddStub(id string, stub models.Stub) (*Record, error) {
	return r.Update(id, func(rec *Record) error {
		rec.Stubs = append(rec.Stubs, stub)
		return nil
	})
}

// Stubs returns a snapshot of the imposter's stub list.
func (r *InMemory) Stubs(id string) ([]models.Stub, error) {
	s, err := r.slot(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneStubs(s.rec.Stubs), nil
}

// UpdateStub applies fn to one stub under the record's critical section.
func (r *InMemory) UpdateStub(id, stubID string, fn func(*models.Stub) error) (*Record, error) {
	return r.Update(id, func(rec *Record) error {
		for i := range rec.Stubs {
			if rec.Stubs[i].ID == stubID {
				return fn(&rec.Stubs[i])
			}
		}
		return StubNotFoundError{ImposterID: id, StubID: stubID}
	})
}

// RemoveStub deletes one stub from the imposter's list.
func (r *InMemory) RemoveStub(id, stubID string) (*Record, error) {
	return r.Update(id, func(rec *Record) error {
		for i := range rec.Stubs {
			if rec.Stubs[i].ID == stubID {
				rec.Stubs = append(rec.Stubs[:i], rec.Stubs[i+1:]...)
				return nil
			}
		}
		return StubNotFoundError{ImposterID: id, StubID: stubID}
	})
}
