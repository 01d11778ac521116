// Package repository owns imposter records and their stub lists. Every
// mutation is an atomic read-modify-write of a single record's slot; reads
// return consistent snapshots.
package repository

import (
	"fmt"

	"github.com/eliraz-refael/go-imposters/internal/models"
)

// Record is one imposter plus its stubs, stored in insertion order (which is
// also the match-evaluation order).
type Record struct {
	Config models.ImposterConfig `json:"config"`
	Stubs  []models.Stub         `json:"stubs"`
}

// Clone returns a snapshot copy safe to hand out of the critical section.
func (r *Record) Clone() *Record {
	out := &Record{Config: r.Config}
	out.Config.Proxy = r.Config.Proxy.Clone()
	out.Stubs = models.CloneStubs(r.Stubs)
	return out
}

// NotFoundError is returned when an imposter id is unknown.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("imposter %q does not exist", e.ID)
}

// StubNotFoundError is returned when a stub id is unknown within an imposter.
type StubNotFoundError struct {
	ImposterID string
	StubID     string
}

func (e StubNotFoundError) Error() string {
	return fmt.Sprintf("stub %q does not exist on imposter %q", e.StubID, e.ImposterID)
}

// Repository is the imposter record store contract.
type Repository interface {
	Create(cfg models.ImposterConfig) (*Record, error)
	Get(id string) (*Record, error)
	All() []*Record
	Update(id string, fn func(*Record) error) (*Record, error)
	Remove(id string) (*Record, error)
	Count() int

	AddStub(id string, stub models.Stub) (*Record, error)
	Stubs(id string) ([]models.Stub, error)
	UpdateStub(id, stubID string, fn func(*models.Stub) error) (*Record, error)
	RemoveStub(id, stubID string) (*Record, error)
}
