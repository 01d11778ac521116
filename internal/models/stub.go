package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Predicate fields.
const (
	FieldMethod  = "method"
	FieldPath    = "path"
	FieldHeaders = "headers"
	FieldQuery   = "query"
	FieldBody    = "body"
)

// Predicate operators.
const (
	OpEquals     = "equals"
	OpContains   = "contains"
	OpStartsWith = "startsWith"
	OpMatches    = "matches"
	OpExists     = "exists"
)

// Response cycling modes.
const (
	ModeSequential = "sequential"
	ModeRandom     = "random"
	ModeRepeat     = "repeat"
)

const (
	MinStatus  = 100
	MaxStatus  = 599
	MaxDelayMs = 60000
)

// Stub pairs an ordered predicate list with a non-empty response list.
// An empty predicate list matches every request.
type Stub struct {
	ID           string           `json:"id"`
	Predicates   []Predicate      `json:"predicates"`
	Responses    []ResponseConfig `json:"responses"`
	ResponseMode string           `json:"responseMode"`
}

// Predicate is one (field, operator, value) test against a request context.
type Predicate struct {
	Field         string      `json:"field"`
	Operator      string      `json:"operator"`
	Value         interface{} `json:"value"`
	CaseSensitive *bool       `json:"caseSensitive,omitempty"`
}

// IsCaseSensitive reports the predicate's case sensitivity (default true).
func (p *Predicate) IsCaseSensitive() bool {
	if p.CaseSensitive == nil {
		return true
	}
	return *p.CaseSensitive
}

// ResponseConfig is one canned response.
type ResponseConfig struct {
	Status  int               `json:"status,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    interface{}       `json:"body,omitempty"`
	DelayMs int               `json:"delay,omitempty"`
}

// StatusCode returns the configured status, applying the 200 default.
func (r *ResponseConfig) StatusCode() int {
	if r.Status == 0 {
		return 200
	}
	return r.Status
}

// Validate checks a stub against the predicate/response constraints.
func (s *Stub) Validate() error {
	if len(s.Responses) == 0 {
		return fmt.Errorf("'responses' must contain at least one response")
	}
	switch s.ResponseMode {
	case "", ModeSequential, ModeRandom, ModeRepeat:
	default:
		return fmt.Errorf("unknown responseMode %q", s.ResponseMode)
	}
	for i := range s.Predicates {
		if err := s.Predicates[i].Validate(); err != nil {
			return fmt.Errorf("predicate %d: %w", i, err)
		}
	}
	for i := range s.Responses {
		if err := s.Responses[i].Validate(); err != nil {
			return fmt.Errorf("response %d: %w", i, err)
		}
	}
	return nil
}

// Mode returns the cycling mode, applying the sequential default.
func (s *Stub) Mode() string {
	if s.ResponseMode == "" {
		return ModeSequential
	}
	return s.ResponseMode
}

// Validate checks field and operator membership.
func (p *Predicate) Validate() error {
	switch p.Field {
	case FieldMethod, FieldPath, FieldHeaders, FieldQuery, FieldBody:
	default:
		return fmt.Errorf("unknown field %q", p.Field)
	}
	switch p.Operator {
	case OpEquals, OpContains, OpStartsWith, OpMatches, OpExists:
	default:
		return fmt.Errorf("unknown operator %q", p.Operator)
	}
	return nil
}

// Validate checks status and delay ranges.
func (r *ResponseConfig) Validate() error {
	if r.Status != 0 && (r.Status < MinStatus || r.Status > MaxStatus) {
		return fmt.Errorf("'status' must be between %d and %d", MinStatus, MaxStatus)
	}
	if r.DelayMs < 0 || r.DelayMs > MaxDelayMs {
		return fmt.Errorf("'delay' must be between 0 and %d ms", MaxDelayMs)
	}
	return nil
}

// Clone returns a deep-enough copy of the stub for snapshot publication.
// Predicate and body values are JSON-decoded data that is never mutated, so
// sharing them is safe; the slices and header maps are copied.
func (s *Stub) Clone() Stub {
	out := *s
	if s.Predicates != nil {
		out.Predicates = append([]Predicate(nil), s.Predicates...)
	}
	if s.Responses != nil {
		out.Responses = make([]ResponseConfig, len(s.Responses))
		for i, r := range s.Responses {
			out.Responses[i] = r
			if r.Headers != nil {
				h := make(map[string]string, len(r.Headers))
				for k, v := range r.Headers {
					h[k] = v
				}
				out.Responses[i].Headers = h
			}
		}
	}
	return out
}

// CloneStubs copies a stub list for publication as an immutable snapshot.
func CloneStubs(stubs []Stub) []Stub {
	out := make([]Stub, len(stubs))
	for i := range stubs {
		out[i] = stubs[i].Clone()
	}
	return out
}

// NewStubID generates an opaque stub id.
func NewStubID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return "stub-" + hex.EncodeToString(b)
}
