// Package audit records the trail of permission mutations: who changed
// which permission in which project, and how it went. Resolution reads are
// deliberately not audited, only writes and denied write attempts.
package audit

import (
	"context"
	"sync"
	"time"
)

// EventType names the mutation being audited.
type EventType string

const (
	EventCreateAdministrative EventType = "permission.create_administrative"
	EventUpdateAdministrative EventType = "permission.update_administrative"
	EventCreateDOAP           EventType = "permission.create_doap"
	EventUpdateDOAP           EventType = "permission.update_doap"
)

// Outcome is how the mutation ended.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDenied   Outcome = "denied"
	OutcomeConflict Outcome = "conflict"
	OutcomeError    Outcome = "error"
)

// AnonymousActor is recorded when an unauthenticated caller attempts a
// mutation (always denied, still worth the trail).
const AnonymousActor = "anonymous"

// Event is one audit log entry.
type Event struct {
	ID            int64     `json:"id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Type          EventType `json:"event_type"`
	Outcome       Outcome   `json:"outcome"`
	ActorIRI      string    `json:"actor_iri"`
	Project       string    `json:"project_iri"`
	PermissionIRI string    `json:"permission_iri,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
}

// Recorder persists audit events. Recording is best-effort from the
// caller's point of view: a failed write must never fail the mutation it
// describes.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// Filter narrows an audit trail query. Zero fields match everything.
type Filter struct {
	Project  string
	ActorIRI string
	Type     EventType
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Store is a queryable audit trail.
type Store interface {
	Recorder
	Search(ctx context.Context, f Filter) ([]Event, error)
}

// MemoryStore keeps events in memory, newest last. Used in tests and as
// the fallback when no database is configured.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Record(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	s.events = append(s.events, e)
	return nil
}

func (s *MemoryStore) Search(_ context.Context, f Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if !f.matches(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (f Filter) matches(e Event) bool {
	if f.Project != "" && e.Project != f.Project {
		return false
	}
	if f.ActorIRI != "" && e.ActorIRI != f.ActorIRI {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if !f.Since.IsZero() && e.OccurredAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.OccurredAt.After(f.Until) {
		return false
	}
	return true
}
