package session

import (
	"sync"
	"time"
)

// Store is the registry of in-flight calls. Every read or write of a call
// happens under that call's own lock, so webhooks for the same id never
// interleave while different ids proceed independently.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	call *Call
}

// NewStore bootstraps an empty in-memory session store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// CreateIfAbsent registers a call for id on first sight, running init on the
// fresh record. A duplicate webhook for an existing id leaves the stored call
// untouched. The return reports whether a new session was created.
func (s *Store) CreateIfAbsent(id string, init func(*Call)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return false
	}

	call := &Call{
		ID:        id,
		State:     StateAwaitingFirstSpeech,
		CallType:  CallTypeAIResolved,
		Outcome:   OutcomeQuoteProvided,
		StartedAt: time.Now().UTC(),
	}
	if init != nil {
		init(call)
	}
	s.entries[id] = &entry{call: call}
	return true
}

// Mutate runs fn with the call for id held under its per-id lock and reports
// whether the id was known. fn may block (the orchestrator runs a whole turn
// inside it); only operations for the same id wait behind it.
func (s *Store) Mutate(id string, fn func(*Call)) bool {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.call)
	return true
}

// Get returns a copy of the call for id. The copy's slices are detached so
// callers can read them without holding the per-id lock.
func (s *Store) Get(id string) (Call, bool) {
	var snapshot Call
	ok := s.Mutate(id, func(c *Call) {
		snapshot = *c
		snapshot.Turns = append([]Turn(nil), c.Turns...)
		snapshot.History = append([]Message(nil), c.History...)
		snapshot.RecordingSegments = append([]string(nil), c.RecordingSegments...)
	})
	return snapshot, ok
}

// Remove drops the call for id from the registry. Callers only remove after
// the terminal log has been flushed.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Len reports the number of in-flight sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
