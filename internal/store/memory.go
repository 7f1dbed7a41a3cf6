package store

import (
	"context"
	"sync"

	"github.com/interndesk/assessment-session-service/internal/models"
)

// MemoryRegistry is the in-process Registry used for single-instance
// deployments and tests.
type MemoryRegistry struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	outcomes map[string]OutcomeRecord
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries:  make(map[string]*Entry),
		outcomes: make(map[string]OutcomeRecord),
	}
}

func (r *MemoryRegistry) Put(_ context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.SessionID] = entry
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, sessionID string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
	return nil
}

func (r *MemoryRegistry) SaveOutcome(_ context.Context, sessionID, userID string, outcome models.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[sessionID] = OutcomeRecord{UserID: userID, Outcome: outcome}
	return nil
}

func (r *MemoryRegistry) GetOutcome(_ context.Context, sessionID string) (OutcomeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.outcomes[sessionID]
	if !ok {
		return OutcomeRecord{}, ErrOutcomeNotFound
	}
	return record, nil
}

func (r *MemoryRegistry) Close() error { return nil }
