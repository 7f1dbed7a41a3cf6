package store

import (
	"context"
	"errors"

	"github.com/interndesk/assessment-session-service/internal/models"
	"github.com/interndesk/assessment-session-service/internal/session"
)

var (
	// ErrSessionNotFound is returned for session IDs with no live entry.
	ErrSessionNotFound = errors.New("session not found")
	// ErrOutcomeNotFound is returned when a session has no stored outcome yet.
	ErrOutcomeNotFound = errors.New("outcome not found")
)

// Entry couples a live controller with the identity that owns it and the
// cancel function for its tick loop.
type Entry struct {
	SessionID string
	UserID    string
	Ctrl      *session.Controller
	Cancel    context.CancelFunc
}

// OutcomeRecord is the snapshot kept after a session completes and its live
// entry is evicted. UserID preserves the ownership check for result reads.
type OutcomeRecord struct {
	UserID  string         `json:"user_id"`
	Outcome models.Outcome `json:"outcome"`
}

// Registry tracks live session controllers and the outcomes of completed
// ones. Controllers are process-local by nature (they hold a running timer
// and callbacks); implementations differ in where liveness markers and
// outcome snapshots go. Live entries exist only while a session is active:
// completion replaces the entry with an outcome record, abandonment just
// removes it.
type Registry interface {
	Put(ctx context.Context, entry *Entry) error
	Get(ctx context.Context, sessionID string) (*Entry, error)
	Delete(ctx context.Context, sessionID string) error

	SaveOutcome(ctx context.Context, sessionID, userID string, outcome models.Outcome) error
	GetOutcome(ctx context.Context, sessionID string) (OutcomeRecord, error)

	Close() error
}
