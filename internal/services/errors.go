package services

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotActive    = errors.New("session is not active")
	ErrSessionNotCompleted = errors.New("session has no result yet")
	ErrPositionOutOfRange  = errors.New("question position out of range")
	ErrOptionOutOfRange    = errors.New("option index out of range")
	ErrInvalidNavigation   = errors.New("navigation requires a position or a direction")

	// ErrStartFailed wraps a provider failure during attempt start. Unlike a
	// grading failure it is surfaced to the caller as retryable: no session
	// exists, nothing was lost.
	ErrStartFailed = errors.New("failed to start attempt")
)

// PermissionError signals that a user touched a session they do not own.
type PermissionError struct {
	UserID    string
	SessionID string
	Resource  string
	Action    string
	Reason    string
}

func NewPermissionError(userID, sessionID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:    userID,
		SessionID: sessionID,
		Resource:  resource,
		Action:    action,
		Reason:    reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %s: %s", e.UserID, e.Action, e.Resource, e.SessionID, e.Reason)
}

func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
