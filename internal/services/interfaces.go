package services

import (
	"context"

	"github.com/interndesk/assessment-session-service/internal/models"
	"github.com/interndesk/assessment-session-service/internal/session"
)

// ===== REQUEST/RESPONSE DTOs =====

type StartSessionRequest struct {
	AssessmentID string `json:"assessment_id" validate:"required"`
}

type StartSessionResponse struct {
	SessionID string           `json:"session_id"`
	Attempt   *models.Attempt  `json:"attempt"`
	State     session.Snapshot `json:"state"`
}

type SelectAnswerRequest struct {
	Position *int `json:"position" validate:"required,min=0"`
	Option   *int `json:"option" validate:"required,min=0,max=3"`
}

// NavigateRequest moves the current question: either to an absolute position
// or one step in a direction.
type NavigateRequest struct {
	Position  *int   `json:"position" validate:"omitempty,min=0"`
	Direction string `json:"direction" validate:"omitempty,oneof=next previous"`
}

type MarkRequest struct {
	Position *int `json:"position" validate:"required,min=0"`
}

// SessionView is the rendered state of a session plus the attempt metadata
// the test page shows in its chrome.
type SessionView struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	Skill        string `json:"skill"`
	PassingScore int    `json:"passing_score"`
	session.Snapshot
}

// SubmitPrompt is what the confirmation dialog renders: the legend counts at
// the moment submission was requested.
type SubmitPrompt struct {
	SessionID string          `json:"session_id"`
	Summary   session.Summary `json:"summary"`
}

// ===== SERVICE INTERFACES =====

// ProviderClient is the slice of the assessment provider the session service
// consumes.
type ProviderClient interface {
	StartAttempt(ctx context.Context, token, assessmentID string) (*models.Attempt, error)
	SubmitAttempt(ctx context.Context, token, attemptID string, answers map[int]int) (models.Outcome, error)
}

// SessionService drives timed assessment sessions: one controller per
// attempt, from provider start to reported outcome.
type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest, userID, token string) (*StartSessionResponse, error)
	View(ctx context.Context, sessionID, userID string) (*SessionView, error)

	SelectAnswer(ctx context.Context, sessionID, userID string, req *SelectAnswerRequest) (*SessionView, error)
	Navigate(ctx context.Context, sessionID, userID string, req *NavigateRequest) (*SessionView, error)
	ToggleMark(ctx context.Context, sessionID, userID string, req *MarkRequest) (*SessionView, error)
	MarkAndNext(ctx context.Context, sessionID, userID string) (*SessionView, error)

	RequestSubmit(ctx context.Context, sessionID, userID string) (*SubmitPrompt, error)
	CancelSubmit(ctx context.Context, sessionID, userID string) (*SessionView, error)
	Submit(ctx context.Context, sessionID, userID string) (*models.Outcome, error)
	Close(ctx context.Context, sessionID, userID string) error

	Result(ctx context.Context, sessionID, userID string) (*models.Outcome, error)
}

// ReportService renders outcome reports for download.
type ReportService interface {
	OutcomeWorkbook(ctx context.Context, sessionID, userID string) ([]byte, error)
}
