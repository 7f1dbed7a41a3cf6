package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/interndesk/assessment-session-service/internal/events"
	"github.com/interndesk/assessment-session-service/internal/models"
	"github.com/interndesk/assessment-session-service/internal/session"
	"github.com/interndesk/assessment-session-service/internal/store"
	"github.com/interndesk/assessment-session-service/internal/validator"
)

type sessionService struct {
	provider  ProviderClient
	registry  store.Registry
	publisher events.Publisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewSessionService(
	provider ProviderClient,
	registry store.Registry,
	publisher events.Publisher,
	logger *slog.Logger,
	validator *validator.Validator,
) SessionService {
	return &sessionService{
		provider:  provider,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
		validator: validator,
	}
}

// boundGrader narrows the provider client to the single grading call a
// controller needs, with the candidate's token fixed.
type boundGrader struct {
	provider ProviderClient
	token    string
}

func (g boundGrader) SubmitAttempt(ctx context.Context, attemptID string, answers map[int]int) (models.Outcome, error) {
	return g.provider.SubmitAttempt(ctx, g.token, attemptID, answers)
}

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest, userID, token string) (*StartSessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	s.logger.Info("starting assessment session",
		"assessment_id", req.AssessmentID,
		"user_id", userID)

	attempt, err := s.provider.StartAttempt(ctx, token, req.AssessmentID)
	if err != nil {
		// No session exists at this point; the caller can simply retry.
		s.logger.Error("provider refused to start attempt",
			"assessment_id", req.AssessmentID,
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	if attempt.QuestionCount() == 0 {
		// The controller's position and legend invariants assume at least
		// one question.
		s.logger.Error("provider issued attempt without questions",
			"assessment_id", req.AssessmentID,
			"attempt_id", attempt.ID)
		return nil, fmt.Errorf("%w: attempt has no questions", ErrStartFailed)
	}

	sessionID := uuid.New().String()
	runCtx, cancel := context.WithCancel(context.Background())

	ctrl := session.NewController(attempt, boundGrader{provider: s.provider, token: token}, s.logger, session.Callbacks{
		OnComplete: func(outcome models.Outcome) {
			s.onComplete(sessionID, userID, attempt, outcome)
			cancel()
		},
		OnClose: func() {
			s.onClose(sessionID, userID, attempt)
			cancel()
		},
	})

	entry := &store.Entry{
		SessionID: sessionID,
		UserID:    userID,
		Ctrl:      ctrl,
		Cancel:    cancel,
	}
	if err := s.registry.Put(ctx, entry); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to register session: %w", err)
	}

	go ctrl.Run(runCtx)

	s.publish(events.TypeSessionStarted, sessionID, userID, attempt, nil)

	s.logger.Info("assessment session started",
		"session_id", sessionID,
		"attempt_id", attempt.ID,
		"questions", attempt.QuestionCount(),
		"duration_seconds", attempt.DurationSeconds,
		"deadline", attempt.Deadline())

	return &StartSessionResponse{
		SessionID: sessionID,
		Attempt:   attempt,
		State:     ctrl.Snapshot(),
	}, nil
}

func (s *sessionService) onComplete(sessionID, userID string, attempt *models.Attempt, outcome models.Outcome) {
	ctx := context.Background()
	if err := s.registry.SaveOutcome(ctx, sessionID, userID, outcome); err != nil {
		// Keep the live entry as the outcome's only home.
		s.logger.Error("failed to persist outcome snapshot",
			"session_id", sessionID, "error", err)
	} else if err := s.registry.Delete(ctx, sessionID); err != nil {
		s.logger.Error("failed to evict completed session",
			"session_id", sessionID, "error", err)
	}
	s.publish(events.TypeSessionCompleted, sessionID, userID, attempt, &outcome)
}

func (s *sessionService) onClose(sessionID, userID string, attempt *models.Attempt) {
	ctx := context.Background()
	if err := s.registry.Delete(ctx, sessionID); err != nil {
		s.logger.Error("failed to deregister abandoned session",
			"session_id", sessionID, "error", err)
	}
	s.publish(events.TypeSessionAbandoned, sessionID, userID, attempt, nil)
}

func (s *sessionService) publish(eventType, sessionID, userID string, attempt *models.Attempt, outcome *models.Outcome) {
	err := s.publisher.Publish(context.Background(), events.Event{
		Type: eventType,
		Data: events.SessionEvent{
			SessionID:    sessionID,
			AttemptID:    attempt.ID,
			AssessmentID: attempt.AssessmentID,
			UserID:       userID,
			Outcome:      outcome,
		},
	})
	if err != nil {
		// Events are advisory; a broker problem never blocks a session.
		s.logger.Error("failed to publish session event",
			"type", eventType, "session_id", sessionID, "error", err)
	}
}

func (s *sessionService) entryFor(ctx context.Context, sessionID, userID, action string) (*store.Entry, error) {
	entry, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if entry.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "session", action, "not owned by user")
	}
	return entry, nil
}

func (s *sessionService) viewOf(entry *store.Entry) *SessionView {
	attempt := entry.Ctrl.Attempt()
	return &SessionView{
		SessionID:    entry.SessionID,
		Title:        attempt.Title,
		Skill:        attempt.Skill,
		PassingScore: attempt.PassingScore,
		Snapshot:     entry.Ctrl.Snapshot(),
	}
}

func (s *sessionService) View(ctx context.Context, sessionID, userID string) (*SessionView, error) {
	entry, err := s.entryFor(ctx, sessionID, userID, "read")
	if err != nil {
		return nil, err
	}
	return s.viewOf(entry), nil
}

func (s *sessionService) SelectAnswer(ctx context.Context, sessionID, userID string, req *SelectAnswerRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	entry, err := s.entryFor(ctx, sessionID, userID, "answer")
	if err != nil {
		return nil, err
	}
	if *req.Position >= entry.Ctrl.Attempt().QuestionCount() {
		return nil, ErrPositionOutOfRange
	}
	if *req.Option >= models.OptionsPerQuestion {
		return nil, ErrOptionOutOfRange
	}

	entry.Ctrl.SelectAnswer(*req.Position, *req.Option)
	return s.viewOf(entry), nil
}

func (s *sessionService) Navigate(ctx context.Context, sessionID, userID string, req *NavigateRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	entry, err := s.entryFor(ctx, sessionID, userID, "navigate")
	if err != nil {
		return nil, err
	}

	switch {
	case req.Position != nil:
		if *req.Position >= entry.Ctrl.Attempt().QuestionCount() {
			return nil, ErrPositionOutOfRange
		}
		entry.Ctrl.GoTo(*req.Position)
	case req.Direction == "next":
		entry.Ctrl.Next()
	case req.Direction == "previous":
		entry.Ctrl.Previous()
	default:
		return nil, ErrInvalidNavigation
	}

	return s.viewOf(entry), nil
}

func (s *sessionService) ToggleMark(ctx context.Context, sessionID, userID string, req *MarkRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	entry, err := s.entryFor(ctx, sessionID, userID, "mark")
	if err != nil {
		return nil, err
	}
	if *req.Position >= entry.Ctrl.Attempt().QuestionCount() {
		return nil, ErrPositionOutOfRange
	}

	entry.Ctrl.ToggleMarkForReview(*req.Position)
	return s.viewOf(entry), nil
}

func (s *sessionService) MarkAndNext(ctx context.Context, sessionID, userID string) (*SessionView, error) {
	entry, err := s.entryFor(ctx, sessionID, userID, "mark")
	if err != nil {
		return nil, err
	}
	entry.Ctrl.MarkAndNext()
	return s.viewOf(entry), nil
}

func (s *sessionService) RequestSubmit(ctx context.Context, sessionID, userID string) (*SubmitPrompt, error) {
	entry, err := s.entryFor(ctx, sessionID, userID, "submit")
	if err != nil {
		return nil, err
	}
	return &SubmitPrompt{
		SessionID: sessionID,
		Summary:   entry.Ctrl.RequestSubmit(),
	}, nil
}

func (s *sessionService) CancelSubmit(ctx context.Context, sessionID, userID string) (*SessionView, error) {
	entry, err := s.entryFor(ctx, sessionID, userID, "submit")
	if err != nil {
		return nil, err
	}
	entry.Ctrl.CancelSubmit()
	return s.viewOf(entry), nil
}

func (s *sessionService) Submit(ctx context.Context, sessionID, userID string) (*models.Outcome, error) {
	entry, err := s.entryFor(ctx, sessionID, userID, "submit")
	if err != nil {
		// A completed session has been evicted; a repeated submit hands
		// back the recorded outcome instead of failing.
		if errors.Is(err, ErrSessionNotFound) {
			return s.storedOutcome(ctx, sessionID, userID)
		}
		return nil, err
	}

	// Idempotent under the hood: if the timer already submitted, this is a
	// no-op and we hand back the recorded outcome.
	entry.Ctrl.Submit(ctx)

	outcome, ok := entry.Ctrl.Outcome()
	if !ok {
		return nil, ErrSessionNotActive
	}
	return &outcome, nil
}

func (s *sessionService) Close(ctx context.Context, sessionID, userID string) error {
	entry, err := s.entryFor(ctx, sessionID, userID, "close")
	if err != nil {
		return err
	}
	entry.Ctrl.Close()
	return nil
}

func (s *sessionService) Result(ctx context.Context, sessionID, userID string) (*models.Outcome, error) {
	entry, err := s.entryFor(ctx, sessionID, userID, "read")
	if err != nil {
		// Completed sessions live on only as outcome snapshots.
		if errors.Is(err, ErrSessionNotFound) {
			return s.storedOutcome(ctx, sessionID, userID)
		}
		return nil, err
	}
	if outcome, ok := entry.Ctrl.Outcome(); ok {
		return &outcome, nil
	}
	return nil, ErrSessionNotCompleted
}

// storedOutcome reads a completed session's snapshot, enforcing the same
// ownership rule the live entry would.
func (s *sessionService) storedOutcome(ctx context.Context, sessionID, userID string) (*models.Outcome, error) {
	record, err := s.registry.GetOutcome(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrOutcomeNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load outcome: %w", err)
	}
	if record.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "session", "read", "not owned by user")
	}
	return &record.Outcome, nil
}
