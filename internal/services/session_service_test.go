package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/interndesk/assessment-session-service/internal/events"
	"github.com/interndesk/assessment-session-service/internal/models"
	"github.com/interndesk/assessment-session-service/internal/store"
	"github.com/interndesk/assessment-session-service/internal/validator"
)

type mockProvider struct {
	mu          sync.Mutex
	attempt     *models.Attempt
	startErr    error
	outcome     models.Outcome
	submitErr   error
	submitCalls int
	lastAnswers map[int]int
	lastToken   string
}

func (m *mockProvider) StartAttempt(ctx context.Context, token, assessmentID string) (*models.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastToken = token
	if m.startErr != nil {
		return nil, m.startErr
	}
	return m.attempt, nil
}

func (m *mockProvider) SubmitAttempt(ctx context.Context, token, attemptID string, answers map[int]int) (models.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCalls++
	m.lastAnswers = answers
	if m.submitErr != nil {
		return models.Outcome{}, m.submitErr
	}
	return m.outcome, nil
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitCalls
}

func serviceAttempt() *models.Attempt {
	questions := make([]models.Question, 5)
	for i := range questions {
		questions[i] = models.Question{
			ServerIndex: 10 + i,
			Prompt:      "prompt",
			Options:     []string{"a", "b", "c", "d"},
		}
	}
	return &models.Attempt{
		ID:              "at-1",
		AssessmentID:    "as-1",
		Title:           "Go Basics",
		Skill:           "Go",
		DurationSeconds: 300,
		PassingScore:    3,
		Questions:       questions,
	}
}

func newTestService(t *testing.T, provider ProviderClient) (SessionService, *events.MockEventPublisher, *store.MemoryRegistry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewMockEventPublisher(logger)
	registry := store.NewMemoryRegistry()
	svc := NewSessionService(provider, registry, publisher, logger, validator.New())
	return svc, publisher, registry
}

func intPtr(v int) *int { return &v }

func TestSessionService_StartAndView(t *testing.T) {
	provider := &mockProvider{attempt: serviceAttempt()}
	svc, publisher, _ := newTestService(t, provider)
	ctx := context.Background()

	resp, err := svc.Start(ctx, &StartSessionRequest{AssessmentID: "as-1"}, "user-1", "tok")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp.SessionID == "" || resp.Attempt.ID != "at-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.State.RemainingSeconds != 300 {
		t.Fatalf("remaining = %d", resp.State.RemainingSeconds)
	}
	if provider.lastToken != "tok" {
		t.Fatalf("token not passed through: %q", provider.lastToken)
	}

	view, err := svc.View(ctx, resp.SessionID, "user-1")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.Title != "Go Basics" || view.PassingScore != 3 {
		t.Fatalf("view metadata wrong: %+v", view)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.TypeSessionStarted {
		t.Fatalf("events = %+v", published)
	}
	if published[0].Data.UserID != "user-1" || published[0].Data.AttemptID != "at-1" {
		t.Fatalf("event data = %+v", published[0].Data)
	}
}

func TestSessionService_StartRejectsEmptyAttempt(t *testing.T) {
	provider := &mockProvider{attempt: &models.Attempt{ID: "at-1", AssessmentID: "as-1", DurationSeconds: 300}}
	svc, publisher, _ := newTestService(t, provider)

	// A session over zero questions would report negative legend counts and
	// an out-of-range current position.
	_, err := svc.Start(context.Background(), &StartSessionRequest{AssessmentID: "as-1"}, "user-1", "tok")
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("err = %v, want ErrStartFailed", err)
	}
	if len(publisher.GetPublishedEvents()) != 0 {
		t.Fatal("no events may be published for a refused start")
	}
}

func TestSessionService_StartFailureIsRetryable(t *testing.T) {
	provider := &mockProvider{startErr: errors.New("upstream down")}
	svc, publisher, _ := newTestService(t, provider)

	_, err := svc.Start(context.Background(), &StartSessionRequest{AssessmentID: "as-1"}, "user-1", "tok")
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("err = %v, want ErrStartFailed", err)
	}
	if len(publisher.GetPublishedEvents()) != 0 {
		t.Fatal("no events may be published for a failed start")
	}
}

func TestSessionService_OwnershipEnforced(t *testing.T) {
	provider := &mockProvider{attempt: serviceAttempt()}
	svc, _, _ := newTestService(t, provider)
	ctx := context.Background()

	resp, err := svc.Start(ctx, &StartSessionRequest{AssessmentID: "as-1"}, "user-1", "tok")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := svc.View(ctx, resp.SessionID, "intruder"); !IsPermissionError(err) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if _, err := svc.Submit(ctx, resp.SessionID, "intruder"); !IsPermissionError(err) {
		t.Fatalf("expected permission error on submit, got %v", err)
	}
}

func TestSessionService_FullFlow(t *testing.T) {
	provider := &mockProvider{
		attempt: serviceAttempt(),
		outcome: models.Outcome{Score: 3, MaxScore: 5, TotalAnswered: 3, Percentage: 60, Passed: true, Level: models.LevelBeginner},
	}
	svc, publisher, registry := newTestService(t, provider)
	ctx := context.Background()

	resp, err := svc.Start(ctx, &StartSessionRequest{AssessmentID: "as-1"}, "user-1", "tok")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := resp.SessionID

	if _, err := svc.SelectAnswer(ctx, id, "user-1", &SelectAnswerRequest{Position: intPtr(0), Option: intPtr(2)}); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if _, err := svc.SelectAnswer(ctx, id, "user-1", &SelectAnswerRequest{Position: intPtr(3), Option: intPtr(1)}); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	view, err := svc.Navigate(ctx, id, "user-1", &NavigateRequest{Direction: "next"})
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if view.CurrentPosition != 1 {
		t.Fatalf("position = %d", view.CurrentPosition)
	}
	if _, err := svc.ToggleMark(ctx, id, "user-1", &MarkRequest{Position: intPtr(1)}); err != nil {
		t.Fatalf("ToggleMark: %v", err)
	}

	prompt, err := svc.RequestSubmit(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if prompt.Summary.Answered != 2 || prompt.Summary.Marked != 1 {
		t.Fatalf("summary = %+v", prompt.Summary)
	}

	outcome, err := svc.Submit(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !outcome.Passed || outcome.Level != models.LevelBeginner {
		t.Fatalf("outcome = %+v", outcome)
	}

	// Payload carries server indexes for answered positions only.
	want := map[int]int{10: 2, 13: 1}
	if len(provider.lastAnswers) != 2 || provider.lastAnswers[10] != want[10] || provider.lastAnswers[13] != want[13] {
		t.Fatalf("submitted answers = %v, want %v", provider.lastAnswers, want)
	}

	// A second submit is a no-op on the same outcome.
	again, err := svc.Submit(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if provider.calls() != 1 {
		t.Fatalf("grading calls = %d, want 1", provider.calls())
	}
	if *again != *outcome {
		t.Fatalf("outcome changed on resubmit")
	}

	// Completion replaces the live entry with an outcome snapshot.
	if _, err := registry.Get(ctx, id); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("completed session not evicted: %v", err)
	}
	record, err := registry.GetOutcome(ctx, id)
	if err != nil {
		t.Fatalf("outcome not persisted: %v", err)
	}
	if record.UserID != "user-1" {
		t.Fatalf("snapshot owner = %q", record.UserID)
	}
	result, err := svc.Result(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if result.Score != 3 {
		t.Fatalf("result = %+v", result)
	}
	if _, err := svc.Result(ctx, id, "intruder"); !IsPermissionError(err) {
		t.Fatalf("snapshot read must stay owner-scoped, got %v", err)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 2 || published[1].Type != events.TypeSessionCompleted {
		t.Fatalf("events = %+v", published)
	}
	if published[1].Data.Outcome == nil || published[1].Data.Outcome.Score != 3 {
		t.Fatalf("completed event missing outcome: %+v", published[1].Data)
	}
}

func TestSessionService_SubmitFailureYieldsFallback(t *testing.T) {
	provider := &mockProvider{
		attempt:   serviceAttempt(),
		submitErr: errors.New("gateway timeout"),
	}
	svc, _, _ := newTestService(t, provider)
	ctx := context.Background()

	resp, err := svc.Start(ctx, &StartSessionRequest{AssessmentID: "as-1"}, "user-1", "tok")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := svc.SelectAnswer(ctx, resp.SessionID, "user-1", &SelectAnswerRequest{Position: intPtr(0), Option: intPtr(0)}); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	outcome, err := svc.Submit(ctx, resp.SessionID, "user-1")
	if err != nil {
		t.Fatalf("Submit must absorb grading failures, got %v", err)
	}
	if outcome.Passed || !outcome.Fallback {
		t.Fatalf("expected conservative fallback, got %+v", outcome)
	}
	if outcome.Score != 1 || outcome.MaxScore != 5 {
		t.Fatalf("fallback score = %d/%d", outcome.Score, outcome.MaxScore)
	}
}

func TestSessionService_CloseAbandonsSession(t *testing.T) {
	provider := &mockProvider{attempt: serviceAttempt()}
	svc, publisher, _ := newTestService(t, provider)
	ctx := context.Background()

	resp, err := svc.Start(ctx, &StartSessionRequest{AssessmentID: "as-1"}, "user-1", "tok")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := svc.Close(ctx, resp.SessionID, "user-1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := svc.View(ctx, resp.SessionID, "user-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
	if provider.calls() != 0 {
		t.Fatal("abandoning must not grade")
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 2 || published[1].Type != events.TypeSessionAbandoned {
		t.Fatalf("events = %+v", published)
	}
}

func TestSessionService_InputValidation(t *testing.T) {
	provider := &mockProvider{attempt: serviceAttempt()}
	svc, _, _ := newTestService(t, provider)
	ctx := context.Background()

	resp, err := svc.Start(ctx, &StartSessionRequest{AssessmentID: "as-1"}, "user-1", "tok")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := resp.SessionID

	if _, err := svc.Start(ctx, &StartSessionRequest{}, "user-1", "tok"); err == nil {
		t.Fatal("empty assessment id must fail validation")
	}
	if _, err := svc.SelectAnswer(ctx, id, "user-1", &SelectAnswerRequest{Position: intPtr(7), Option: intPtr(0)}); !errors.Is(err, ErrPositionOutOfRange) {
		t.Fatalf("expected ErrPositionOutOfRange, got %v", err)
	}
	if _, err := svc.SelectAnswer(ctx, id, "user-1", &SelectAnswerRequest{Position: intPtr(0), Option: intPtr(9)}); err == nil {
		t.Fatal("option out of range must fail validation")
	}
	if _, err := svc.Navigate(ctx, id, "user-1", &NavigateRequest{}); !errors.Is(err, ErrInvalidNavigation) {
		t.Fatalf("expected ErrInvalidNavigation, got %v", err)
	}
	if _, err := svc.Navigate(ctx, id, "user-1", &NavigateRequest{Position: intPtr(11)}); !errors.Is(err, ErrPositionOutOfRange) {
		t.Fatalf("expected ErrPositionOutOfRange, got %v", err)
	}
}

func TestReportService_OutcomeWorkbook(t *testing.T) {
	provider := &mockProvider{
		attempt: serviceAttempt(),
		outcome: models.Outcome{Score: 4, MaxScore: 5, Percentage: 80, Passed: true, Level: models.LevelIntermediate},
	}
	svc, _, _ := newTestService(t, provider)
	ctx := context.Background()

	resp, err := svc.Start(ctx, &StartSessionRequest{AssessmentID: "as-1"}, "user-1", "tok")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Submit(ctx, resp.SessionID, "user-1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reports := NewReportService(svc, logger)

	workbook, err := reports.OutcomeWorkbook(ctx, resp.SessionID, "user-1")
	if err != nil {
		t.Fatalf("OutcomeWorkbook: %v", err)
	}
	if len(workbook) == 0 {
		t.Fatal("empty workbook")
	}

	// An incomplete session has no report.
	other, err := svc.Start(ctx, &StartSessionRequest{AssessmentID: "as-1"}, "user-1", "tok")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := reports.OutcomeWorkbook(ctx, other.SessionID, "user-1"); !errors.Is(err, ErrSessionNotCompleted) {
		t.Fatalf("expected ErrSessionNotCompleted, got %v", err)
	}
}
