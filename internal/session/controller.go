package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/interndesk/assessment-session-service/internal/models"
)

// Grader is the slice of the assessment provider the controller needs: a
// single grading call for a finished attempt. Keys of answers are server
// question indexes, values are selected option indexes. Unanswered questions
// are omitted entirely; the provider treats omissions as incorrect.
type Grader interface {
	SubmitAttempt(ctx context.Context, attemptID string, answers map[int]int) (models.Outcome, error)
}

// Callbacks connects a controller to its host shell. OnComplete fires exactly
// once, when the session reaches the completed state. OnClose fires when the
// candidate abandons the session before completion.
type Callbacks struct {
	OnComplete func(models.Outcome)
	OnClose    func()
}

// Controller owns the working state of exactly one attempt: answer selection,
// navigation, review marks, the countdown, and submission reconciliation
// against the grader. All state lives on the instance, so independent
// attempts never share anything.
//
// Every operation is serialized through one mutex; the tick loop and host
// calls interleave but never overlap, matching the event-callback model of
// the original test-taking page.
type Controller struct {
	mu sync.Mutex

	attempt *models.Attempt
	grader  Grader
	logger  *slog.Logger
	cb      Callbacks

	status         models.AttemptStatus
	answers        map[int]int // attempt-local position -> option index
	visited        map[int]struct{}
	marked         map[int]struct{}
	current        int
	remaining      int
	confirmPending bool

	outcome    models.Outcome
	hasOutcome bool
	endReason  string
}

// NewController builds a controller for an already-issued attempt. The first
// question counts as visited from the start, exactly as the test page shows
// it when it opens.
func NewController(attempt *models.Attempt, grader Grader, logger *slog.Logger, cb Callbacks) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		attempt:   attempt,
		grader:    grader,
		logger:    logger,
		cb:        cb,
		status:    models.AttemptActive,
		answers:   make(map[int]int),
		visited:   map[int]struct{}{0: {}},
		marked:    make(map[int]struct{}),
		remaining: attempt.DurationSeconds,
	}
}

// Run drives the countdown on a one-second cadence until the session leaves
// the active state or ctx is cancelled. Callers run it on its own goroutine.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := c.Tick(ctx); done {
				return
			}
		}
	}
}

// Tick advances the countdown by one second. Reaching zero triggers
// submission unconditionally, bypassing any pending confirmation dialog.
// It reports whether the session has left the active state.
func (c *Controller) Tick(ctx context.Context) bool {
	c.mu.Lock()
	if c.status != models.AttemptActive {
		c.mu.Unlock()
		return true
	}
	if c.remaining > 0 {
		c.remaining--
	}
	expired := c.remaining <= 0
	c.mu.Unlock()

	if expired {
		c.submit(ctx, models.EndReasonTimeout)
		return true
	}
	return false
}

// SelectAnswer records the option chosen for the question at position.
// Last write wins; answers stay mutable until submission. A no-op once the
// session is no longer active.
func (c *Controller) SelectAnswer(position, option int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != models.AttemptActive {
		return
	}
	if position < 0 || position >= c.attempt.QuestionCount() {
		return
	}
	if option < 0 || option >= models.OptionsPerQuestion {
		return
	}
	c.answers[position] = option
}

// GoTo displays the question at position. This is the only way a question
// leaves the not-visited state, and visitation is permanent.
func (c *Controller) GoTo(position int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goToLocked(position)
}

func (c *Controller) goToLocked(position int) {
	if c.status != models.AttemptActive {
		return
	}
	if position < 0 || position >= c.attempt.QuestionCount() {
		return
	}
	c.current = position
	c.visited[position] = struct{}{}
}

// Next moves to the following question; inert on the last one.
func (c *Controller) Next() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goToLocked(c.current + 1)
}

// Previous moves to the preceding question; inert on the first one.
func (c *Controller) Previous() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goToLocked(c.current - 1)
}

// ToggleMarkForReview flips the review flag on the question at position.
// Marking is orthogonal to answering.
func (c *Controller) ToggleMarkForReview(position int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != models.AttemptActive {
		return
	}
	if position < 0 || position >= c.attempt.QuestionCount() {
		return
	}
	if _, ok := c.marked[position]; ok {
		delete(c.marked, position)
	} else {
		c.marked[position] = struct{}{}
	}
}

// MarkAndNext toggles the review flag on the current question and advances.
// On the last question the mark still applies but no navigation happens.
func (c *Controller) MarkAndNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != models.AttemptActive {
		return
	}
	if _, ok := c.marked[c.current]; ok {
		delete(c.marked, c.current)
	} else {
		c.marked[c.current] = struct{}{}
	}
	if c.current < c.attempt.QuestionCount()-1 {
		c.goToLocked(c.current + 1)
	}
}

// RequestSubmit opens the confirmation gate and returns the counts the
// confirmation dialog shows. It mutates nothing but the gate itself; the
// session only leaves the active state through Submit.
func (c *Controller) RequestSubmit() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == models.AttemptActive {
		c.confirmPending = true
	}
	return c.summaryLocked()
}

// CancelSubmit withdraws a pending confirmation ("continue review").
func (c *Controller) CancelSubmit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmPending = false
}

// Submit grades the attempt. Idempotent: once the session has left the
// active state further calls do nothing, so a double-click or a timeout
// racing a manual submit never grades twice.
func (c *Controller) Submit(ctx context.Context) {
	c.submit(ctx, models.EndReasonSubmitted)
}

func (c *Controller) submit(ctx context.Context, reason string) {
	c.mu.Lock()
	if c.status != models.AttemptActive {
		c.mu.Unlock()
		return
	}
	c.status = models.AttemptSubmitting
	c.confirmPending = false
	c.endReason = reason

	payload := make(map[int]int, len(c.answers))
	for position, option := range c.answers {
		payload[c.attempt.Questions[position].ServerIndex] = option
	}
	answered := len(c.answers)
	timeSpent := c.attempt.DurationSeconds - c.remaining
	c.mu.Unlock()

	// Single grading call, no retry. Any failure falls through to the
	// conservative local outcome so the candidate is never stuck on a
	// network blip at submission time.
	outcome, err := c.grader.SubmitAttempt(ctx, c.attempt.ID, payload)
	if err != nil {
		c.logger.Error("grading call failed, using local fallback outcome",
			"attempt_id", c.attempt.ID,
			"answered", answered,
			"error", err)
		outcome = models.FallbackOutcome(answered, c.attempt.QuestionCount(), timeSpent)
	} else {
		outcome.TimeSpent = timeSpent
	}

	c.mu.Lock()
	if c.status != models.AttemptSubmitting {
		// Closed while the grading call was in flight; the outcome has no
		// audience anymore.
		c.mu.Unlock()
		return
	}
	c.status = models.AttemptCompleted
	c.outcome = outcome
	c.hasOutcome = true
	onComplete := c.cb.OnComplete
	c.mu.Unlock()

	c.logger.Info("attempt completed",
		"attempt_id", c.attempt.ID,
		"end_reason", reason,
		"score", outcome.Score,
		"max_score", outcome.MaxScore,
		"passed", outcome.Passed,
		"level", outcome.Level,
		"fallback", outcome.Fallback)

	if onComplete != nil {
		onComplete(outcome)
	}
}

// Close abandons the session before completion. The provider is not
// informed; the attempt is simply walked away from. A no-op once the
// session has completed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.status == models.AttemptCompleted || c.status == models.AttemptAbandoned {
		c.mu.Unlock()
		return
	}
	c.status = models.AttemptAbandoned
	c.endReason = models.EndReasonAbandoned
	onClose := c.cb.OnClose
	c.mu.Unlock()

	c.logger.Info("attempt abandoned", "attempt_id", c.attempt.ID)

	if onClose != nil {
		onClose()
	}
}

// Outcome returns the reported result once the session has completed.
func (c *Controller) Outcome() (models.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome, c.hasOutcome
}

// Attempt exposes the immutable attempt this controller drives.
func (c *Controller) Attempt() *models.Attempt {
	return c.attempt
}

func (c *Controller) summaryLocked() Summary {
	total := c.attempt.QuestionCount()
	return Summary{
		Answered:   len(c.answers),
		Unanswered: total - len(c.answers),
		Marked:     len(c.marked),
		NotVisited: total - len(c.visited),
	}
}

// Snapshot is a point-in-time view of the session for rendering: current
// position, countdown, per-question states and the legend counts.
type Snapshot struct {
	AttemptID        string               `json:"attempt_id"`
	Status           models.AttemptStatus `json:"status"`
	CurrentPosition  int                  `json:"current_position"`
	RemainingSeconds int                  `json:"remaining_seconds"`
	ConfirmPending   bool                 `json:"confirm_pending"`
	Answers          map[int]int          `json:"answers"`
	Questions        []QuestionState      `json:"questions"`
	Summary          Summary              `json:"summary"`
}

// Snapshot derives the current view of the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	answers := make(map[int]int, len(c.answers))
	for position, option := range c.answers {
		answers[position] = option
	}

	questions := make([]QuestionState, c.attempt.QuestionCount())
	for i := range questions {
		_, marked := c.marked[i]
		questions[i] = QuestionState{
			Position: i,
			Status:   statusAt(i, c.current, c.answers, c.visited),
			Marked:   marked,
		}
	}

	return Snapshot{
		AttemptID:        c.attempt.ID,
		Status:           c.status,
		CurrentPosition:  c.current,
		RemainingSeconds: c.remaining,
		ConfirmPending:   c.confirmPending,
		Answers:          answers,
		Questions:        questions,
		Summary:          c.summaryLocked(),
	}
}
