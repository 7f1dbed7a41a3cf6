package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/interndesk/assessment-session-service/internal/models"
)

// Client talks to the assessment provider: the backend that issues attempts
// with a randomized question subset and grades submissions. It implements the
// two calls this service consumes and nothing else.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

type startQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	QuestionIndex int      `json:"questionIndex"`
}

type startResponse struct {
	AssessmentID string          `json:"assessmentId"`
	Title        string          `json:"title"`
	Skill        string          `json:"skill"`
	Duration     int             `json:"duration"` // minutes
	PassingScore int             `json:"passingScore"`
	Questions    []startQuestion `json:"questions"`
}

type submitRequest struct {
	Answers map[int]int `json:"answers"`
}

type submitResponse struct {
	Score         int     `json:"score"`
	MaxScore      int     `json:"maxScore"`
	TotalAnswered int     `json:"totalAnswered"`
	Percentage    float64 `json:"percentage"`
	Passed        bool    `json:"passed"`
	Level         string  `json:"level"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// StartAttempt asks the provider to issue a new attempt for the assessment
// definition. The returned attempt carries the provider's correlation ID, the
// fixed duration, and the randomized question subset; the correct options are
// never part of the response.
func (c *Client) StartAttempt(ctx context.Context, token, assessmentID string) (*models.Attempt, error) {
	url := fmt.Sprintf("%s/api/assessments/%s/start", c.baseURL, assessmentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build start request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("start attempt request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.apiError(resp)
	}

	var body startResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode start response: %w", err)
	}
	// A session cannot run without questions; treat this like any other
	// failed start so the caller can retry.
	if len(body.Questions) == 0 {
		return nil, fmt.Errorf("attempt for assessment %s has no questions", assessmentID)
	}

	questions := make([]models.Question, len(body.Questions))
	for i, q := range body.Questions {
		questions[i] = models.Question{
			ServerIndex: q.QuestionIndex,
			Prompt:      q.Question,
			Options:     q.Options,
		}
	}

	attempt := &models.Attempt{
		ID:              body.AssessmentID,
		AssessmentID:    assessmentID,
		Title:           body.Title,
		Skill:           body.Skill,
		DurationSeconds: body.Duration * 60,
		PassingScore:    body.PassingScore,
		Questions:       questions,
		StartedAt:       time.Now(),
	}

	c.logger.Info("attempt issued",
		"assessment_id", assessmentID,
		"attempt_id", attempt.ID,
		"questions", len(questions),
		"duration_seconds", attempt.DurationSeconds)

	return attempt, nil
}

// SubmitAttempt sends the accumulated answers for grading. Keys of answers
// are server question indexes; unanswered questions must be absent from the
// map, the provider counts omissions as incorrect.
func (c *Client) SubmitAttempt(ctx context.Context, token, attemptID string, answers map[int]int) (models.Outcome, error) {
	payload, err := json.Marshal(submitRequest{Answers: answers})
	if err != nil {
		return models.Outcome{}, fmt.Errorf("failed to encode submission: %w", err)
	}

	url := fmt.Sprintf("%s/api/assessments/%s/submit", c.baseURL, attemptID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return models.Outcome{}, fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("submit attempt request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Outcome{}, c.apiError(resp)
	}

	var body submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Outcome{}, fmt.Errorf("failed to decode grading response: %w", err)
	}

	return models.Outcome{
		Score:         body.Score,
		MaxScore:      body.MaxScore,
		TotalAnswered: body.TotalAnswered,
		Percentage:    body.Percentage,
		Passed:        body.Passed,
		Level:         models.SkillLevel(body.Level),
	}, nil
}

func (c *Client) apiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: "unexpected provider response"}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var body errorResponse
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			apiErr.Message = body.Message
		}
	}
	return apiErr
}
