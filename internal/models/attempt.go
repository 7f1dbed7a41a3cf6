package models

import "time"

type AttemptStatus string

const (
	AttemptActive     AttemptStatus = "active"
	AttemptSubmitting AttemptStatus = "submitting"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

const (
	EndReasonSubmitted = "submitted"
	EndReasonTimeout   = "time_out"
	EndReasonAbandoned = "abandoned"
)

// OptionsPerQuestion is fixed by the assessment format: every question carries
// exactly four candidate answers, exactly one of which is correct.
const OptionsPerQuestion = 4

// Question is a single item of an issued attempt. ServerIndex is the
// identifier the provider uses to map the question back to its canonical
// question bank entry; the question's position within Attempt.Questions is
// attempt-local and distinct from it. The correct option never reaches this
// side of the wire before grading.
type Question struct {
	ServerIndex int      `json:"question_index"`
	Prompt      string   `json:"question"`
	Options     []string `json:"options"`
}

// Attempt is one issued, time-boxed test instance with a fixed randomized
// question subset. Duration and question order are immutable for the
// attempt's lifetime.
type Attempt struct {
	ID              string     `json:"attempt_id"`
	AssessmentID    string     `json:"assessment_id"`
	Title           string     `json:"title"`
	Skill           string     `json:"skill"`
	DurationSeconds int        `json:"duration_seconds"`
	PassingScore    int        `json:"passing_score"` // correct answers required to pass
	Questions       []Question `json:"questions"`
	StartedAt       time.Time  `json:"started_at"`
}

func (a *Attempt) QuestionCount() int {
	return len(a.Questions)
}

// Deadline is the instant the attempt becomes ineligible for further answer
// changes.
func (a *Attempt) Deadline() time.Time {
	return a.StartedAt.Add(time.Duration(a.DurationSeconds) * time.Second)
}
