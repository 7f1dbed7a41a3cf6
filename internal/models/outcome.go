package models

import "math"

type SkillLevel string

const (
	LevelBeginner     SkillLevel = "Beginner"
	LevelIntermediate SkillLevel = "Intermediate"
	LevelAdvanced     SkillLevel = "Advanced"
)

// Percentage cut-offs for the three-tier classification. The provider applies
// the same thresholds server-side; keeping them here lets the fallback path
// stay consistent with a provider-graded result.
const (
	IntermediateCutoff = 70.0
	AdvancedCutoff     = 90.0
)

// LevelForPercentage classifies a percentage score into the coarse skill
// tiers. The classification is independent of pass/fail, which is determined
// by the assessment's passing score (a correct-answer count, not a tier).
func LevelForPercentage(percentage float64) SkillLevel {
	switch {
	case percentage >= AdvancedCutoff:
		return LevelAdvanced
	case percentage >= IntermediateCutoff:
		return LevelIntermediate
	default:
		return LevelBeginner
	}
}

// Outcome is the graded result of one attempt. Passed and Level are
// independent pieces of information derived from the same score: a candidate
// can pass an assessment whose passing score sits below the Intermediate
// cut-off and still be classified Beginner.
type Outcome struct {
	Score         int        `json:"score"`
	MaxScore      int        `json:"max_score"`
	TotalAnswered int        `json:"total_answered"`
	Percentage    float64    `json:"percentage"`
	Passed        bool       `json:"passed"`
	Level         SkillLevel `json:"level"`
	TimeSpent     int        `json:"time_spent"` // seconds

	// Fallback marks an outcome computed locally after a grading failure.
	// Its score counts answered questions, not correct ones, and must not be
	// read as a verified grade.
	Fallback bool `json:"fallback,omitempty"`
}

// FallbackOutcome builds the conservative local outcome used when the
// provider cannot grade a submission. It fails closed: the candidate always
// gets a results view, never a verified pass.
func FallbackOutcome(answered, questionCount, timeSpent int) Outcome {
	percentage := 0.0
	if questionCount > 0 {
		percentage = math.Round(float64(answered) / float64(questionCount) * 100)
	}
	return Outcome{
		Score:         answered,
		MaxScore:      questionCount,
		TotalAnswered: answered,
		Percentage:    percentage,
		Passed:        false,
		Level:         LevelForPercentage(percentage),
		TimeSpent:     timeSpent,
		Fallback:      true,
	}
}
