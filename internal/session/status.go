package session

// QuestionStatus is the derived navigation state of a single question. It is
// recomputed from the session state on demand and never stored, so it cannot
// drift from the answer and visitation maps it is derived from.
type QuestionStatus string

const (
	StatusCurrent    QuestionStatus = "current"
	StatusAnswered   QuestionStatus = "answered"
	StatusVisited    QuestionStatus = "visited"
	StatusNotVisited QuestionStatus = "not_visited"
)

// QuestionState pairs a question's derived status with its orthogonal
// marked-for-review flag. A question can be answered and marked at once.
type QuestionState struct {
	Position int            `json:"position"`
	Status   QuestionStatus `json:"status"`
	Marked   bool           `json:"marked"`
}

// Summary holds the sidebar legend counts for one session.
type Summary struct {
	Answered   int `json:"answered"`
	Unanswered int `json:"unanswered"`
	Marked     int `json:"marked"`
	NotVisited int `json:"not_visited"`
}

func statusAt(position, current int, answers map[int]int, visited map[int]struct{}) QuestionStatus {
	if position == current {
		return StatusCurrent
	}
	if _, ok := answers[position]; ok {
		return StatusAnswered
	}
	if _, ok := visited[position]; ok {
		return StatusVisited
	}
	return StatusNotVisited
}
