package engine

// QuestionOutcome classifies how one question ended up in the final result.
type QuestionOutcome string

const (
	OutcomeCorrect   QuestionOutcome = "correct"
	OutcomeIncorrect QuestionOutcome = "incorrect"
	OutcomeSkipped   QuestionOutcome = "skipped"
)

// FinalizedResult is the immutable summary handed to the Result Store when a
// session completes. Skipped questions always score as incorrect, so
// CorrectCount + IncorrectCount + SkippedCount == TotalQuestions.
type FinalizedResult struct {
	SessionID        string                     `json:"session_id"`
	ExamID           string                     `json:"exam_id"`
	Mode             Mode                       `json:"mode"`
	Score            float64                    `json:"score"`
	Passed           bool                       `json:"passed"`
	CorrectCount     int                        `json:"correct_count"`
	IncorrectCount   int                        `json:"incorrect_count"`
	SkippedCount     int                        `json:"skipped_count"`
	TotalQuestions   int                        `json:"total_questions"`
	Breakdown        map[string]ObjectiveScore  `json:"breakdown"`
	Readiness        float64                    `json:"readiness"`
	Outcomes         map[string]QuestionOutcome `json:"outcomes"`
	TotalTimeSeconds int                        `json:"total_time_seconds"`
	ViolationCount   int                        `json:"violation_count"`
}
