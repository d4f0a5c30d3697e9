package engine

// QuestionType distinguishes single-answer from multi-answer questions.
type QuestionType string

const (
	QuestionSingleSelect QuestionType = "single-select"
	QuestionMultiSelect  QuestionType = "multi-select"
)

// Option is one selectable choice on a question. Correct is never serialized
// into candidate-facing payloads; the engine holds the full copy.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"-"`
}

// Question is an immutable in-memory copy of a question for the duration of
// a session. The Question Store owns the canonical record.
type Question struct {
	ID          string       `json:"id"`
	Prompt      string       `json:"prompt"`
	Type        QuestionType `json:"type"`
	Options     []Option     `json:"options"`
	Difficulty  int          `json:"difficulty"`
	ObjectiveID string       `json:"objective_id"`
	Explanation string       `json:"explanation,omitempty"`
}

// CorrectOptionIDs returns the ids of all options flagged correct.
func (q *Question) CorrectOptionIDs() []string {
	var ids []string
	for _, o := range q.Options {
		if o.Correct {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// HasOption reports whether the question contains an option with the given id.
func (q *Question) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}
