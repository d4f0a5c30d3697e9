package model

// OptionView is an answer option as shown to a candidate. The correctness
// flag never leaves the server.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is a question as shown to a candidate during an active
// session.
type QuestionView struct {
	ID         string       `json:"id"`
	Position   int          `json:"position"`
	Prompt     string       `json:"prompt"`
	Type       string       `json:"type"`
	Options    []OptionView `json:"options"`
	Difficulty int          `json:"difficulty"`
	Flagged    bool         `json:"flagged"`
	Selection  []string     `json:"selection,omitempty"`
}
