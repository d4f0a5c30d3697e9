package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionNavigate  Action = "navigate"
	ActionFlag      Action = "flag"
	ActionIntegrity Action = "integrity"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest is sent by the client to answer the current question.
type AnswerRequest struct {
	Action    Action   `json:"action"`
	QID       string   `json:"q_id"`
	Selection []string `json:"selection"`
}

// NavigateRequest is sent by the client to move to another question.
type NavigateRequest struct {
	Action Action `json:"action"`
	Target int    `json:"target"`
}

// FlagRequest is sent by the client to flag or unflag the current question.
type FlagRequest struct {
	Action  Action `json:"action"`
	Flagged bool   `json:"flagged"`
}

// IntegrityRequest is sent by the client to report an integrity signal.
type IntegrityRequest struct {
	Action Action `json:"action"`
	Signal string `json:"signal"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError       Event = "error"
	EventSuccess     Event = "success"
	EventFeedback    Event = "feedback"
	EventState       Event = "state"
	EventTimeWarning Event = "time_warning"
	EventExpired     Event = "expired"
	EventSaveWarning Event = "save_warning"
	EventPong        Event = "pong"
)

type AckResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// FeedbackResponse carries practice-mode feedback after an answer.
type FeedbackResponse struct {
	Event            Event    `json:"event"`
	Correct          bool     `json:"correct"`
	CorrectOptionIDs []string `json:"correct_option_ids"`
	Explanation      string   `json:"explanation,omitempty"`
}

// StateResponse mirrors a session lifecycle event to the client.
type StateResponse struct {
	Event    Event   `json:"event"`
	Status   string  `json:"status"`
	Fraction float64 `json:"fraction,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
