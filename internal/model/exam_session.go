package model

import (
	"time"

	"github.com/certlab/examd/internal/engine"
)

// StartSessionRequest is the payload for starting (or resuming) a session.
// Providing an existing session id resumes that session; omitting it starts a
// fresh one.
type StartSessionRequest struct {
	SessionID     string   `json:"session_id" binding:"omitempty,uuid"`
	ExamID        string   `json:"exam_id" binding:"required,uuid"`
	Mode          string   `json:"mode" binding:"required,oneof=practice timed formal"`
	QuestionCount int      `json:"question_count" binding:"omitempty,min=1,max=500"`
	Shuffle       bool     `json:"shuffle"`
	ObjectiveIDs  []string `json:"objective_ids" binding:"omitempty,dive,min=1"`
	MinDifficulty int      `json:"min_difficulty" binding:"omitempty,min=1,max=5"`
	MaxDifficulty int      `json:"max_difficulty" binding:"omitempty,min=1,max=5,gtefield=MinDifficulty"`
}

// SubmitAnswerRequest is the payload for answering the current question.
type SubmitAnswerRequest struct {
	QuestionID string   `json:"question_id" binding:"required"`
	Selection  []string `json:"selection" binding:"required,min=1,dive,min=1"`
}

// AdvanceRequest is the payload for moving to another question.
type AdvanceRequest struct {
	Target int `json:"target" binding:"min=0"`
}

// FlagRequest is the payload for flagging or unflagging the current question.
type FlagRequest struct {
	Flagged bool `json:"flagged"`
}

// SignalRequest is the payload for reporting an integrity signal.
type SignalRequest struct {
	Type string `json:"type" binding:"required,oneof=window_blur tab_hidden devtools_open forbidden_keys fullscreen_exit"`
}

// SessionView is the candidate-facing snapshot of a live session. Correct
// answers never appear here.
type SessionView struct {
	SessionID            string           `json:"session_id"`
	ExamID               string           `json:"exam_id"`
	Mode                 string           `json:"mode"`
	Status               string           `json:"status"`
	Position             int              `json:"position"`
	TotalQuestions       int              `json:"total_questions"`
	RemainingTimeSeconds int              `json:"remaining_time_seconds"`
	ElapsedTimeSeconds   int              `json:"elapsed_time_seconds"`
	Question             *QuestionView    `json:"question,omitempty"`
	Stats                engine.LiveStats `json:"stats"`
}

// SessionResultView is the candidate-facing final result.
type SessionResultView struct {
	Result     *engine.FinalizedResult `json:"result"`
	FinishedAt time.Time               `json:"finished_at"`
}

// SessionRecord is the durable row written when a session finalizes.
type SessionRecord struct {
	SessionID   string     `json:"session_id"`
	ExamID      string     `json:"exam_id"`
	CandidateID string     `json:"candidate_id"`
	Mode        string     `json:"mode"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	Passed      *bool      `json:"passed,omitempty"`
}
