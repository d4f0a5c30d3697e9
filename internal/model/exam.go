package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam definition.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents a certification exam definition.
type Exam struct {
	ID               uuid.UUID          `json:"id"`
	Title            string             `json:"title"`
	Description      string             `json:"description,omitempty"`
	DurationMinutes  int                `json:"duration_minutes"`
	QuestionCount    int                `json:"question_count"`
	PassingScore     float64            `json:"passing_score"`
	ShuffleQuestions bool               `json:"shuffle_questions"`
	ObjectiveWeights map[string]float64 `json:"objective_weights,omitempty"`
	Status           ExamStatus         `json:"status"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Objective is one scoring domain of an exam blueprint.
type Objective struct {
	ID     string  `json:"id"`
	ExamID string  `json:"exam_id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// ExamSummary is the catalog listing view.
type ExamSummary struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	QuestionCount   int        `json:"question_count"`
	PassingScore    float64    `json:"passing_score"`
	Status          ExamStatus `json:"status"`
}

// ExamPayload is the Redis-prewarmed exam detail sent to candidates before a
// session starts. It never includes correct answers.
type ExamPayload struct {
	ExamID          uuid.UUID   `json:"exam_id"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	DurationMinutes int         `json:"duration_minutes"`
	QuestionCount   int         `json:"question_count"`
	PassingScore    float64     `json:"passing_score"`
	Objectives      []Objective `json:"objectives"`
}
