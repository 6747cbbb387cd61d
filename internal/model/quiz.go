package model

import "time"

// QuizStatus enumerates the possible states of a quiz.
type QuizStatus string

const (
	QuizStatusDraft     QuizStatus = "DRAFT"
	QuizStatusPublished QuizStatus = "PUBLISHED"
	QuizStatusArchived  QuizStatus = "ARCHIVED"
)

// Quiz represents a quiz entity. Questions are loaded separately.
type Quiz struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	AuthorID        int64      `json:"author_id"`
	DurationMinutes int        `json:"duration_minutes"`
	QuestionCount   int        `json:"question_count"`
	Status          QuizStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Option is a single answer choice. Order is the durable identity of the
// choice: it survives shuffling and is what gets stored and submitted.
// Array position is presentation only.
type Option struct {
	Order int    `json:"order"`
	Text  string `json:"text"`
}

// Question represents a single quiz question.
type Question struct {
	ID           int64    `json:"id"`
	QuizID       int64    `json:"quiz_id"`
	Prompt       string   `json:"prompt"`
	Options      []Option `json:"options"`
	CorrectOrder int      `json:"correct_order"`
	Position     int      `json:"position"`
}

// StudentQuestion is a question without the correct answer, sent to students.
type StudentQuestion struct {
	ID      int64    `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// QuizPayload is the Redis-cached student-facing quiz (no correct answers,
// original question order; shuffling happens per student at session start).
type QuizPayload struct {
	QuizID          int64             `json:"quiz_id"`
	Title           string            `json:"title"`
	DurationMinutes int               `json:"duration_minutes"`
	Questions       []StudentQuestion `json:"questions"`
}

// CreateQuizRequest is the payload for creating a new quiz.
type CreateQuizRequest struct {
	Title           string `json:"title" binding:"required,min=3,max=255"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1,max=480"`
}

// UpdateQuizRequest is the payload for updating an existing quiz.
type UpdateQuizRequest struct {
	Title           string `json:"title" binding:"omitempty,min=3,max=255"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
}

// QuestionRequest is one question in a bulk replace payload.
type QuestionRequest struct {
	Prompt       string   `json:"prompt" binding:"required,min=1,max=2000"`
	Options      []Option `json:"options" binding:"required,min=2,max=10,dive"`
	CorrectOrder int      `json:"correct_order" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing a quiz's questions.
type ReplaceQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
