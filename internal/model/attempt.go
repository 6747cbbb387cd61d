package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptAnswer is one answer line of a submission. SelectedOption carries the
// chosen option's durable order value, or null when the question was left
// unanswered.
type AttemptAnswer struct {
	QuestionID     int64 `json:"question_id"`
	SelectedOption *int  `json:"selected_option"`
}

// SubmitAttemptRequest is the wire payload of the submission call. Answers are
// listed in the quiz's original question order regardless of how they were
// shuffled for the student.
type SubmitAttemptRequest struct {
	Answers         []AttemptAnswer `json:"answers" binding:"required,dive"`
	DurationSeconds int             `json:"duration_seconds" binding:"min=0"`
}

// Attempt represents one graded, submitted quiz attempt.
type Attempt struct {
	ID              uuid.UUID `json:"id"`
	QuizID          int64     `json:"quiz_id"`
	StudentID       int64     `json:"student_id"`
	Score           float64   `json:"score"`
	CorrectCount    int       `json:"correct_count"`
	TotalQuestions  int       `json:"total_questions"`
	DurationSeconds int       `json:"duration_seconds"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// AttemptPersistJob is the queue payload for the attempt worker. The attempt
// header is written synchronously on submit; per-question answer rows are
// persisted asynchronously from this job.
type AttemptPersistJob struct {
	AttemptID uuid.UUID       `json:"attempt_id"`
	QuizID    int64           `json:"quiz_id"`
	StudentID int64           `json:"student_id"`
	Answers   []AttemptAnswer `json:"answers"`
}

// AttemptResult is the grading outcome returned by the attempts endpoint and
// surfaced to the student after submission.
type AttemptResult struct {
	ID             uuid.UUID `json:"id"`
	Score          float64   `json:"score"`
	CorrectCount   int       `json:"correct_count"`
	TotalQuestions int       `json:"total_questions"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
