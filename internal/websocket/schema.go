package websocket

import "github.com/klasio/lms-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest is sent by the client to record a single answer. Option is
// the durable order value of the chosen option, not its shuffled position.
type AnswerRequest struct {
	Action     Action `json:"action"`
	QuestionID int64  `json:"question_id"`
	Option     int    `json:"option"`
}

// NavigateRequest moves the current question marker. Either Index targets a
// position in the shuffled order directly, or Direction steps "next"/"prev".
type NavigateRequest struct {
	Action    Action `json:"action"`
	Index     *int   `json:"index,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// SubmitRequest is sent by the client to finish and grade the quiz.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState    Event = "state"
	EventSaved    Event = "saved"
	EventPosition Event = "position"
	EventGraded   Event = "graded"
	EventError    Event = "error"
	EventPong     Event = "pong"
)

// StateResponse is the full session snapshot pushed right after connect and
// on resume. Questions carry the student's shuffled order.
type StateResponse struct {
	Event            Event                   `json:"event"`
	QuizID           int64                   `json:"quiz_id"`
	Title            string                  `json:"title"`
	Questions        []model.StudentQuestion `json:"questions"`
	Answers          map[int64]int           `json:"answers"`
	CurrentIndex     int                     `json:"current_index"`
	RemainingSeconds int                     `json:"remaining_seconds"`
}

// SavedResponse acknowledges that an answer was persisted.
type SavedResponse struct {
	Event      Event `json:"event"`
	QuestionID int64 `json:"question_id"`
}

// PositionResponse acknowledges a navigation with the effective index.
type PositionResponse struct {
	Event Event `json:"event"`
	Index int   `json:"index"`
}

// GradedResponse carries the grading outcome. Reason distinguishes a manual
// finish from the clock running out.
type GradedResponse struct {
	Event          Event   `json:"event"`
	Reason         string  `json:"reason"`
	Score          float64 `json:"score"`
	CorrectCount   int     `json:"correct_count"`
	TotalQuestions int     `json:"total_questions"`
	RedirectPath   string  `json:"redirect_path"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
