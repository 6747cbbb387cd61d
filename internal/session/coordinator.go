package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/klasio/lms-backend/internal/model"
)

// SubmitReason records which trigger produced a submission.
type SubmitReason string

const (
	ReasonManual SubmitReason = "manual"
	ReasonExpiry SubmitReason = "expiry"
)

// ErrSubmitInFlight is returned when a submission is already in flight or has
// already completed for this session. Both the manual finish action and the
// clock's expiry can race into Submit; losing the race is expected, not a
// fault, and callers suppress this error silently.
var ErrSubmitInFlight = errors.New("session: submission already in flight or completed")

// SubmissionError is a failed submission surfaced to the student. The session
// state is left intact so the answers are not lost and the attempt can be
// retried.
type SubmissionError struct {
	Reason  SubmitReason
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed (%s): %s", e.Reason, e.Message)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Submitter performs the network submission call for one quiz attempt.
type Submitter interface {
	Submit(ctx context.Context, quizID int64, payload *model.SubmitAttemptRequest) (*model.AttemptResult, error)
}

// Coordinator builds the final answer payload, performs the submission call
// and guarantees at most one successful submission per session regardless of
// how many triggers fire concurrently.
type Coordinator struct {
	store     Store
	key       string
	submitter Submitter
	quiz      *model.QuizPayload

	inFlight atomic.Bool
	done     atomic.Bool
}

// NewCoordinator creates a Coordinator for one live session.
func NewCoordinator(store Store, key string, submitter Submitter, quiz *model.QuizPayload) *Coordinator {
	return &Coordinator{
		store:     store,
		key:       key,
		submitter: submitter,
		quiz:      quiz,
	}
}

// Done reports whether a submission has completed successfully.
func (co *Coordinator) Done() bool { return co.done.Load() }

// Submit performs the submission. remainingSeconds is the clock's value at
// the moment of the trigger; elapsed time is derived from it, clamped to
// [0, duration]. Returns ErrSubmitInFlight when another trigger got there
// first, a *SubmissionError on network/validation failure (state kept), and
// the AttemptResult on success (state cleared exactly once).
func (co *Coordinator) Submit(ctx context.Context, reason SubmitReason, state *State, remainingSeconds int) (*model.AttemptResult, error) {
	if !co.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmitInFlight
	}

	payload := co.buildPayload(state, remainingSeconds)

	result, err := co.submitter.Submit(ctx, co.quiz.QuizID, payload)
	if err != nil {
		// The attempt was not consumed: release the guard so the student
		// can retry, and leave the persisted state untouched.
		co.inFlight.Store(false)
		var serr *SubmissionError
		if errors.As(err, &serr) {
			serr.Reason = reason
			return nil, serr
		}
		return nil, &SubmissionError{Reason: reason, Message: "submission failed, please try again", Err: err}
	}

	co.done.Store(true)
	// A failed Clear is not worth failing the submission over: the attempt
	// is recorded, and a dangling entry only costs one discarded resume.
	_ = co.store.Clear(ctx, co.key)
	return result, nil
}

// buildPayload emits one answer line per question in the quiz's original,
// unshuffled order. Unanswered questions are sent explicitly as null so the
// receiving side sees the full roster.
func (co *Coordinator) buildPayload(state *State, remainingSeconds int) *model.SubmitAttemptRequest {
	answers := make([]model.AttemptAnswer, 0, len(co.quiz.Questions))
	for _, q := range co.quiz.Questions {
		line := model.AttemptAnswer{QuestionID: q.ID}
		if order, ok := state.Answers[q.ID]; ok {
			o := order
			line.SelectedOption = &o
		}
		answers = append(answers, line)
	}

	durationSeconds := co.quiz.DurationMinutes * 60
	elapsed := durationSeconds - remainingSeconds
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > durationSeconds {
		elapsed = durationSeconds
	}

	return &model.SubmitAttemptRequest{
		Answers:         answers,
		DurationSeconds: elapsed,
	}
}
