package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/klasio/lms-backend/internal/model"
)

// testQuiz returns a 3-question, 1-minute quiz fixture.
func testQuiz() *model.QuizPayload {
	return &model.QuizPayload{
		QuizID:          1,
		Title:           "Algebra basics",
		DurationMinutes: 1,
		Questions: []model.StudentQuestion{
			{ID: 1, Prompt: "2 + 2 = ?", Options: []model.Option{
				{Order: 1, Text: "3"}, {Order: 2, Text: "4"}, {Order: 3, Text: "5"},
			}},
			{ID: 2, Prompt: "3 * 3 = ?", Options: []model.Option{
				{Order: 1, Text: "6"}, {Order: 2, Text: "9"}, {Order: 3, Text: "12"},
			}},
			{ID: 3, Prompt: "10 / 2 = ?", Options: []model.Option{
				{Order: 1, Text: "5"}, {Order: 2, Text: "2"}, {Order: 3, Text: "20"},
			}},
		},
	}
}

// fakeSubmitter records submissions and can be told to fail, or to block
// until released so two triggers can be raced against each other.
type fakeSubmitter struct {
	mu       sync.Mutex
	calls    []*model.SubmitAttemptRequest
	fail     error
	blockCh  chan struct{}
	resultID uuid.UUID
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{resultID: uuid.New()}
}

func (f *fakeSubmitter) Submit(_ context.Context, _ int64, payload *model.SubmitAttemptRequest) (*model.AttemptResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, payload)
	fail := f.fail
	block := f.blockCh
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if fail != nil {
		return nil, fail
	}
	return &model.AttemptResult{
		ID:             f.resultID,
		Score:          100.0 / 3,
		CorrectCount:   1,
		TotalQuestions: 3,
	}, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSubmitter) lastCall() *model.SubmitAttemptRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeSubmitter) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}
