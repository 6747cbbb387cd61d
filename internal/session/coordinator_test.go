package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCoordinatorPayloadOriginalOrderWithNulls(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sub := newFakeSubmitter()
	quiz := testQuiz()
	key := "quiz:1:student:2:session"

	state := NewState(time.Now())
	state.Answers[1] = 2 // question 1 answered with option order 2

	co := NewCoordinator(store, key, sub, quiz)
	if _, err := co.Submit(ctx, ReasonExpiry, state, 0); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	payload := sub.lastCall()
	if len(payload.Answers) != 3 {
		t.Fatalf("answer lines = %d, want 3", len(payload.Answers))
	}
	if payload.Answers[0].QuestionID != 1 || payload.Answers[0].SelectedOption == nil || *payload.Answers[0].SelectedOption != 2 {
		t.Errorf("line 0 = %+v, want question 1 option 2", payload.Answers[0])
	}
	for i, qid := range []int64{2, 3} {
		line := payload.Answers[i+1]
		if line.QuestionID != qid || line.SelectedOption != nil {
			t.Errorf("line %d = %+v, want question %d unanswered (null)", i+1, line, qid)
		}
	}
	// Time expired: full duration consumed.
	if payload.DurationSeconds != 60 {
		t.Errorf("DurationSeconds = %d, want 60", payload.DurationSeconds)
	}
}

func TestCoordinatorElapsedClamping(t *testing.T) {
	ctx := context.Background()
	quiz := testQuiz() // 60 seconds

	cases := []struct {
		remaining int
		want      int
	}{
		{45, 15},
		{0, 60},
		{60, 0},
		{600, 0},  // remaining beyond duration: clamp below at 0
		{-10, 60}, // defensive: clamp above at the full duration
	}
	for _, tc := range cases {
		sub := newFakeSubmitter()
		co := NewCoordinator(NewMemoryStore(), "k", sub, quiz)
		if _, err := co.Submit(ctx, ReasonManual, NewState(time.Now()), tc.remaining); err != nil {
			t.Fatalf("Submit(remaining=%d): %v", tc.remaining, err)
		}
		if got := sub.lastCall().DurationSeconds; got != tc.want {
			t.Errorf("remaining %d: DurationSeconds = %d, want %d", tc.remaining, got, tc.want)
		}
	}
}

func TestCoordinatorConcurrentTriggersSingleCall(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sub := newFakeSubmitter()
	sub.blockCh = make(chan struct{})
	co := NewCoordinator(store, "k", sub, testQuiz())
	state := NewState(time.Now())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, reason := range []SubmitReason{ReasonManual, ReasonExpiry} {
		wg.Add(1)
		go func(i int, reason SubmitReason) {
			defer wg.Done()
			_, errs[i] = co.Submit(ctx, reason, state, 30)
		}(i, reason)
	}

	// Let both goroutines hit the guard, then release the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(sub.blockCh)
	wg.Wait()

	if got := sub.callCount(); got != 1 {
		t.Fatalf("network calls = %d, want exactly 1", got)
	}

	var won, suppressed int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSubmitInFlight):
			suppressed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || suppressed != 1 {
		t.Fatalf("won=%d suppressed=%d, want 1/1", won, suppressed)
	}
}

func TestCoordinatorClearsStateOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := "quiz:1:student:2:session"
	state, _, err := Hydrate(ctx, store, key, true, time.Now())
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	state.Answers[1] = 2
	if err := store.Save(ctx, key, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	sub := newFakeSubmitter()
	sub.setFail(errors.New("connection reset"))
	co := NewCoordinator(store, key, sub, testQuiz())

	_, err = co.Submit(ctx, ReasonManual, state, 30)
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *SubmissionError", err)
	}
	if serr.Reason != ReasonManual || serr.Message == "" {
		t.Errorf("SubmissionError = %+v, want manual reason and a user-facing message", serr)
	}

	// Failure leaves the session intact for retry.
	kept, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("state lost after failed submission: %v", err)
	}
	if kept.Answers[1] != 2 {
		t.Errorf("answers lost after failed submission: %v", kept.Answers)
	}
	if co.Done() {
		t.Error("Done() true after failure")
	}

	// Retry with the same answers produces the same payload and succeeds.
	first := sub.lastCall()
	sub.setFail(nil)
	if _, err := co.Submit(ctx, ReasonManual, kept, 30); err != nil {
		t.Fatalf("retry: %v", err)
	}
	second := sub.lastCall()
	if len(first.Answers) != len(second.Answers) {
		t.Fatalf("retry payload shape changed")
	}
	for i := range first.Answers {
		a, b := first.Answers[i], second.Answers[i]
		if a.QuestionID != b.QuestionID ||
			(a.SelectedOption == nil) != (b.SelectedOption == nil) ||
			(a.SelectedOption != nil && *a.SelectedOption != *b.SelectedOption) {
			t.Errorf("retry payload line %d differs: %+v vs %+v", i, a, b)
		}
	}

	// Success cleared the persisted entry.
	if _, err := store.Load(ctx, key); !errors.Is(err, ErrNoSession) {
		t.Fatalf("state not cleared after success: err = %v", err)
	}
	if !co.Done() {
		t.Error("Done() false after success")
	}
}
