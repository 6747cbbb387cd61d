package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestController(t *testing.T, store Store, sub Submitter, now *fakeNow, onExpiry func(Outcome)) *Controller {
	t.Helper()
	return NewController(Config{
		Quiz:      testQuiz(),
		StudentID: 2,
		Key:       "quiz:1:student:2:session",
		Store:     store,
		Submitter: sub,
		OnExpiry:  onExpiry,
		Now:       now.Now,
		ClockOpts: []ClockOption{WithTick(2 * time.Millisecond)},
		Log:       zerolog.Nop(),
	})
}

func questionIDs(c *Controller) []int64 {
	qs := c.Questions()
	ids := make([]int64, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}

func optionOrders(c *Controller) [][]int {
	qs := c.Questions()
	out := make([][]int, len(qs))
	for i, q := range qs {
		for _, o := range q.Options {
			out[i] = append(out[i], o.Order)
		}
	}
	return out
}

func TestControllerResumeReproducesOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := newFakeNow(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))

	first := newTestController(t, store, newFakeSubmitter(), now, nil)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first.Phase() != PhaseInProgress {
		t.Fatalf("phase = %s, want %s", first.Phase(), PhaseInProgress)
	}
	firstQ, firstO := questionIDs(first), optionOrders(first)
	first.Abandon()

	// Simulated reload: a new controller instance, same quiz and student,
	// persisted state present.
	now.Advance(10 * time.Second)
	second := newTestController(t, store, newFakeSubmitter(), now, nil)
	if err := second.Start(ctx); err != nil {
		t.Fatalf("resume Start: %v", err)
	}
	defer second.Abandon()

	if !reflect.DeepEqual(firstQ, questionIDs(second)) {
		t.Errorf("question order changed across resume: %v vs %v", firstQ, questionIDs(second))
	}
	if !reflect.DeepEqual(firstO, optionOrders(second)) {
		t.Errorf("option order changed across resume: %v vs %v", firstO, optionOrders(second))
	}

	// The clock resumed from the original start, not from the reload.
	if got := second.Remaining(); got != 50 {
		t.Errorf("Remaining after resume = %d, want 50", got)
	}
}

func TestControllerAnswerAndNavigate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := newFakeNow(time.Now())

	c := newTestController(t, store, newFakeSubmitter(), now, nil)

	// Mutations before start are rejected.
	if err := c.Answer(ctx, 1, 2); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("Answer before start: err = %v, want ErrNotInProgress", err)
	}
	if err := c.Navigate(ctx, 1); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("Navigate before start: err = %v, want ErrNotInProgress", err)
	}
	if err := c.Next(ctx); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("Next before start: err = %v, want ErrNotInProgress", err)
	}
	if err := c.Prev(ctx); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("Prev before start: err = %v, want ErrNotInProgress", err)
	}

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Abandon()

	if err := c.Answer(ctx, 1, 2); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if err := c.Answer(ctx, 99, 1); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("unknown question: err = %v", err)
	}
	if err := c.Answer(ctx, 1, 99); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("unknown option: err = %v", err)
	}

	if err := c.Navigate(ctx, 2); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := c.Navigate(ctx, 17); err == nil {
		t.Error("Navigate out of range accepted")
	}
	if err := c.Next(ctx); err != nil { // saturates at the last question
		t.Fatalf("Next at end: %v", err)
	}

	// Edits hit the store synchronously.
	st, err := store.Load(ctx, "quiz:1:student:2:session")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Answers[1] != 2 {
		t.Errorf("persisted answers = %v, want map[1:2]", st.Answers)
	}
	if st.CurrentQuestion != 2 {
		t.Errorf("persisted position = %d, want 2", st.CurrentQuestion)
	}
}

func TestControllerExpirySubmitsFullPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sub := newFakeSubmitter()
	now := newFakeNow(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))

	outcomes := make(chan Outcome, 1)
	c := newTestController(t, store, sub, now, func(o Outcome) { outcomes <- o })
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Answer(ctx, 1, 2); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// Let the full minute elapse; the next tick fires the expiry.
	now.Advance(61 * time.Second)

	var out Outcome
	select {
	case out = <-outcomes:
	case <-time.After(time.Second):
		t.Fatal("expiry outcome never delivered")
	}
	if out.Err != nil {
		t.Fatalf("expiry submit failed: %v", out.Err)
	}
	if c.Phase() != PhaseCompleted {
		t.Fatalf("phase = %s, want %s", c.Phase(), PhaseCompleted)
	}

	payload := sub.lastCall()
	want := []struct {
		qid    int64
		answer *int
	}{
		{1, intPtr(2)},
		{2, nil},
		{3, nil},
	}
	for i, w := range want {
		line := payload.Answers[i]
		if line.QuestionID != w.qid {
			t.Errorf("line %d question = %d, want %d", i, line.QuestionID, w.qid)
		}
		if (line.SelectedOption == nil) != (w.answer == nil) {
			t.Errorf("line %d selected = %v, want %v", i, line.SelectedOption, w.answer)
		} else if w.answer != nil && *line.SelectedOption != *w.answer {
			t.Errorf("line %d selected = %d, want %d", i, *line.SelectedOption, *w.answer)
		}
	}
	if payload.DurationSeconds != 60 {
		t.Errorf("DurationSeconds = %d, want 60", payload.DurationSeconds)
	}

	// Property: the persisted entry is gone and re-entering starts a
	// brand-new session with a new start timestamp.
	if _, err := store.Load(ctx, "quiz:1:student:2:session"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("entry still present after submission: %v", err)
	}
	fresh := newTestController(t, store, newFakeSubmitter(), now, nil)
	if err := fresh.Start(ctx); err != nil {
		t.Fatalf("fresh Start: %v", err)
	}
	defer fresh.Abandon()
	loaded, err := store.Load(ctx, "quiz:1:student:2:session")
	if err != nil {
		t.Fatalf("Load fresh: %v", err)
	}
	if loaded.StartTime != now.Now().UnixMilli() {
		t.Errorf("fresh StartTime = %d, want %d", loaded.StartTime, now.Now().UnixMilli())
	}
}

func TestControllerManualAndExpiryRace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sub := newFakeSubmitter()
	now := newFakeNow(time.Now())

	c := newTestController(t, store, sub, now, nil)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, reason := range []SubmitReason{ReasonManual, ReasonExpiry} {
		wg.Add(1)
		go func(i int, reason SubmitReason) {
			defer wg.Done()
			_, errs[i] = c.Submit(ctx, reason)
		}(i, reason)
	}
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
	if c.Phase() != PhaseCompleted {
		t.Errorf("phase = %s, want %s", c.Phase(), PhaseCompleted)
	}
}

func TestControllerFailedSubmitAllowsRetry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sub := newFakeSubmitter()
	sub.setFail(errors.New("network down"))
	now := newFakeNow(time.Now())

	c := newTestController(t, store, sub, now, nil)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Abandon()
	if err := c.Answer(ctx, 1, 2); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if _, err := c.Submit(ctx, ReasonManual); err == nil {
		t.Fatal("Submit succeeded despite network failure")
	}
	failedPayload := sub.lastCall()

	// Back to InProgress: the attempt was not consumed, edits still work
	// and the session survived. Re-answering with the same option keeps the
	// answer set identical for the payload comparison below.
	if c.Phase() != PhaseInProgress {
		t.Fatalf("phase = %s, want %s", c.Phase(), PhaseInProgress)
	}
	if err := c.Answer(ctx, 1, 2); err != nil {
		t.Fatalf("Answer after failed submit: %v", err)
	}
	if _, err := store.Load(ctx, "quiz:1:student:2:session"); err != nil {
		t.Fatalf("state lost after failed submit: %v", err)
	}

	sub.setFail(nil)
	result, err := c.Submit(ctx, ReasonManual)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if c.Phase() != PhaseCompleted {
		t.Fatalf("phase = %s, want %s", c.Phase(), PhaseCompleted)
	}
	if got := c.ResultPath(); got != ResolveResult(StaticResolver{}, result.ID) {
		t.Errorf("ResultPath = %q", got)
	}

	// Resubmitting the same answers produces the same answer lines.
	retryPayload := sub.lastCall()
	if sub.callCount() != 2 {
		t.Fatalf("network calls = %d, want 2", sub.callCount())
	}
	if !reflect.DeepEqual(failedPayload.Answers, retryPayload.Answers) {
		t.Errorf("retry payload diverged:\n first = %+v\n retry = %+v",
			failedPayload.Answers, retryPayload.Answers)
	}
}

func TestControllerCancelClearsState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := newFakeNow(time.Now())

	c := newTestController(t, store, newFakeSubmitter(), now, nil)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := store.Load(ctx, "quiz:1:student:2:session"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("state survived Cancel: %v", err)
	}
	if c.Phase() != PhaseNotStarted {
		t.Errorf("phase = %s, want %s", c.Phase(), PhaseNotStarted)
	}
}

func intPtr(v int) *int { return &v }
