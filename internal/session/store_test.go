package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreLoadAbsent(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Load(context.Background(), "quiz:1:student:2:session"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Load absent: err = %v, want ErrNoSession", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := "quiz:1:student:2:session"

	st := NewState(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	st.Answers[7] = 3
	st.CurrentQuestion = 1

	if err := store.Save(ctx, key, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.StartTime != st.StartTime {
		t.Errorf("StartTime = %d, want %d", got.StartTime, st.StartTime)
	}
	if got.Answers[7] != 3 || len(got.Answers) != 1 {
		t.Errorf("Answers = %v, want map[7:3]", got.Answers)
	}
	if got.CurrentQuestion != 1 {
		t.Errorf("CurrentQuestion = %d, want 1", got.CurrentQuestion)
	}
}

func TestMemoryStoreSaveNeverOverwritesStartTime(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := "quiz:1:student:2:session"

	orig := NewState(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	if err := store.Save(ctx, key, orig); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A later save with a different start time must not win.
	later := NewState(time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC))
	later.Answers[1] = 2
	if err := store.Save(ctx, key, later); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.StartTime != orig.StartTime {
		t.Errorf("StartTime overwritten: got %d, want %d", got.StartTime, orig.StartTime)
	}
	if got.Answers[1] != 2 {
		t.Errorf("answer mutation lost: %v", got.Answers)
	}
}

func TestMemoryStoreInvalidStartTimeTreatedAsNoSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := "quiz:1:student:2:session"

	store.entries[key] = &State{StartTime: 0, Answers: map[int64]int{1: 1}}

	if _, err := store.Load(ctx, key); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Load invalid entry: err = %v, want ErrNoSession", err)
	}
	// The corrupt entry was discarded, so a fresh one can be created.
	if _, ok := store.entries[key]; ok {
		t.Error("corrupt entry not discarded")
	}
}

func TestHydrateCreatesOnAutoStart(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := "quiz:1:student:2:session"
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	// Without auto-start, nothing to resume.
	if _, _, err := Hydrate(ctx, store, key, false, now); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Hydrate without autostart: err = %v, want ErrNoSession", err)
	}

	st, created, err := Hydrate(ctx, store, key, true, now)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if !created {
		t.Error("created = false for a fresh session")
	}
	if st.StartTime != now.UnixMilli() {
		t.Errorf("StartTime = %d, want %d", st.StartTime, now.UnixMilli())
	}

	// Re-entry resumes the same session rather than restarting the clock.
	st2, created2, err := Hydrate(ctx, store, key, true, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Hydrate resume: %v", err)
	}
	if created2 {
		t.Error("created = true on resume")
	}
	if st2.StartTime != st.StartTime {
		t.Errorf("resume changed StartTime: %d vs %d", st2.StartTime, st.StartTime)
	}
}

func TestClearRemovesEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := "quiz:1:student:2:session"

	if _, _, err := Hydrate(ctx, store, key, true, time.Now()); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if err := store.Clear(ctx, key); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Load(ctx, key); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Load after Clear: err = %v, want ErrNoSession", err)
	}
	// Clearing an absent key is fine.
	if err := store.Clear(ctx, key); err != nil {
		t.Fatalf("Clear absent: %v", err)
	}
}
