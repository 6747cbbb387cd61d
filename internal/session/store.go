// Package session implements the timed assessment session: deterministic
// per-student question ordering, a wall-clock countdown, resumable persisted
// state, and an exactly-once submission guarantee when a manual finish races
// against timer expiry.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoSession is returned by Store.Load when no resumable session exists for
// the key. A persisted entry with a missing or invalid start timestamp is
// reported the same way: a session that cannot prove how much time has elapsed
// is not resumed.
var ErrNoSession = errors.New("session: no resumable session")

// State is the persisted in-progress session. StartTime is epoch milliseconds,
// set once when the session is created and immutable afterwards; remaining
// time is always recomputed from it, never counted down.
type State struct {
	StartTime       int64         `json:"start_time"`
	Answers         map[int64]int `json:"answers"`
	CurrentQuestion int           `json:"current_question_index"`
}

// NewState creates a fresh session state starting now.
func NewState(now time.Time) *State {
	return &State{
		StartTime: now.UnixMilli(),
		Answers:   make(map[int64]int),
	}
}

// StartedAt returns the session start as a time.Time.
func (s *State) StartedAt() time.Time {
	return time.UnixMilli(s.StartTime)
}

// Valid reports whether the state carries a usable start timestamp.
func (s *State) Valid() bool {
	return s != nil && s.StartTime > 0
}

// Store persists in-progress session state keyed per (quiz, student).
// Implementations must preserve an existing entry's start time on Save.
type Store interface {
	// Load returns the persisted state or ErrNoSession.
	Load(ctx context.Context, key string) (*State, error)
	// Save persists the full state. An already-persisted start time wins
	// over the one in state.
	Save(ctx context.Context, key string, state *State) error
	// Clear removes the entry. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store used by tests and single-node dev runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*State)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.entries[key]
	if !ok {
		return nil, ErrNoSession
	}
	if !st.Valid() {
		delete(m.entries, key)
		return nil, ErrNoSession
	}
	return cloneState(st), nil
}

func (m *MemoryStore) Save(_ context.Context, key string, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneState(state)
	if prev, ok := m.entries[key]; ok && prev.Valid() {
		next.StartTime = prev.StartTime
	}
	m.entries[key] = next
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func cloneState(s *State) *State {
	c := &State{
		StartTime:       s.StartTime,
		Answers:         make(map[int64]int, len(s.Answers)),
		CurrentQuestion: s.CurrentQuestion,
	}
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	return c
}

// Hydrate loads the resumable session for key, or creates and persists a
// fresh one when none exists and autoStart is set. Returns (state, created).
// With no resumable session and autoStart unset it returns ErrNoSession: the
// caller is expected to wait for an explicit start action.
func Hydrate(ctx context.Context, store Store, key string, autoStart bool, now time.Time) (*State, bool, error) {
	st, err := store.Load(ctx, key)
	if err == nil {
		return st, false, nil
	}
	if !errors.Is(err, ErrNoSession) {
		return nil, false, err
	}
	if !autoStart {
		return nil, false, ErrNoSession
	}

	st = NewState(now)
	if err := store.Save(ctx, key, st); err != nil {
		return nil, false, err
	}
	return st, true, nil
}
