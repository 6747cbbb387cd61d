package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/klasio/lms-backend/internal/model"
	"github.com/klasio/lms-backend/internal/shuffle"
)

// Phase is the controller's lifecycle state.
type Phase string

const (
	PhaseNotStarted Phase = "NOT_STARTED"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseSubmitting Phase = "SUBMITTING"
	PhaseCompleted  Phase = "COMPLETED"
)

// ErrNotInProgress is returned for answer or navigation mutations outside the
// InProgress phase. Once submission begins, edits are rejected.
var ErrNotInProgress = errors.New("session: not in progress")

// ErrUnknownQuestion is returned when an answer references a question that is
// not part of the quiz.
var ErrUnknownQuestion = errors.New("session: unknown question")

// ErrUnknownOption is returned when an answer references an option order that
// does not exist on the question.
var ErrUnknownOption = errors.New("session: unknown option")

// Outcome is the terminal result of an expiry-triggered submission, delivered
// to the OnExpiry callback.
type Outcome struct {
	Result       *model.AttemptResult
	RedirectPath string
	Err          error
}

// Config wires a Controller's collaborators.
type Config struct {
	Quiz      *model.QuizPayload
	StudentID int64
	Key       string
	Store     Store
	Submitter Submitter
	// Resolver maps a completed attempt to a result path. Defaults to
	// StaticResolver when nil.
	Resolver URLResolver
	// OnExpiry receives the outcome of an expiry-triggered auto-submit.
	// Suppressed re-entrant triggers are not reported.
	OnExpiry func(Outcome)
	// Now and ClockOpts are test seams.
	Now       func() time.Time
	ClockOpts []ClockOption
	Log       zerolog.Logger
}

// Controller orchestrates one student taking one quiz: deterministic ordering,
// resumable persisted state, the countdown, and the exactly-once submission.
//
// Two event producers feed it concurrently (the caller's read loop and the
// clock goroutine), so all state transitions happen under one mutex.
type Controller struct {
	quiz      *model.QuizPayload
	studentID int64
	key       string
	store     Store
	resolver  URLResolver
	onExpiry  func(Outcome)
	now       func() time.Time
	clockOpts []ClockOption
	log       zerolog.Logger

	mu        sync.Mutex
	phase     Phase
	state     *State
	clock     *Clock
	coord     *Coordinator
	questions []model.StudentQuestion
	result    *model.AttemptResult
}

// NewController creates a Controller in the NotStarted phase.
func NewController(cfg Config) *Controller {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = StaticResolver{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		quiz:      cfg.Quiz,
		studentID: cfg.StudentID,
		key:       cfg.Key,
		store:     cfg.Store,
		resolver:  resolver,
		onExpiry:  cfg.OnExpiry,
		now:       now,
		clockOpts: cfg.ClockOpts,
		log:       cfg.Log.With().Int64("quiz_id", cfg.Quiz.QuizID).Int64("student_id", cfg.StudentID).Logger(),
		coord:     NewCoordinator(cfg.Store, cfg.Key, cfg.Submitter, cfg.Quiz),
		phase:     PhaseNotStarted,
	}
}

// Start moves NotStarted → InProgress: it resumes the persisted session when
// one exists, otherwise creates a fresh one starting now, then derives the
// per-student ordering and starts the countdown. Callers invoke it on an
// explicit start action or when the auto-start entry instruction is present.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseNotStarted {
		return fmt.Errorf("session: start in phase %s", c.phase)
	}

	state, created, err := Hydrate(ctx, c.store, c.key, true, c.now())
	if err != nil {
		return fmt.Errorf("hydrate session: %w", err)
	}
	c.state = state

	// Same quiz + same student ⇒ same seed ⇒ the exact ordering the student
	// saw before the reload, which is what keeps the persisted answers and
	// position valid.
	c.questions = OrderedQuestions(c.quiz, c.studentID)
	c.clampIndexLocked()

	c.clock = NewClock(state.StartedAt(), time.Duration(c.quiz.DurationMinutes)*time.Minute,
		append([]ClockOption{WithNow(c.now)}, c.clockOpts...)...)
	c.phase = PhaseInProgress
	c.clock.Start(c.expire)

	c.log.Info().
		Bool("resumed", !created).
		Int("remaining_s", c.clock.Remaining()).
		Msg("Session started")
	return nil
}

// OrderedQuestions derives the per-student question and option permutation
// for a quiz. The same (quiz, student) pair always yields the same ordering,
// so the read-only paper endpoint and the live controller agree.
func OrderedQuestions(quiz *model.QuizPayload, studentID int64) []model.StudentQuestion {
	return orderQuestions(quiz.Questions, shuffle.SessionSeed(quiz.QuizID, studentID))
}

// orderQuestions applies the per-student permutation to questions and to each
// question's options. Option seeds are tied to the question's original
// position so one question's option order is independent of where the
// question landed after shuffling.
func orderQuestions(questions []model.StudentQuestion, seed int64) []model.StudentQuestion {
	indices := make([]int, len(questions))
	for i := range indices {
		indices[i] = i
	}
	indices = shuffle.Shuffle(indices, seed)

	out := make([]model.StudentQuestion, 0, len(questions))
	for _, idx := range indices {
		q := questions[idx]
		q.Options = shuffle.Shuffle(q.Options, shuffle.OptionSeed(seed, idx))
		out = append(out, q)
	}
	return out
}

// Questions returns the student's shuffled question order.
func (c *Controller) Questions() []model.StudentQuestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.questions
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Remaining returns the seconds left on the countdown.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clock == nil {
		return 0
	}
	return c.clock.Remaining()
}

// Snapshot returns the answers recorded so far and the current position.
func (c *Controller) Snapshot() (answers map[int64]int, currentIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return map[int64]int{}, 0
	}
	answers = make(map[int64]int, len(c.state.Answers))
	for k, v := range c.state.Answers {
		answers[k] = v
	}
	return answers, c.state.CurrentQuestion
}

// Answer records the chosen option order for a question and persists the
// state synchronously, so a submit trigger on the next event always reads the
// latest edit. Rejected outside InProgress.
func (c *Controller) Answer(ctx context.Context, questionID int64, optionOrder int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseInProgress {
		return ErrNotInProgress
	}
	if err := c.validateAnswerLocked(questionID, optionOrder); err != nil {
		return err
	}

	c.state.Answers[questionID] = optionOrder
	return c.store.Save(ctx, c.key, c.state)
}

func (c *Controller) validateAnswerLocked(questionID int64, optionOrder int) error {
	for _, q := range c.quiz.Questions {
		if q.ID != questionID {
			continue
		}
		for _, opt := range q.Options {
			if opt.Order == optionOrder {
				return nil
			}
		}
		return ErrUnknownOption
	}
	return ErrUnknownQuestion
}

// Navigate jumps to the question at index (position within the student's
// shuffled order) and persists the new position. Rejected outside InProgress.
func (c *Controller) Navigate(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseInProgress {
		return ErrNotInProgress
	}
	if index < 0 || index >= len(c.questions) {
		return fmt.Errorf("session: index %d out of range", index)
	}

	c.state.CurrentQuestion = index
	return c.store.Save(ctx, c.key, c.state)
}

// Next advances to the following question, saturating at the last one.
// Rejected outside InProgress.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseInProgress {
		c.mu.Unlock()
		return ErrNotInProgress
	}
	idx := c.state.CurrentQuestion + 1
	if idx >= len(c.questions) {
		idx = len(c.questions) - 1
	}
	c.mu.Unlock()
	return c.Navigate(ctx, idx)
}

// Prev moves back one question, saturating at the first one. Rejected
// outside InProgress.
func (c *Controller) Prev(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseInProgress {
		c.mu.Unlock()
		return ErrNotInProgress
	}
	idx := c.state.CurrentQuestion - 1
	if idx < 0 {
		idx = 0
	}
	c.mu.Unlock()
	return c.Navigate(ctx, idx)
}

// Submit runs the submission for a manual or expiry trigger.
//
// Re-entrant calls while Submitting or after Completed return
// ErrSubmitInFlight and are expected to be suppressed. On failure the phase
// returns to InProgress and the clock keeps counting, so the student can
// retry while time remains.
func (c *Controller) Submit(ctx context.Context, reason SubmitReason) (*model.AttemptResult, error) {
	c.mu.Lock()
	switch c.phase {
	case PhaseSubmitting, PhaseCompleted:
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	case PhaseNotStarted:
		c.mu.Unlock()
		return nil, ErrNotInProgress
	}
	c.phase = PhaseSubmitting
	state := cloneState(c.state)
	remaining := c.clock.Remaining()
	c.mu.Unlock()

	result, err := c.coord.Submit(ctx, reason, state, remaining)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if !errors.Is(err, ErrSubmitInFlight) {
			c.phase = PhaseInProgress
			c.log.Warn().Err(err).Str("reason", string(reason)).Msg("Submission failed, session kept")
		}
		return nil, err
	}

	c.phase = PhaseCompleted
	c.result = result
	c.clock.Stop()
	c.log.Info().Str("reason", string(reason)).Msg("Session submitted")
	return result, nil
}

// expire is the clock's single expiry event: it auto-submits and reports the
// outcome. Losing the race against a manual submit is silent.
func (c *Controller) expire() {
	result, err := c.Submit(context.Background(), ReasonExpiry)
	if errors.Is(err, ErrSubmitInFlight) {
		return
	}
	if c.onExpiry == nil {
		return
	}
	out := Outcome{Result: result, Err: err}
	if err == nil {
		out.RedirectPath = ResolveResult(c.resolver, result.ID)
	}
	c.onExpiry(out)
}

// ResultPath returns where to send the student after completion.
func (c *Controller) ResultPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return c.resolver.FallbackPath()
	}
	return ResolveResult(c.resolver, c.result.ID)
}

// Abandon discards the in-memory controller without touching persisted state:
// navigating away keeps the session resumable. Stops the clock.
func (c *Controller) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clock != nil {
		c.clock.Stop()
	}
}

// Cancel is the explicit cancel-attempt action: it stops the clock and clears
// the persisted state, so the next entry starts a brand-new session.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseSubmitting {
		return ErrSubmitInFlight
	}
	if c.clock != nil {
		c.clock.Stop()
	}
	c.phase = PhaseNotStarted
	return c.store.Clear(ctx, c.key)
}

// clampIndexLocked keeps a persisted position valid if the quiz shrank
// between sessions.
func (c *Controller) clampIndexLocked() {
	if c.state.CurrentQuestion < 0 || c.state.CurrentQuestion >= len(c.questions) {
		c.state.CurrentQuestion = 0
	}
}
