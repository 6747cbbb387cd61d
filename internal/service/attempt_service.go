package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/klasio/lms-backend/internal/config"
	"github.com/klasio/lms-backend/internal/model"
	"github.com/klasio/lms-backend/internal/repository"
	"github.com/klasio/lms-backend/internal/session"
)

// AttemptService grades submitted quiz attempts against the Redis answer key,
// writes the attempt header synchronously, and hands the per-question answer
// rows to the attempt worker queue.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	quizService *QuizService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	quizService *QuizService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		quizService: quizService,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// SubmitAttempt grades and records one attempt. Grading is a pure in-memory
// pass over the cached answer key, so this path never blocks on PostgreSQL
// for more than the single header insert.
func (s *AttemptService) SubmitAttempt(ctx context.Context, quizID, studentID int64, req *model.SubmitAttemptRequest) (*model.AttemptResult, error) {
	answerKey, err := s.quizService.GetAnswerKey(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}

	correct := gradeAnswers(answerKey, req.Answers)
	total := len(answerKey)

	attempt := &model.Attempt{
		ID:              uuid.New(),
		QuizID:          quizID,
		StudentID:       studentID,
		Score:           scoreOf(correct, total),
		CorrectCount:    correct,
		TotalQuestions:  total,
		DurationSeconds: req.DurationSeconds,
	}

	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	// Queue the answer rows for the worker. The header is already durable;
	// losing a job only loses the per-question breakdown, so a queue failure
	// is logged rather than failing the submission.
	job := model.AttemptPersistJob{
		AttemptID: attempt.ID,
		QuizID:    quizID,
		StudentID: studentID,
		Answers:   req.Answers,
	}
	raw, _ := json.Marshal(job)
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to queue attempt answers")
	}

	s.log.Info().
		Int64("quiz_id", quizID).
		Int64("student_id", studentID).
		Float64("score", attempt.Score).
		Msg("Attempt graded")

	return &model.AttemptResult{
		ID:             attempt.ID,
		Score:          attempt.Score,
		CorrectCount:   attempt.CorrectCount,
		TotalQuestions: attempt.TotalQuestions,
		SubmittedAt:    attempt.SubmittedAt,
	}, nil
}

// GetResult retrieves a graded attempt, scoped to the owning student.
func (s *AttemptService) GetResult(ctx context.Context, id uuid.UUID, studentID int64) (*model.AttemptResult, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, fmt.Errorf("attempt %s does not belong to student %d", id, studentID)
	}
	return &model.AttemptResult{
		ID:             attempt.ID,
		Score:          attempt.Score,
		CorrectCount:   attempt.CorrectCount,
		TotalQuestions: attempt.TotalQuestions,
		SubmittedAt:    attempt.SubmittedAt,
	}, nil
}

// ListByStudent retrieves a student's attempt history.
func (s *AttemptService) ListByStudent(ctx context.Context, studentID int64) ([]model.Attempt, error) {
	attempts, err := s.attemptRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	return attempts, nil
}

// ForStudent binds the service to one student, yielding a session.Submitter
// for in-process grading. When GRADING_SERVICE_URL is unset, live sessions
// submit through this instead of an HTTP round trip.
func (s *AttemptService) ForStudent(studentID int64) session.Submitter {
	return &studentSubmitter{svc: s, studentID: studentID}
}

type studentSubmitter struct {
	svc       *AttemptService
	studentID int64
}

func (b *studentSubmitter) Submit(ctx context.Context, quizID int64, payload *model.SubmitAttemptRequest) (*model.AttemptResult, error) {
	return b.svc.SubmitAttempt(ctx, quizID, b.studentID, payload)
}

// gradeAnswers counts answers matching the key. Questions missing from the
// key (deleted after publish) and null answers never count.
func gradeAnswers(answerKey map[int64]int, answers []model.AttemptAnswer) int {
	correct := 0
	for _, a := range answers {
		if a.SelectedOption == nil {
			continue
		}
		want, ok := answerKey[a.QuestionID]
		if !ok {
			continue
		}
		if *a.SelectedOption == want {
			correct++
		}
	}
	return correct
}

// scoreOf converts a correct count into a 0-100 percentage.
func scoreOf(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}
