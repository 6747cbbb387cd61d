package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/klasio/lms-backend/internal/config"
	"github.com/klasio/lms-backend/internal/model"
	"github.com/klasio/lms-backend/internal/repository"
	"github.com/klasio/lms-backend/internal/response"
)

// Domain Errors
var (
	ErrNotQuizAuthor    = errors.New("not the author of this quiz")
	ErrNoQuestions      = errors.New("quiz has no questions, cannot publish")
	ErrQuizNotDraft     = errors.New("quiz status is not DRAFT")
	ErrQuizNotPublished = errors.New("quiz status is not PUBLISHED")
)

// QuizService handles quiz business logic and Redis caching. Published quizzes
// live in Redis as a student-facing payload plus an answer-key hash, so the
// session and grading paths never touch PostgreSQL.
type QuizService struct {
	quizRepo     *repository.QuizRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	quizRepo *repository.QuizRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		quizRepo:     quizRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "quiz_service").Logger(),
	}
}

// GetByID retrieves a quiz by id.
func (s *QuizService) GetByID(ctx context.Context, id int64) (*model.Quiz, error) {
	return s.quizRepo.GetByID(ctx, id)
}

// ListByAuthor retrieves a teacher's quizzes with pagination.
func (s *QuizService) ListByAuthor(ctx context.Context, authorID int64, page, perPage int) ([]model.Quiz, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	quizzes, total, err := s.quizRepo.ListByAuthorPaginated(ctx, authorID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if quizzes == nil {
		quizzes = []model.Quiz{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return quizzes, pagination, nil
}

// ListPublished retrieves all published quizzes for the student lobby.
func (s *QuizService) ListPublished(ctx context.Context) ([]model.Quiz, error) {
	quizzes, err := s.quizRepo.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	if quizzes == nil {
		quizzes = []model.Quiz{}
	}
	return quizzes, nil
}

// Create inserts a new quiz as DRAFT.
func (s *QuizService) Create(ctx context.Context, quiz *model.Quiz) error {
	quiz.Status = model.QuizStatusDraft
	return s.quizRepo.Create(ctx, quiz)
}

// Update modifies an existing draft quiz.
func (s *QuizService) Update(ctx context.Context, authorID int64, quiz *model.Quiz) error {
	existing, err := s.quizRepo.GetByID(ctx, quiz.ID)
	if err != nil {
		return err
	}
	if existing.AuthorID != authorID {
		return ErrNotQuizAuthor
	}
	if existing.Status != model.QuizStatusDraft {
		return ErrQuizNotDraft
	}
	return s.quizRepo.Update(ctx, quiz)
}

// Delete removes a draft quiz.
func (s *QuizService) Delete(ctx context.Context, id, authorID int64) error {
	existing, err := s.quizRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.AuthorID != authorID {
		return ErrNotQuizAuthor
	}
	if existing.Status != model.QuizStatusDraft {
		return ErrQuizNotDraft
	}
	return s.quizRepo.Delete(ctx, id)
}

// ReplaceQuestions swaps a draft quiz's question set in one transaction.
func (s *QuizService) ReplaceQuestions(ctx context.Context, quizID, authorID int64, questions []model.QuestionRequest) error {
	existing, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return err
	}
	if existing.AuthorID != authorID {
		return ErrNotQuizAuthor
	}
	if existing.Status != model.QuizStatusDraft {
		return ErrQuizNotDraft
	}
	return s.questionRepo.ReplaceForQuiz(ctx, quizID, questions)
}

// Publish changes quiz status to PUBLISHED and caches the payload + answer key
// in Redis. After this call the quiz is visible in the student lobby.
func (s *QuizService) Publish(ctx context.Context, quizID, authorID int64) error {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return fmt.Errorf("get quiz: %w", err)
	}

	if quiz.AuthorID != authorID {
		return ErrNotQuizAuthor
	}
	if quiz.Status != model.QuizStatusDraft {
		return ErrQuizNotDraft
	}

	if err := s.WarmQuizCache(ctx, quiz); err != nil {
		return err
	}

	if err := s.quizRepo.UpdateStatus(ctx, quizID, model.QuizStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Int64("quiz_id", quizID).Msg("Quiz published")
	return nil
}

// Archive moves a published quiz out of the student lobby and drops its cache.
func (s *QuizService) Archive(ctx context.Context, quizID, authorID int64) error {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return fmt.Errorf("get quiz: %w", err)
	}

	if quiz.AuthorID != authorID {
		return ErrNotQuizAuthor
	}
	if quiz.Status != model.QuizStatusPublished {
		return ErrQuizNotPublished
	}

	if err := s.quizRepo.UpdateStatus(ctx, quizID, model.QuizStatusArchived); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.QuizPayloadKey(quizID))
	pipe.Del(ctx, config.CacheKey.QuizAnswerKey(quizID))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Int64("quiz_id", quizID).Msg("Failed to drop quiz cache")
	}

	s.log.Info().Int64("quiz_id", quizID).Msg("Quiz archived")
	return nil
}

// WarmQuizCache loads a quiz's payload and answer key from PostgreSQL into
// Redis. This is the core cache-warming logic used by Publish and
// PrewarmAllCaches.
func (s *QuizService) WarmQuizCache(ctx context.Context, quiz *model.Quiz) error {
	questions, err := s.questionRepo.ListByQuiz(ctx, quiz.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	// Build the student-facing payload (without correct answers). Questions
	// stay in authored order; shuffling happens per student at session start.
	studentQuestions := make([]model.StudentQuestion, len(questions))
	for i, q := range questions {
		studentQuestions[i] = model.StudentQuestion{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: q.Options,
		}
	}

	payload := model.QuizPayload{
		QuizID:          quiz.ID,
		Title:           quiz.Title,
		DurationMinutes: quiz.DurationMinutes,
		Questions:       studentQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Build the answer key hash for RAM grading.
	answerKey := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		answerKey[strconv.FormatInt(q.ID, 10)] = q.CorrectOrder
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.QuizPayloadKey(quiz.ID), payloadJSON, 0)
	pipe.Del(ctx, config.CacheKey.QuizAnswerKey(quiz.ID))
	pipe.HSet(ctx, config.CacheKey.QuizAnswerKey(quiz.ID), answerKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Int64("quiz_id", quiz.ID).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published quizzes into Redis on application
// startup, so the first student to open a quiz never hits a cold cache.
func (s *QuizService) PrewarmAllCaches(ctx context.Context) error {
	quizzes, err := s.quizRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published quizzes: %w", err)
	}

	if len(quizzes) == 0 {
		s.log.Info().Msg("No published quizzes to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(quizzes)).Msg("Prewarming published quizzes...")

	warmed := 0
	for i := range quizzes {
		if err := s.WarmQuizCache(ctx, &quizzes[i]); err != nil {
			s.log.Warn().
				Err(err).
				Int64("quiz_id", quizzes[i].ID).
				Msg("Failed to warm quiz, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(quizzes)).
		Msg("Prewarming complete")
	return nil
}

// GetQuizPayload retrieves the cached student payload from Redis.
func (s *QuizService) GetQuizPayload(ctx context.Context, quizID int64) (*model.QuizPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.QuizPayloadKey(quizID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQuizNotPublished
		}
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.QuizPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// GetAnswerKey retrieves the answer key from Redis for instant grading. Keys
// are question ids, values are the correct option order values.
func (s *QuizService) GetAnswerKey(ctx context.Context, quizID int64) (map[int64]int, error) {
	result, err := s.rdb.HGetAll(ctx, config.CacheKey.QuizAnswerKey(quizID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(result) == 0 {
		return nil, errors.New("answer key not found in cache")
	}

	key := make(map[int64]int, len(result))
	for qid, order := range result {
		id, err := strconv.ParseInt(qid, 10, 64)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(order)
		if err != nil {
			continue
		}
		key[id] = n
	}
	return key, nil
}
