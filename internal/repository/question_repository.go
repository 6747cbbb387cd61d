package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klasio/lms-backend/internal/model"
)

// QuestionRepository handles question data access. Options are stored as a
// JSONB array of {order, text} objects.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByQuiz retrieves a quiz's questions in their authored order.
func (r *QuestionRepository) ListByQuiz(ctx context.Context, quizID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, prompt, options, correct_order, position
		 FROM questions
		 WHERE quiz_id = $1
		 ORDER BY position ASC, id ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var rawOptions []byte
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Prompt, &rawOptions, &q.CorrectOrder, &q.Position); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawOptions, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ReplaceForQuiz atomically replaces all questions of a quiz.
func (r *QuestionRepository) ReplaceForQuiz(ctx context.Context, quizID int64, questions []model.QuestionRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id = $1`, quizID); err != nil {
		return fmt.Errorf("delete old questions: %w", err)
	}

	for i, q := range questions {
		rawOptions, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO questions (quiz_id, prompt, options, correct_order, position)
			 VALUES ($1, $2, $3, $4, $5)`,
			quizID, q.Prompt, rawOptions, q.CorrectOrder, i,
		); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}
