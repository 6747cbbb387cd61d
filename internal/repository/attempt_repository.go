package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klasio/lms-backend/internal/model"
)

// AttemptRepository handles graded attempt data access. Per-question answer
// rows are persisted asynchronously by the attempt worker; this repository
// covers the attempt header written on the submission path.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a graded attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts
		   (id, quiz_id, student_id, score, correct_count, total_questions, duration_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING submitted_at`,
		a.ID, a.QuizID, a.StudentID, a.Score, a.CorrectCount, a.TotalQuestions, a.DurationSeconds,
	).Scan(&a.SubmittedAt)
}

// GetByID retrieves an attempt by id.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, quiz_id, student_id, score, correct_count, total_questions,
		        duration_seconds, submitted_at
		 FROM attempts
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.QuizID, &a.StudentID, &a.Score, &a.CorrectCount,
		&a.TotalQuestions, &a.DurationSeconds, &a.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByStudent retrieves a student's attempts, newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int64) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, student_id, score, correct_count, total_questions,
		        duration_seconds, submitted_at
		 FROM attempts
		 WHERE student_id = $1
		 ORDER BY submitted_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.QuizID, &a.StudentID, &a.Score, &a.CorrectCount,
			&a.TotalQuestions, &a.DurationSeconds, &a.SubmittedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
