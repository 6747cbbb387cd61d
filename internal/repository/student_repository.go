package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klasio/lms-backend/internal/model"
)

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetByNIS retrieves a student by their NIS (login identifier).
func (r *StudentRepository) GetByNIS(ctx context.Context, nis string) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, nis, name, password_hash, class_name, created_at, updated_at
		 FROM students
		 WHERE nis = $1`, nis,
	).Scan(&s.ID, &s.NIS, &s.Name, &s.PasswordHash, &s.ClassName, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a student by id.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, nis, name, password_hash, class_name, created_at, updated_at
		 FROM students
		 WHERE id = $1`, id,
	).Scan(&s.ID, &s.NIS, &s.Name, &s.PasswordHash, &s.ClassName, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new student account.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO students (nis, name, password_hash, class_name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		s.NIS, s.Name, s.PasswordHash, s.ClassName,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}
