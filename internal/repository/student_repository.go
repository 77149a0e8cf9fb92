package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

const studentColumns = "id, nis, full_name, education_level, study_system, diploma_track, active, created_at, updated_at"

// StudentRepository reads students together with their academic context.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE id = $1"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListByIDs returns the students with the given IDs keyed by ID.
func (r *StudentRepository) ListByIDs(ctx context.Context, ids []string) (map[string]models.Student, error) {
	result := make(map[string]models.Student, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := "SELECT " + studentColumns + " FROM students WHERE id = ANY($1)"
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list students by ids: %w", err)
	}
	for _, s := range students {
		result[s.ID] = s
	}
	return result, nil
}

// ListByScope returns active students at an education level and study system.
func (r *StudentRepository) ListByScope(ctx context.Context, level models.EducationLevel, system models.StudySystem) ([]models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE education_level = $1 AND study_system = $2 AND active = TRUE ORDER BY full_name"
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, level, system); err != nil {
		return nil, fmt.Errorf("list students by scope: %w", err)
	}
	return students, nil
}
