package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

const distributionColumns = `id, education_level, study_system, version,
        first_months_count AS "first.months_count", first_monthly_grade AS "first.monthly_grade", first_monthly_average AS "first.monthly_average", first_period_exam AS "first.period_exam", first_period_total AS "first.period_total",
        second_months_count AS "second.months_count", second_monthly_grade AS "second.monthly_grade", second_monthly_average AS "second.monthly_average", second_period_exam AS "second.period_exam", second_period_total AS "second.period_total",
        third_months_count AS "third.months_count", third_monthly_grade AS "third.monthly_grade", third_monthly_average AS "third.monthly_average", third_period_exam AS "third.period_exam", third_period_total AS "third.period_total",
        two_periods_weight, third_period_weight, total_grade, created_at, updated_at`

// DistributionProfileRepository persists flexible distribution profiles.
type DistributionProfileRepository struct {
	db *sqlx.DB
}

// NewDistributionProfileRepository creates a new repository instance.
func NewDistributionProfileRepository(db *sqlx.DB) *DistributionProfileRepository {
	return &DistributionProfileRepository{db: db}
}

// List returns profiles matching the provided filters.
func (r *DistributionProfileRepository) List(ctx context.Context, filter models.DistributionFilter) ([]models.DistributionProfile, error) {
	query := "SELECT " + distributionColumns + " FROM distribution_profiles WHERE 1=1"
	args := []interface{}{}
	if filter.EducationLevel != "" {
		query += fmt.Sprintf(" AND education_level = $%d", len(args)+1)
		args = append(args, filter.EducationLevel)
	}
	if filter.StudySystem != "" {
		query += fmt.Sprintf(" AND study_system = $%d", len(args)+1)
		args = append(args, filter.StudySystem)
	}
	query += " ORDER BY education_level, study_system"

	var profiles []models.DistributionProfile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, fmt.Errorf("list distribution profiles: %w", err)
	}
	for i := range profiles {
		profiles[i].Source = models.ProfileSourceFlexible
	}
	return profiles, nil
}

// FindByID returns a profile by ID.
func (r *DistributionProfileRepository) FindByID(ctx context.Context, id string) (*models.DistributionProfile, error) {
	query := "SELECT " + distributionColumns + " FROM distribution_profiles WHERE id = $1"
	var profile models.DistributionProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	profile.Source = models.ProfileSourceFlexible
	return &profile, nil
}

// FindByKey returns the profile governing an education level and study system.
func (r *DistributionProfileRepository) FindByKey(ctx context.Context, level models.EducationLevel, system models.StudySystem) (*models.DistributionProfile, error) {
	query := "SELECT " + distributionColumns + " FROM distribution_profiles WHERE education_level = $1 AND study_system = $2"
	var profile models.DistributionProfile
	if err := r.db.GetContext(ctx, &profile, query, level, system); err != nil {
		return nil, err
	}
	profile.Source = models.ProfileSourceFlexible
	return &profile, nil
}

// Exists checks whether a profile exists for the pair, excluding an optional ID.
func (r *DistributionProfileRepository) Exists(ctx context.Context, level models.EducationLevel, system models.StudySystem, excludeID string) (bool, error) {
	query := "SELECT 1 FROM distribution_profiles WHERE education_level = $1 AND study_system = $2"
	args := []interface{}{level, system}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check distribution profile: %w", err)
	}
	return true, nil
}

// Create inserts a profile. A concurrent insert for the same pair surfaces as
// ErrDuplicateKey through the unique index on (education_level, study_system).
func (r *DistributionProfileRepository) Create(ctx context.Context, profile *models.DistributionProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if profile.Version == 0 {
		profile.Version = 1
	}
	profile.Source = models.ProfileSourceFlexible

	const query = `INSERT INTO distribution_profiles (id, education_level, study_system, version,
        first_months_count, first_monthly_grade, first_monthly_average, first_period_exam, first_period_total,
        second_months_count, second_monthly_grade, second_monthly_average, second_period_exam, second_period_total,
        third_months_count, third_monthly_grade, third_monthly_average, third_period_exam, third_period_total,
        two_periods_weight, third_period_weight, total_grade, created_at, updated_at)
        VALUES (:id, :education_level, :study_system, :version,
        :first.months_count, :first.monthly_grade, :first.monthly_average, :first.period_exam, :first.period_total,
        :second.months_count, :second.monthly_grade, :second.monthly_average, :second.period_exam, :second.period_total,
        :third.months_count, :third.monthly_grade, :third.monthly_average, :third.period_exam, :third.period_total,
        :two_periods_weight, :third_period_weight, :total_grade, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert distribution profile: %w", err)
	}
	return nil
}

// Update overwrites the maxima and weights of a profile and bumps its version.
func (r *DistributionProfileRepository) Update(ctx context.Context, profile *models.DistributionProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	profile.Version++
	const query = `UPDATE distribution_profiles SET version = :version,
        first_months_count = :first.months_count, first_monthly_grade = :first.monthly_grade, first_monthly_average = :first.monthly_average, first_period_exam = :first.period_exam, first_period_total = :first.period_total,
        second_months_count = :second.months_count, second_monthly_grade = :second.monthly_grade, second_monthly_average = :second.monthly_average, second_period_exam = :second.period_exam, second_period_total = :second.period_total,
        third_months_count = :third.months_count, third_monthly_grade = :third.monthly_grade, third_monthly_average = :third.monthly_average, third_period_exam = :third.period_exam, third_period_total = :third.period_total,
        two_periods_weight = :two_periods_weight, third_period_weight = :third_period_weight, total_grade = :total_grade, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, profile)
	if err != nil {
		return fmt.Errorf("update distribution profile: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a profile by ID.
func (r *DistributionProfileRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM distribution_profiles WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete distribution profile: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
