package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

const gradeRecordColumns = `r.id, r.student_id, r.subject_id, r.academic_year, r.period, r.month1, r.month2, r.month3, r.exam_score,
        r.work_total, r.period_total, r.profile_id, r.profile_version, r.created_at, r.updated_at`

const upsertGradeRecord = `INSERT INTO subject_grade_records (id, student_id, subject_id, academic_year, period, month1, month2, month3, exam_score,
        work_total, period_total, profile_id, profile_version, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :academic_year, :period, :month1, :month2, :month3, :exam_score,
        :work_total, :period_total, :profile_id, :profile_version, :created_at, :updated_at)
        ON CONFLICT (student_id, subject_id, academic_year, period)
        DO UPDATE SET month1 = EXCLUDED.month1, month2 = EXCLUDED.month2, month3 = EXCLUDED.month3, exam_score = EXCLUDED.exam_score,
        work_total = EXCLUDED.work_total, period_total = EXCLUDED.period_total, profile_id = EXCLUDED.profile_id,
        profile_version = EXCLUDED.profile_version, updated_at = EXCLUDED.updated_at`

// GradeRecordRepository persists per-period subject grade records.
type GradeRecordRepository struct {
	db *sqlx.DB
}

// NewGradeRecordRepository constructs repository.
func NewGradeRecordRepository(db *sqlx.DB) *GradeRecordRepository {
	return &GradeRecordRepository{db: db}
}

// FindByKey returns the record for a student, subject, year and period.
func (r *GradeRecordRepository) FindByKey(ctx context.Context, key models.GradeRecordKey) (*models.SubjectGradeRecord, error) {
	query := "SELECT " + gradeRecordColumns + ` FROM subject_grade_records r
        WHERE r.student_id = $1 AND r.subject_id = $2 AND r.academic_year = $3 AND r.period = $4`
	var record models.SubjectGradeRecord
	if err := r.db.GetContext(ctx, &record, query, key.StudentID, key.SubjectID, key.AcademicYear, key.Period); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns records matching the filter ordered by subject and period.
func (r *GradeRecordRepository) List(ctx context.Context, filter models.GradeRecordFilter) ([]models.SubjectGradeRecord, error) {
	query := "SELECT " + gradeRecordColumns + " FROM subject_grade_records r WHERE 1=1"
	args := []interface{}{}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND r.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND r.subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if filter.AcademicYear != "" {
		query += fmt.Sprintf(" AND r.academic_year = $%d", len(args)+1)
		args = append(args, filter.AcademicYear)
	}
	if filter.Period != 0 {
		query += fmt.Sprintf(" AND r.period = $%d", len(args)+1)
		args = append(args, filter.Period)
	}
	query += " ORDER BY r.student_id, r.subject_id, r.period"

	var records []models.SubjectGradeRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list grade records: %w", err)
	}
	return records, nil
}

// ListByScope returns the records of students currently enrolled at the
// education level and study system. Empty subjectID or academicYear widen the scope.
func (r *GradeRecordRepository) ListByScope(ctx context.Context, level models.EducationLevel, system models.StudySystem, subjectID, academicYear string) ([]models.SubjectGradeRecord, error) {
	query := "SELECT " + gradeRecordColumns + ` FROM subject_grade_records r
        JOIN students s ON s.id = r.student_id
        WHERE s.education_level = $1 AND s.study_system = $2`
	args := []interface{}{level, system}
	if subjectID != "" {
		query += fmt.Sprintf(" AND r.subject_id = $%d", len(args)+1)
		args = append(args, subjectID)
	}
	if academicYear != "" {
		query += fmt.Sprintf(" AND r.academic_year = $%d", len(args)+1)
		args = append(args, academicYear)
	}
	query += " ORDER BY r.student_id, r.subject_id, r.period"

	var records []models.SubjectGradeRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list grade records by scope: %w", err)
	}
	return records, nil
}

// Upsert atomically inserts or replaces a record keyed by student, subject,
// academic year and period.
func (r *GradeRecordRepository) Upsert(ctx context.Context, record *models.SubjectGradeRecord) error {
	prepareRecord(record, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, upsertGradeRecord, record); err != nil {
		return fmt.Errorf("upsert grade record: %w", err)
	}
	return nil
}

// BulkUpsert upserts records in a single transaction.
func (r *GradeRecordRepository) BulkUpsert(ctx context.Context, records []models.SubjectGradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range records {
		prepareRecord(&records[i], now)
		if _, err := tx.NamedExecContext(ctx, upsertGradeRecord, records[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert grade record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade records: %w", err)
	}
	return nil
}

// UpdateDerived rewrites only the derived totals and the profile stamp of a
// record. The write only applies while the raw scores still match the ones
// the totals were computed from; otherwise it returns ErrStaleRecord.
func (r *GradeRecordRepository) UpdateDerived(ctx context.Context, record *models.SubjectGradeRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subject_grade_records SET work_total = :work_total, period_total = :period_total,
        profile_id = :profile_id, profile_version = :profile_version, updated_at = :updated_at
        WHERE id = :id AND month1 IS NOT DISTINCT FROM :month1 AND month2 IS NOT DISTINCT FROM :month2
        AND month3 IS NOT DISTINCT FROM :month3 AND exam_score IS NOT DISTINCT FROM :exam_score`
	res, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("update derived grade totals: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleRecord
	}
	return nil
}

// Delete removes a single record; it returns sql.ErrNoRows when none matched.
func (r *GradeRecordRepository) Delete(ctx context.Context, key models.GradeRecordKey) error {
	const query = `DELETE FROM subject_grade_records WHERE student_id = $1 AND subject_id = $2 AND academic_year = $3 AND period = $4`
	res, err := r.db.ExecContext(ctx, query, key.StudentID, key.SubjectID, key.AcademicYear, key.Period)
	if err != nil {
		return fmt.Errorf("delete grade record: %w", err)
	}
	return requireAffected(res)
}

func prepareRecord(record *models.SubjectGradeRecord, now time.Time) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}
