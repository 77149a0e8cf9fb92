package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestGradeRecordRepositoryFindByKey(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "academic_year", "period", "month1", "month2", "month3", "exam_score", "work_total", "period_total", "profile_id", "profile_version", "created_at", "updated_at"}).
		AddRow("r-1", "s-1", "sub-1", "2024/2025", 1, 85.0, 90.0, nil, 90.0, 87.5, 89.0, "p-1", 1, time.Now(), time.Now())
	mock.ExpectQuery("FROM subject_grade_records r\\s+WHERE r.student_id = \\$1 AND r.subject_id = \\$2 AND r.academic_year = \\$3 AND r.period = \\$4").
		WithArgs("s-1", "sub-1", "2024/2025", models.PeriodFirst).
		WillReturnRows(rows)

	record, err := repo.FindByKey(context.Background(), models.GradeRecordKey{StudentID: "s-1", SubjectID: "sub-1", AcademicYear: "2024/2025", Period: models.PeriodFirst})
	require.NoError(t, err)
	assert.Nil(t, record.Month3)
	require.NotNil(t, record.PeriodTotal)
	assert.Equal(t, 89.0, *record.PeriodTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectQuery("WHERE 1=1 AND r.student_id = \\$1 AND r.academic_year = \\$2 ORDER BY r.student_id, r.subject_id, r.period").
		WithArgs("s-1", "2024/2025").
		WillReturnRows(sqlmock.NewRows([]string{"id", "period"}).AddRow("r-1", 1).AddRow("r-2", 2))

	records, err := repo.List(context.Background(), models.GradeRecordFilter{StudentID: "s-1", AcademicYear: "2024/2025"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositoryListByScope(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectQuery("JOIN students s ON s.id = r.student_id\\s+WHERE s.education_level = \\$1 AND s.study_system = \\$2 AND r.subject_id = \\$3").
		WithArgs(models.LevelThirdYear, models.StudySystemRegular, "sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-1"))

	records, err := repo.ListByScope(context.Background(), models.LevelThirdYear, models.StudySystemRegular, "sub-1", "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectExec("INSERT INTO subject_grade_records .* ON CONFLICT \\(student_id, subject_id, academic_year, period\\)").
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.SubjectGradeRecord{StudentID: "s-1", SubjectID: "sub-1", AcademicYear: "2024/2025", Period: models.PeriodThird, ExamScore: floatPtr(78)}
	require.NoError(t, repo.Upsert(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositoryBulkUpsertRollsBack(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO subject_grade_records").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO subject_grade_records").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.BulkUpsert(context.Background(), []models.SubjectGradeRecord{
		{StudentID: "s-1", SubjectID: "sub-1", AcademicYear: "2024/2025", Period: models.PeriodFirst},
		{StudentID: "s-2", SubjectID: "sub-1", AcademicYear: "2024/2025", Period: models.PeriodFirst},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositoryUpdateDerived(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectExec("UPDATE subject_grade_records SET work_total = \\$1, period_total = \\$2").
		WithArgs(88.0, 90.0, "p-1", 2, sqlmock.AnyArg(), "r-1", 85.0, nil, nil, 92.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.SubjectGradeRecord{ID: "r-1", Month1: floatPtr(85), ExamScore: floatPtr(92),
		WorkTotal: 88, PeriodTotal: floatPtr(90), ProfileID: "p-1", ProfileVersion: 2}
	require.NoError(t, repo.UpdateDerived(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositoryUpdateDerivedSkipsChangedScores(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectExec("WHERE id = \\$6 AND month1 IS NOT DISTINCT FROM \\$7 AND month2 IS NOT DISTINCT FROM \\$8\\s+AND month3 IS NOT DISTINCT FROM \\$9 AND exam_score IS NOT DISTINCT FROM \\$10").
		WithArgs(60.0, 66.0, "p-1", 3, sqlmock.AnyArg(), "r-1", 60.0, nil, nil, 70.0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	record := &models.SubjectGradeRecord{ID: "r-1", Month1: floatPtr(60), ExamScore: floatPtr(70),
		WorkTotal: 60, PeriodTotal: floatPtr(66), ProfileID: "p-1", ProfileVersion: 3}
	err := repo.UpdateDerived(context.Background(), record)
	assert.ErrorIs(t, err, ErrStaleRecord)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRecordRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGradeRecordRepository(db)

	mock.ExpectExec("DELETE FROM subject_grade_records").
		WithArgs("s-1", "sub-1", "2024/2025", models.PeriodSecond).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), models.GradeRecordKey{StudentID: "s-1", SubjectID: "sub-1", AcademicYear: "2024/2025", Period: models.PeriodSecond})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
