package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-grading-api/internal/dto"
	"github.com/noah-isme/institute-grading-api/internal/models"
	appErrors "github.com/noah-isme/institute-grading-api/pkg/errors"
)

const testYear = "2024/2025"

type gradeEntryFixture struct {
	svc      *GradeEntryService
	records  *gradeRecordRepoStub
	resolver *resolverStub
}

func newGradeEntryFixture(t *testing.T, records ...models.SubjectGradeRecord) gradeEntryFixture {
	t.Helper()
	students := testStudents()
	distance := regularProfile()
	distance.ID = "flex-distance"
	distance.StudySystem = models.StudySystemDistance
	distance.TwoPeriodsWeight = 0
	distance.ThirdPeriodWeight = 100

	resolver := &resolverStub{profiles: map[models.DistributionKey]models.DistributionProfile{
		{EducationLevel: models.LevelFirstYear, StudySystem: models.StudySystemRegular}:  regularProfile(),
		{EducationLevel: models.LevelFirstYear, StudySystem: models.StudySystemDistance}: distance,
	}}
	repo := newGradeRecordRepoStub(students, records...)
	svc := NewGradeEntryService(repo, &studentRepoStub{items: students}, &subjectRepoStub{items: testSubjects()}, resolver, NewMetricsService(), nil, nil, GradeEntryConfig{ImportMaxRows: 10})
	return gradeEntryFixture{svc: svc, records: repo, resolver: resolver}
}

func TestGradeEntryServiceEnterAggregatesPeriod(t *testing.T) {
	fx := newGradeEntryFixture(t)

	record, err := fx.svc.Enter(context.Background(), dto.GradeEntryRequest{
		StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: 1,
		Month1: ptr(85), Month2: ptr(90), Month3: ptr(88), ExamScore: ptr(90),
	})
	require.NoError(t, err)
	assert.Equal(t, 87.7, record.WorkTotal)
	require.NotNil(t, record.PeriodTotal)
	assert.Equal(t, 89.1, *record.PeriodTotal)
	assert.Equal(t, "flex-1", record.ProfileID)
	assert.Equal(t, 1, record.ProfileVersion)

	stored, err := fx.records.FindByKey(context.Background(), models.GradeRecordKey{StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: models.PeriodFirst})
	require.NoError(t, err)
	assert.Equal(t, 89.1, *stored.PeriodTotal)
}

func TestGradeEntryServiceEnterMergesWithStoredRecord(t *testing.T) {
	fx := newGradeEntryFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Enter(ctx, dto.GradeEntryRequest{StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: 2, Month1: ptr(80), Month2: ptr(80)})
	require.NoError(t, err)

	record, err := fx.svc.Enter(ctx, dto.GradeEntryRequest{StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: 2, ExamScore: ptr(70)})
	require.NoError(t, err)
	require.NotNil(t, record.Month1)
	assert.Equal(t, 80.0, *record.Month1)
	assert.Equal(t, 80.0, record.WorkTotal)
	assert.Equal(t, 74.0, *record.PeriodTotal)
}

func TestGradeEntryServiceEnterWithoutExamHasNoTotal(t *testing.T) {
	fx := newGradeEntryFixture(t)

	record, err := fx.svc.Enter(context.Background(), dto.GradeEntryRequest{StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: 1, Month1: ptr(95)})
	require.NoError(t, err)
	assert.Equal(t, 95.0, record.WorkTotal)
	assert.Nil(t, record.PeriodTotal)
}

func TestGradeEntryServiceEnterRejectsOverMaximum(t *testing.T) {
	fx := newGradeEntryFixture(t)

	_, err := fx.svc.Enter(context.Background(), dto.GradeEntryRequest{StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: 1, ExamScore: ptr(101)})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrGradeRejected.Code, appErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Contains(t, appErr.Message, "100")
	assert.Empty(t, fx.records.items)
	assert.Equal(t, uint64(1), fx.svc.metrics.Snapshot().GradesRejected)
}

func TestGradeEntryServiceEnterRejectsUnconfiguredMonth(t *testing.T) {
	fx := newGradeEntryFixture(t)

	_, err := fx.svc.Enter(context.Background(), dto.GradeEntryRequest{StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: 3, Month1: ptr(10), ExamScore: ptr(50)})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "month 1 is not configured")
}

func TestGradeEntryServiceEnterRejectsIneligiblePeriod(t *testing.T) {
	fx := newGradeEntryFixture(t)

	_, err := fx.svc.Enter(context.Background(), dto.GradeEntryRequest{StudentID: "dist-1", SubjectID: "math", AcademicYear: testYear, Period: 1, ExamScore: ptr(50)})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrIneligiblePeriod.Code, appErr.Code)
	assert.Empty(t, fx.records.items)

	record, err := fx.svc.Enter(context.Background(), dto.GradeEntryRequest{StudentID: "dist-1", SubjectID: "math", AcademicYear: testYear, Period: 3, ExamScore: ptr(78)})
	require.NoError(t, err)
	assert.Equal(t, 78.0, *record.PeriodTotal)

	_, err = fx.svc.Enter(context.Background(), dto.GradeEntryRequest{StudentID: "diploma-1", SubjectID: "math", AcademicYear: testYear, Period: 3, ExamScore: ptr(78)})
	assert.Equal(t, appErrors.ErrIneligiblePeriod.Code, appErrors.FromError(err).Code)
}

func TestGradeEntryServiceEnterNotConfigured(t *testing.T) {
	fx := newGradeEntryFixture(t)
	students := testStudents()
	student := students["reg-1"]
	student.EducationLevel = models.LevelSecondYear
	fx.svc.students = &studentRepoStub{items: map[string]models.Student{"reg-1": student}}

	_, err := fx.svc.Enter(context.Background(), dto.GradeEntryRequest{StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: 1, ExamScore: ptr(50)})
	assert.Equal(t, appErrors.ErrConfigurationNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeEntryServiceEnterUnknownStudent(t *testing.T) {
	fx := newGradeEntryFixture(t)

	_, err := fx.svc.Enter(context.Background(), dto.GradeEntryRequest{StudentID: "ghost", SubjectID: "math", AcademicYear: testYear, Period: 1})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeEntryServiceEligibility(t *testing.T) {
	fx := newGradeEntryFixture(t)

	eligibility, err := fx.svc.Eligibility(context.Background(), "dist-1")
	require.NoError(t, err)
	assert.True(t, eligibility.CanEnterGrades)
	assert.Equal(t, []models.Period{models.PeriodThird}, eligibility.AvailablePeriods)
}

func TestGradeEntryServiceImportReportsFailingRows(t *testing.T) {
	fx := newGradeEntryFixture(t)

	result, err := fx.svc.Import(context.Background(), dto.GradeImportRequest{
		AcademicYear: testYear,
		Rows: []dto.GradeImportRow{
			{StudentID: "reg-1", SubjectID: "math", Period: 1, Month1: ptr(80), ExamScore: ptr(80)},
			{StudentID: "reg-2", SubjectID: "math", Period: 1, ExamScore: ptr(150)},
			{StudentID: "ghost", SubjectID: "math", Period: 1, ExamScore: ptr(50)},
			{StudentID: "dist-1", SubjectID: "math", Period: 2, ExamScore: ptr(50)},
			{StudentID: "reg-3", SubjectID: "phys", Period: 1, ExamScore: ptr(60)},
			{StudentID: "reg-3", SubjectID: "phys", Period: 1, Month1: ptr(70)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 3, result.Imported)
	require.Len(t, result.Failures, 3)
	assert.Equal(t, 2, result.Failures[0].Row)
	assert.Equal(t, 3, result.Failures[1].Row)
	assert.Equal(t, "student not found", result.Failures[1].Reason)
	assert.Equal(t, 4, result.Failures[2].Row)

	assert.Len(t, fx.records.items, 2)
	merged, err := fx.records.FindByKey(context.Background(), models.GradeRecordKey{StudentID: "reg-3", SubjectID: "phys", AcademicYear: testYear, Period: models.PeriodFirst})
	require.NoError(t, err)
	assert.Equal(t, 70.0, *merged.Month1)
	assert.Equal(t, 64.0, *merged.PeriodTotal)
	// one lookup per (level, system, subject) in the batch
	assert.Equal(t, 2, fx.resolver.calls)
}

func TestGradeEntryServiceImportLimit(t *testing.T) {
	fx := newGradeEntryFixture(t)
	rows := make([]dto.GradeImportRow, 11)
	for i := range rows {
		rows[i] = dto.GradeImportRow{StudentID: "reg-1", SubjectID: "math", Period: 1}
	}

	_, err := fx.svc.Import(context.Background(), dto.GradeImportRequest{AcademicYear: testYear, Rows: rows})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeEntryServiceReset(t *testing.T) {
	key := models.GradeRecordKey{StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: models.PeriodFirst}
	fx := newGradeEntryFixture(t, models.SubjectGradeRecord{StudentID: key.StudentID, SubjectID: key.SubjectID, AcademicYear: key.AcademicYear, Period: key.Period})

	require.NoError(t, fx.svc.Reset(context.Background(), key))
	err := fx.svc.Reset(context.Background(), key)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	err = fx.svc.Reset(context.Background(), models.GradeRecordKey{StudentID: "reg-1"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeEntryServiceListRequiresScope(t *testing.T) {
	fx := newGradeEntryFixture(t)

	_, err := fx.svc.List(context.Background(), models.GradeRecordFilter{AcademicYear: testYear})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeEntryServiceRecalculateProfile(t *testing.T) {
	stale := models.SubjectGradeRecord{
		StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: models.PeriodFirst,
		Month1: ptr(80), ExamScore: ptr(80), WorkTotal: 80, PeriodTotal: ptr(70), ProfileID: "flex-1", ProfileVersion: 0,
	}
	current := models.SubjectGradeRecord{
		StudentID: "reg-2", SubjectID: "math", AcademicYear: testYear, Period: models.PeriodFirst,
		Month1: ptr(50), ExamScore: ptr(50), WorkTotal: 50, PeriodTotal: ptr(50), ProfileID: "flex-1", ProfileVersion: 1,
	}
	other := models.SubjectGradeRecord{
		StudentID: "dist-1", SubjectID: "math", AcademicYear: testYear, Period: models.PeriodThird, ExamScore: ptr(40),
	}
	fx := newGradeEntryFixture(t, stale, current, other)

	report, err := fx.svc.RecalculateProfile(context.Background(), models.DistributionKey{EducationLevel: models.LevelFirstYear, StudySystem: models.StudySystemRegular})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, fx.records.derived)

	refreshed, err := fx.records.FindByKey(context.Background(), stale.Key())
	require.NoError(t, err)
	assert.Equal(t, 80.0, *refreshed.PeriodTotal)
	assert.Equal(t, 1, refreshed.ProfileVersion)
	assert.Equal(t, 80.0, *refreshed.Month1)
}

func TestGradeEntryServiceRecalculateProfileKeepsConcurrentEntry(t *testing.T) {
	outdated := models.SubjectGradeRecord{
		StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: models.PeriodFirst,
		Month1: ptr(80), ExamScore: ptr(80), WorkTotal: 80, PeriodTotal: ptr(70), ProfileID: "flex-1", ProfileVersion: 0,
	}
	fx := newGradeEntryFixture(t, outdated)
	fx.records.afterScan = func() {
		_, err := fx.svc.Enter(context.Background(), dto.GradeEntryRequest{
			StudentID: "reg-1", SubjectID: "math", AcademicYear: testYear, Period: 1, Month1: ptr(60), ExamScore: ptr(70),
		})
		require.NoError(t, err)
	}

	report, err := fx.svc.RecalculateProfile(context.Background(), models.DistributionKey{EducationLevel: models.LevelFirstYear, StudySystem: models.StudySystemRegular})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	stored, err := fx.records.FindByKey(context.Background(), outdated.Key())
	require.NoError(t, err)
	assert.Equal(t, 60.0, *stored.Month1)
	assert.Equal(t, 60.0, stored.WorkTotal)
	assert.Equal(t, 66.0, *stored.PeriodTotal)
	assert.Equal(t, 1, stored.ProfileVersion)
}
