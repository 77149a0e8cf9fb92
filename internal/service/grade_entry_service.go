package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/institute-grading-api/internal/dto"
	"github.com/noah-isme/institute-grading-api/internal/grading"
	"github.com/noah-isme/institute-grading-api/internal/models"
	"github.com/noah-isme/institute-grading-api/internal/repository"
	appErrors "github.com/noah-isme/institute-grading-api/pkg/errors"
	applog "github.com/noah-isme/institute-grading-api/pkg/logger"
)

type gradeRecordRepository interface {
	FindByKey(ctx context.Context, key models.GradeRecordKey) (*models.SubjectGradeRecord, error)
	List(ctx context.Context, filter models.GradeRecordFilter) ([]models.SubjectGradeRecord, error)
	ListByScope(ctx context.Context, level models.EducationLevel, system models.StudySystem, subjectID, academicYear string) ([]models.SubjectGradeRecord, error)
	Upsert(ctx context.Context, record *models.SubjectGradeRecord) error
	BulkUpsert(ctx context.Context, records []models.SubjectGradeRecord) error
	UpdateDerived(ctx context.Context, record *models.SubjectGradeRecord) error
	Delete(ctx context.Context, key models.GradeRecordKey) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]models.Student, error)
	ListByScope(ctx context.Context, level models.EducationLevel, system models.StudySystem) ([]models.Student, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error)
}

type distributionResolver interface {
	Resolve(ctx context.Context, key models.DistributionKey) (*models.DistributionProfile, error)
}

// GradeEntryConfig tunes entry and recalculation limits.
type GradeEntryConfig struct {
	ImportMaxRows     int
	RecalcConcurrency int
}

// GradeEntryService records raw scores after checking eligibility and the
// governing distribution, and keeps the derived totals in sync.
type GradeEntryService struct {
	records       gradeRecordRepository
	students      studentReader
	subjects      subjectReader
	distributions distributionResolver
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           GradeEntryConfig
}

// NewGradeEntryService constructs a GradeEntryService.
func NewGradeEntryService(records gradeRecordRepository, students studentReader, subjects subjectReader, distributions distributionResolver, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg GradeEntryConfig) *GradeEntryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ImportMaxRows <= 0 {
		cfg.ImportMaxRows = 2000
	}
	if cfg.RecalcConcurrency <= 0 {
		cfg.RecalcConcurrency = 4
	}
	return &GradeEntryService{
		records:       records,
		students:      students,
		subjects:      subjects,
		distributions: distributions,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
	}
}

// Eligibility resolves which periods accept grades for the student right now.
func (s *GradeEntryService) Eligibility(ctx context.Context, studentID string) (models.Eligibility, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return models.Eligibility{}, err
	}
	return grading.ResolveEligibility(student.AcademicContext()), nil
}

// Enter validates and stores the scores of one period. Fields left out of the
// request keep their stored value.
func (s *GradeEntryService) Enter(ctx context.Context, req dto.GradeEntryRequest) (*models.SubjectGradeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade entry payload")
	}
	student, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	subject, err := s.loadSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	period := models.Period(req.Period)
	if err := checkEligibility(student, period); err != nil {
		return nil, err
	}
	profile, err := s.distributions.Resolve(ctx, distributionKeyFor(student, subject))
	if err != nil {
		return nil, err
	}

	entry := entryFields{Months: [3]*float64{req.Month1, req.Month2, req.Month3}, Exam: req.ExamScore}
	if err := validateEntry(entry, profile.Period(period)); err != nil {
		s.metrics.RecordGradeEntry(false)
		return nil, err
	}

	key := models.GradeRecordKey{StudentID: student.ID, SubjectID: subject.ID, AcademicYear: req.AcademicYear, Period: period}
	record, err := s.existingOrNew(ctx, key)
	if err != nil {
		return nil, err
	}
	entry.applyTo(record)
	grading.AggregateRecord(record, profile)

	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade record")
	}
	s.metrics.RecordGradeEntry(true)
	return record, nil
}

// Import stores a batch of rows. Failing rows are skipped and reported by
// their 1-based position; the accepted rows are written in one transaction.
func (s *GradeEntryService) Import(ctx context.Context, req dto.GradeImportRequest) (*dto.GradeImportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	if len(req.Rows) > s.cfg.ImportMaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("import is limited to %d rows", s.cfg.ImportMaxRows))
	}

	studentIDs, subjectIDs := importIDs(req.Rows)
	students, err := s.students.ListByIDs(ctx, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	subjects, err := s.subjects.ListByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}

	result := &dto.GradeImportResult{Total: len(req.Rows), Failures: []dto.GradeImportFailure{}}
	profiles := make(map[models.DistributionKey]*models.DistributionProfile)
	pending := make(map[models.GradeRecordKey]*models.SubjectGradeRecord)
	var order []models.GradeRecordKey

	for i, row := range req.Rows {
		fail := func(reason string) {
			result.Failures = append(result.Failures, dto.GradeImportFailure{Row: i + 1, StudentID: row.StudentID, SubjectID: row.SubjectID, Reason: reason})
			s.metrics.RecordGradeEntry(false)
			applog.FromContext(ctx, s.logger).Warn("grade import row skipped", zap.Int("row", i+1), zap.String("student_id", row.StudentID), zap.String("reason", reason))
		}
		if err := s.validator.Struct(row); err != nil {
			fail(err.Error())
			continue
		}
		student, ok := students[row.StudentID]
		if !ok {
			fail("student not found")
			continue
		}
		subject, ok := subjects[row.SubjectID]
		if !ok {
			fail("subject not found")
			continue
		}
		period := models.Period(row.Period)
		if err := checkEligibility(&student, period); err != nil {
			fail(appErrors.FromError(err).Message)
			continue
		}
		distKey := distributionKeyFor(&student, &subject)
		profile, ok := profiles[distKey]
		if !ok {
			profile, err = s.distributions.Resolve(ctx, distKey)
			if err != nil {
				fail(appErrors.FromError(err).Message)
				continue
			}
			profiles[distKey] = profile
		}
		entry := entryFields{Months: [3]*float64{row.Month1, row.Month2, row.Month3}, Exam: row.ExamScore}
		if err := validateEntry(entry, profile.Period(period)); err != nil {
			fail(appErrors.FromError(err).Message)
			continue
		}

		key := models.GradeRecordKey{StudentID: student.ID, SubjectID: subject.ID, AcademicYear: req.AcademicYear, Period: period}
		record, seen := pending[key]
		if !seen {
			record, err = s.existingOrNew(ctx, key)
			if err != nil {
				fail(appErrors.FromError(err).Message)
				continue
			}
			pending[key] = record
			order = append(order, key)
		}
		entry.applyTo(record)
		grading.AggregateRecord(record, profile)
		result.Imported++
	}

	batch := make([]models.SubjectGradeRecord, 0, len(order))
	for _, key := range order {
		batch = append(batch, *pending[key])
	}
	if err := s.records.BulkUpsert(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save imported grades")
	}
	for i := 0; i < result.Imported; i++ {
		s.metrics.RecordGradeEntry(true)
	}
	applog.FromContext(ctx, s.logger).Info("grade import finished",
		zap.String("academic_year", req.AcademicYear),
		zap.Int("total", result.Total),
		zap.Int("imported", result.Imported),
		zap.Int("failed", len(result.Failures)))
	return result, nil
}

// Reset deletes a single period record.
func (s *GradeEntryService) Reset(ctx context.Context, key models.GradeRecordKey) error {
	if err := s.validator.Struct(key); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade record key")
	}
	if err := s.records.Delete(ctx, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade record")
	}
	applog.FromContext(ctx, s.logger).Info("grade record reset",
		zap.String("student_id", key.StudentID),
		zap.String("subject_id", key.SubjectID),
		zap.String("academic_year", key.AcademicYear),
		zap.Int("period", int(key.Period)))
	return nil
}

// List returns stored records.
func (s *GradeEntryService) List(ctx context.Context, filter models.GradeRecordFilter) ([]models.SubjectGradeRecord, error) {
	if filter.StudentID == "" && filter.SubjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId or subjectId is required")
	}
	if filter.Period != 0 && !filter.Period.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period must be 1, 2 or 3")
	}
	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade records")
	}
	return records, nil
}

// RecalculateProfile recomputes the derived totals of every record under an
// education level and study system. Raw scores are never touched; records
// whose totals and profile stamp already match, or whose scores changed
// after the scan, are skipped.
func (s *GradeEntryService) RecalculateProfile(ctx context.Context, key models.DistributionKey) (*dto.RecalculationReport, error) {
	start := time.Now()
	records, err := s.records.ListByScope(ctx, key.EducationLevel, key.StudySystem, "", "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade records")
	}
	report := &dto.RecalculationReport{EducationLevel: key.EducationLevel, StudySystem: key.StudySystem, Scanned: len(records)}
	if len(records) == 0 {
		return report, nil
	}

	subjectIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for _, record := range records {
		if _, ok := seen[record.SubjectID]; !ok {
			seen[record.SubjectID] = struct{}{}
			subjectIDs = append(subjectIDs, record.SubjectID)
		}
	}
	subjects, err := s.subjects.ListByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	profiles := make(map[string]*models.DistributionProfile, len(subjectIDs))
	for _, id := range subjectIDs {
		lookup := key
		lookup.Subject = subjects[id].Name
		profile, err := s.distributions.Resolve(ctx, lookup)
		if err != nil {
			s.logger.Warn("skipping subject without distribution", zap.String("subject_id", id), zap.Error(err))
			continue
		}
		profiles[id] = profile
	}

	var updated, skipped, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.RecalcConcurrency)
	for i := range records {
		record := records[i]
		profile, ok := profiles[record.SubjectID]
		if !ok {
			atomic.AddInt64(&skipped, 1)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			before := record
			grading.AggregateRecord(&record, profile)
			if !derivedChanged(before, record) {
				return nil
			}
			err := s.records.UpdateDerived(gctx, &record)
			if errors.Is(err, repository.ErrStaleRecord) {
				// Scores changed since the scan; that write already stored fresh totals.
				atomic.AddInt64(&skipped, 1)
				return nil
			}
			if err != nil {
				atomic.AddInt64(&failed, 1)
				s.logger.Warn("failed to recalculate grade record", zap.String("record_id", record.ID), zap.Error(err))
				return nil
			}
			atomic.AddInt64(&updated, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "recalculation interrupted")
	}

	report.Updated = int(updated)
	report.Skipped = int(skipped)
	report.Failed = int(failed)
	s.metrics.ObserveRecalculation(report.Updated, report.Failed, time.Since(start))
	s.logger.Info("grade records recalculated",
		zap.String("education_level", string(key.EducationLevel)),
		zap.String("study_system", string(key.StudySystem)),
		zap.Int("scanned", report.Scanned),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (s *GradeEntryService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *GradeEntryService) loadSubject(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

func (s *GradeEntryService) existingOrNew(ctx context.Context, key models.GradeRecordKey) (*models.SubjectGradeRecord, error) {
	record, err := s.records.FindByKey(ctx, key)
	if err == nil {
		return record, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &models.SubjectGradeRecord{StudentID: key.StudentID, SubjectID: key.SubjectID, AcademicYear: key.AcademicYear, Period: key.Period}, nil
	}
	return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade record")
}

type entryFields struct {
	Months [3]*float64
	Exam   *float64
}

func (e entryFields) applyTo(record *models.SubjectGradeRecord) {
	if e.Months[0] != nil {
		record.Month1 = e.Months[0]
	}
	if e.Months[1] != nil {
		record.Month2 = e.Months[1]
	}
	if e.Months[2] != nil {
		record.Month3 = e.Months[2]
	}
	if e.Exam != nil {
		record.ExamScore = e.Exam
	}
}

func validateEntry(entry entryFields, dist models.PeriodDistribution) error {
	errs := grading.ValidateEntry(entry.Months, entry.Exam, dist)
	if len(errs) == 0 {
		return nil
	}
	reasons := make([]string, len(errs))
	for i, err := range errs {
		reasons[i] = err.Error()
	}
	return appErrors.Wrap(errs[0], appErrors.ErrGradeRejected.Code, appErrors.ErrGradeRejected.Status, strings.Join(reasons, "; "))
}

func checkEligibility(student *models.Student, period models.Period) error {
	eligibility := grading.ResolveEligibility(student.AcademicContext())
	if eligibility.Allows(period) {
		return nil
	}
	message := fmt.Sprintf("%s is not open for grade entry", period.Label())
	if len(eligibility.Notes) > 0 {
		message += ": " + strings.Join(eligibility.Notes, "; ")
	}
	return appErrors.Clone(appErrors.ErrIneligiblePeriod, message)
}

func distributionKeyFor(student *models.Student, subject *models.Subject) models.DistributionKey {
	return models.DistributionKey{
		EducationLevel: student.EducationLevel,
		StudySystem:    student.StudySystem,
		Subject:        subject.Name,
	}
}

func derivedChanged(before, after models.SubjectGradeRecord) bool {
	if before.WorkTotal != after.WorkTotal || before.ProfileID != after.ProfileID || before.ProfileVersion != after.ProfileVersion {
		return true
	}
	return !sameTotal(before.PeriodTotal, after.PeriodTotal)
}

func sameTotal(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func importIDs(rows []dto.GradeImportRow) (students, subjects []string) {
	seenStudents := make(map[string]struct{})
	seenSubjects := make(map[string]struct{})
	for _, row := range rows {
		if _, ok := seenStudents[row.StudentID]; !ok && row.StudentID != "" {
			seenStudents[row.StudentID] = struct{}{}
			students = append(students, row.StudentID)
		}
		if _, ok := seenSubjects[row.SubjectID]; !ok && row.SubjectID != "" {
			seenSubjects[row.SubjectID] = struct{}{}
			subjects = append(subjects, row.SubjectID)
		}
	}
	return students, subjects
}
