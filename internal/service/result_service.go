package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-grading-api/internal/grading"
	"github.com/noah-isme/institute-grading-api/internal/models"
	appErrors "github.com/noah-isme/institute-grading-api/pkg/errors"
	"github.com/noah-isme/institute-grading-api/pkg/export"
)

const defaultTopLimit = 10

// Export formats supported for transcripts.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type resultRecordReader interface {
	List(ctx context.Context, filter models.GradeRecordFilter) ([]models.SubjectGradeRecord, error)
	ListByScope(ctx context.Context, level models.EducationLevel, system models.StudySystem, subjectID, academicYear string) ([]models.SubjectGradeRecord, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportFile is a rendered transcript ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ResultService computes final results on read from the stored raw scores.
type ResultService struct {
	records       resultRecordReader
	students      studentReader
	subjects      subjectReader
	distributions distributionResolver
	csv           datasetRenderer
	pdf           datasetRenderer
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewResultService constructs a ResultService.
func NewResultService(records resultRecordReader, students studentReader, subjects subjectReader, distributions distributionResolver, csv, pdf datasetRenderer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ResultService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{
		records:       records,
		students:      students,
		subjects:      subjects,
		distributions: distributions,
		csv:           csv,
		pdf:           pdf,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

// SubjectResult computes the final result of one subject for a student.
func (s *ResultService) SubjectResult(ctx context.Context, studentID, subjectID, academicYear string) (*models.FinalResult, error) {
	if academicYear == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academicYear is required")
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	profile, err := s.distributions.Resolve(ctx, distributionKeyFor(student, subject))
	if err != nil {
		return nil, err
	}
	records, err := s.records.List(ctx, models.GradeRecordFilter{StudentID: student.ID, SubjectID: subject.ID, AcademicYear: academicYear})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}
	result := s.compute(student, subject, academicYear, profile, records)
	return &result, nil
}

// Transcript computes every subject result of a student for an academic year.
// Subjects without a governing distribution are left out and logged.
func (s *ResultService) Transcript(ctx context.Context, studentID, academicYear string) (*models.Transcript, error) {
	if academicYear == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academicYear is required")
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.List(ctx, models.GradeRecordFilter{StudentID: student.ID, AcademicYear: academicYear})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}

	bySubject := make(map[string][]models.SubjectGradeRecord)
	var subjectIDs []string
	for _, record := range records {
		if _, ok := bySubject[record.SubjectID]; !ok {
			subjectIDs = append(subjectIDs, record.SubjectID)
		}
		bySubject[record.SubjectID] = append(bySubject[record.SubjectID], record)
	}
	subjects, err := s.subjects.ListByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}

	transcript := &models.Transcript{
		StudentID:      student.ID,
		StudentName:    student.FullName,
		EducationLevel: student.EducationLevel,
		StudySystem:    student.StudySystem,
		AcademicYear:   academicYear,
		Subjects:       []models.FinalResult{},
	}
	for _, id := range subjectIDs {
		subject, ok := subjects[id]
		if !ok {
			s.logger.Warn("transcript subject missing", zap.String("subject_id", id))
			continue
		}
		profile, err := s.distributions.Resolve(ctx, distributionKeyFor(student, &subject))
		if err != nil {
			s.logger.Warn("transcript subject without distribution", zap.String("subject_id", id), zap.Error(err))
			continue
		}
		transcript.Subjects = append(transcript.Subjects, s.compute(student, &subject, academicYear, profile, bySubject[id]))
	}
	sort.Slice(transcript.Subjects, func(i, j int) bool {
		return transcript.Subjects[i].SubjectName < transcript.Subjects[j].SubjectName
	})
	return transcript, nil
}

// TopStudents ranks complete results of a subject by percentage. Equal
// percentages share a rank and the next distinct percentage takes the next
// rank.
func (s *ResultService) TopStudents(ctx context.Context, filter models.ResultFilter) ([]models.RankedResult, error) {
	results, err := s.scopeResults(ctx, filter)
	if err != nil {
		return nil, err
	}
	complete := make([]models.RankedResult, 0, len(results))
	for _, r := range results {
		if r.Status == models.ResultIncomplete {
			continue
		}
		complete = append(complete, r)
	}
	sort.SliceStable(complete, func(i, j int) bool {
		if complete[i].Percentage != complete[j].Percentage {
			return complete[i].Percentage > complete[j].Percentage
		}
		return complete[i].StudentName < complete[j].StudentName
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTopLimit
	}
	rank := 0
	var previous float64
	for i := range complete {
		if i == 0 || complete[i].Percentage != previous {
			rank++
			previous = complete[i].Percentage
		}
		complete[i].Rank = rank
	}
	if len(complete) > limit {
		complete = complete[:limit]
	}
	return complete, nil
}

// ReviewList returns failed and incomplete results of a subject, including
// students in scope with no records at all.
func (s *ResultService) ReviewList(ctx context.Context, filter models.ResultFilter) ([]models.RankedResult, error) {
	results, err := s.scopeResults(ctx, filter)
	if err != nil {
		return nil, err
	}
	review := make([]models.RankedResult, 0)
	for _, r := range results {
		if r.Status == models.ResultPassed {
			continue
		}
		review = append(review, r)
	}
	sort.SliceStable(review, func(i, j int) bool {
		if review[i].Status != review[j].Status {
			return review[i].Status == models.ResultFailed
		}
		return review[i].StudentName < review[j].StudentName
	})
	return review, nil
}

// ExportTranscript renders a transcript as CSV or PDF.
func (s *ResultService) ExportTranscript(ctx context.Context, studentID, academicYear, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	transcript, err := s.Transcript(ctx, studentID, academicYear)
	if err != nil {
		return nil, err
	}
	dataset := transcriptDataset(transcript)
	name := fmt.Sprintf("transcript_%s_%s", transcript.StudentID, strings.ReplaceAll(academicYear, "/", "-"))

	if format == FormatPDF {
		content, err := s.pdf.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
		}
		return &ExportFile{Filename: name + ".pdf", ContentType: "application/pdf", Content: content}, nil
	}
	content, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}
	return &ExportFile{Filename: name + ".csv", ContentType: "text/csv; charset=utf-8", Content: content}, nil
}

func (s *ResultService) scopeResults(ctx context.Context, filter models.ResultFilter) ([]models.RankedResult, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result filter")
	}
	level, ok := models.ParseEducationLevel(string(filter.EducationLevel))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown education level")
	}
	system, ok := models.ParseStudySystem(string(filter.StudySystem))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown study system")
	}
	subject, err := s.subjects.FindByID(ctx, filter.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	students, err := s.students.ListByScope(ctx, level, system)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	records, err := s.records.ListByScope(ctx, level, system, subject.ID, filter.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}
	byStudent := make(map[string][]models.SubjectGradeRecord)
	for _, record := range records {
		byStudent[record.StudentID] = append(byStudent[record.StudentID], record)
	}

	// Level, system and subject are fixed for the scope: one profile.
	profile, err := s.distributions.Resolve(ctx, models.DistributionKey{EducationLevel: level, StudySystem: system, Subject: subject.Name})
	if err != nil {
		return nil, err
	}

	results := make([]models.RankedResult, 0, len(students))
	for i := range students {
		student := &students[i]
		result := s.compute(student, subject, filter.AcademicYear, profile, byStudent[student.ID])
		results = append(results, models.RankedResult{StudentName: student.FullName, FinalResult: result})
	}
	return results, nil
}

// compute rebuilds every period from raw scores and combines them. Periods
// outside the student's eligibility contribute nothing to the final total.
func (s *ResultService) compute(student *models.Student, subject *models.Subject, academicYear string, profile *models.DistributionProfile, records []models.SubjectGradeRecord) models.FinalResult {
	eligibility := grading.ResolveEligibility(student.AcademicContext())
	byPeriod := make(map[models.Period]models.SubjectGradeRecord, len(records))
	for _, record := range records {
		byPeriod[record.Period] = record
	}

	result := models.FinalResult{
		StudentID:    student.ID,
		SubjectID:    subject.ID,
		SubjectName:  subject.Name,
		AcademicYear: academicYear,
		Periods:      make([]models.PeriodResult, 0, len(models.AllPeriods)),
	}
	input := grading.FinalInput{Required: eligibility.AvailablePeriods}
	for _, period := range models.AllPeriods {
		view := models.PeriodResult{Period: period, PeriodLabel: period.Label(), Required: eligibility.Allows(period)}
		record, ok := byPeriod[period]
		if ok {
			fresh := grading.AggregatePeriod(record.Months(), record.ExamScore, profile.Period(period), period)
			view.WorkTotal = fresh.WorkTotal
			view.PeriodTotal = fresh.PeriodTotal
			view.PersistedTotal = record.PeriodTotal
			if !sameTotal(fresh.PeriodTotal, record.PeriodTotal) || record.ProfileID != profile.ID || record.ProfileVersion != profile.Version {
				result.Stale = true
			}
		}
		if view.Required {
			switch period {
			case models.PeriodFirst:
				input.First = view.PeriodTotal
			case models.PeriodSecond:
				input.Second = view.PeriodTotal
			case models.PeriodThird:
				input.Third = view.PeriodTotal
			}
		}
		result.Periods = append(result.Periods, view)
	}

	outcome := grading.ComputeFinal(input, profile)
	result.FinalTotal = outcome.FinalTotal
	result.TotalPossible = outcome.TotalPossible
	result.Percentage = outcome.Percentage
	result.LetterGrade = outcome.LetterGrade
	result.LetterLabel = outcome.LetterGrade.Label()
	result.Status = outcome.Status
	result.StatusLabel = outcome.Status.Label()
	s.metrics.RecordFinalResult(outcome.Status)
	return result
}

func (s *ResultService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func transcriptDataset(t *models.Transcript) export.Dataset {
	headers := []string{"Subject", "Period 1", "Period 2", "Period 3", "Final", "Out of", "Percentage", "Grade", "Status"}
	rows := make([]map[string]string, 0, len(t.Subjects))
	for _, subject := range t.Subjects {
		row := map[string]string{
			"Subject":    subject.SubjectName,
			"Final":      formatScore(subject.FinalTotal),
			"Out of":     formatScore(subject.TotalPossible),
			"Percentage": formatScore(subject.Percentage) + "%",
			"Grade":      subject.LetterLabel,
			"Status":     subject.StatusLabel,
		}
		for _, period := range subject.Periods {
			column := "Period " + strconv.Itoa(int(period.Period))
			switch {
			case !period.Required:
				row[column] = "-"
			case period.PeriodTotal != nil:
				row[column] = formatScore(*period.PeriodTotal)
			}
		}
		rows = append(rows, row)
	}
	return export.Dataset{
		Title: "Transcript " + t.AcademicYear,
		Notes: []string{
			"Student: " + t.StudentName,
			"Level: " + t.EducationLevel.Label(),
			"System: " + t.StudySystem.Label(),
		},
		Headers: headers,
		Rows:    rows,
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
