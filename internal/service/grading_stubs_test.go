package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/institute-grading-api/internal/models"
	"github.com/noah-isme/institute-grading-api/internal/repository"
	appErrors "github.com/noah-isme/institute-grading-api/pkg/errors"
)

func ptr(v float64) *float64 { return &v }

func regularProfile() models.DistributionProfile {
	period := models.PeriodDistribution{MonthsCount: 3, MonthlyGrade: 100, MonthlyAverage: 100, PeriodExam: 100, PeriodTotal: 100}
	return models.DistributionProfile{
		ID:                "flex-1",
		EducationLevel:    models.LevelFirstYear,
		StudySystem:       models.StudySystemRegular,
		Source:            models.ProfileSourceFlexible,
		Version:           1,
		FirstPeriod:       period,
		SecondPeriod:      period,
		ThirdPeriod:       models.PeriodDistribution{PeriodExam: 100, PeriodTotal: 100},
		TwoPeriodsWeight:  50,
		ThirdPeriodWeight: 50,
		TotalGrade:        100,
	}
}

type distributionRepoStub struct {
	mu         sync.Mutex
	items      map[string]models.DistributionProfile
	findByKeys int
	createErr  error
}

func newDistributionRepoStub(profiles ...models.DistributionProfile) *distributionRepoStub {
	stub := &distributionRepoStub{items: map[string]models.DistributionProfile{}}
	for _, p := range profiles {
		stub.items[p.ID] = p
	}
	return stub
}

func (s *distributionRepoStub) List(_ context.Context, filter models.DistributionFilter) ([]models.DistributionProfile, error) {
	var out []models.DistributionProfile
	for _, p := range s.items {
		if filter.EducationLevel != "" && p.EducationLevel != filter.EducationLevel {
			continue
		}
		if filter.StudySystem != "" && p.StudySystem != filter.StudySystem {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *distributionRepoStub) FindByID(_ context.Context, id string) (*models.DistributionProfile, error) {
	p, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (s *distributionRepoStub) FindByKey(_ context.Context, level models.EducationLevel, system models.StudySystem) (*models.DistributionProfile, error) {
	s.mu.Lock()
	s.findByKeys++
	s.mu.Unlock()
	for _, p := range s.items {
		if p.EducationLevel == level && p.StudySystem == system {
			copied := p
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *distributionRepoStub) Exists(_ context.Context, level models.EducationLevel, system models.StudySystem, excludeID string) (bool, error) {
	for _, p := range s.items {
		if p.EducationLevel == level && p.StudySystem == system && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *distributionRepoStub) Create(_ context.Context, profile *models.DistributionProfile) error {
	if s.createErr != nil {
		return s.createErr
	}
	if profile.ID == "" {
		profile.ID = "generated-" + string(profile.EducationLevel) + "-" + string(profile.StudySystem)
	}
	profile.Version = 1
	s.items[profile.ID] = *profile
	return nil
}

func (s *distributionRepoStub) Update(_ context.Context, profile *models.DistributionProfile) error {
	if _, ok := s.items[profile.ID]; !ok {
		return sql.ErrNoRows
	}
	profile.Version++
	s.items[profile.ID] = *profile
	return nil
}

func (s *distributionRepoStub) Delete(_ context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

type distributionCacheStub struct {
	items       map[string]models.DistributionProfile
	invalidated []string
}

func newDistributionCacheStub() *distributionCacheStub {
	return &distributionCacheStub{items: map[string]models.DistributionProfile{}}
}

func (c *distributionCacheStub) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	p, ok := c.items[key]
	if !ok {
		return false, nil
	}
	*dest.(*models.DistributionProfile) = p
	return true, nil
}

func (c *distributionCacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.items[key] = *value.(*models.DistributionProfile)
	return nil
}

func (c *distributionCacheStub) Invalidate(_ context.Context, pattern string) error {
	c.invalidated = append(c.invalidated, pattern)
	delete(c.items, pattern)
	return nil
}

type schedulerStub struct {
	keys []models.DistributionKey
}

func (s *schedulerStub) ScheduleRecalculation(_ context.Context, key models.DistributionKey) error {
	s.keys = append(s.keys, key)
	return nil
}

type gradeRecordRepoStub struct {
	mu       sync.Mutex
	items    map[models.GradeRecordKey]models.SubjectGradeRecord
	students map[string]models.Student
	derived  int
	bulkErr  error
	// afterScan runs once ListByScope has copied the matching records.
	afterScan func()
}

func newGradeRecordRepoStub(students map[string]models.Student, records ...models.SubjectGradeRecord) *gradeRecordRepoStub {
	stub := &gradeRecordRepoStub{items: map[models.GradeRecordKey]models.SubjectGradeRecord{}, students: students}
	for _, r := range records {
		if r.ID == "" {
			r.ID = fmt.Sprintf("%s:%s:%d", r.StudentID, r.SubjectID, r.Period)
		}
		stub.items[r.Key()] = r
	}
	return stub
}

func (s *gradeRecordRepoStub) FindByKey(_ context.Context, key models.GradeRecordKey) (*models.SubjectGradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (s *gradeRecordRepoStub) List(_ context.Context, filter models.GradeRecordFilter) ([]models.SubjectGradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SubjectGradeRecord
	for _, r := range s.items {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.SubjectID != "" && r.SubjectID != filter.SubjectID {
			continue
		}
		if filter.AcademicYear != "" && r.AcademicYear != filter.AcademicYear {
			continue
		}
		if filter.Period != 0 && r.Period != filter.Period {
			continue
		}
		out = append(out, r)
	}
	sortRecords(out)
	return out, nil
}

func (s *gradeRecordRepoStub) ListByScope(_ context.Context, level models.EducationLevel, system models.StudySystem, subjectID, academicYear string) ([]models.SubjectGradeRecord, error) {
	out := s.scan(level, system, subjectID, academicYear)
	if s.afterScan != nil {
		s.afterScan()
	}
	return out, nil
}

func (s *gradeRecordRepoStub) scan(level models.EducationLevel, system models.StudySystem, subjectID, academicYear string) []models.SubjectGradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SubjectGradeRecord
	for _, r := range s.items {
		student := s.students[r.StudentID]
		if student.EducationLevel != level || student.StudySystem != system {
			continue
		}
		if subjectID != "" && r.SubjectID != subjectID {
			continue
		}
		if academicYear != "" && r.AcademicYear != academicYear {
			continue
		}
		out = append(out, r)
	}
	sortRecords(out)
	return out
}

func (s *gradeRecordRepoStub) Upsert(_ context.Context, record *models.SubjectGradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = fmt.Sprintf("%s:%s:%d", record.StudentID, record.SubjectID, record.Period)
	}
	s.items[record.Key()] = *record
	return nil
}

func (s *gradeRecordRepoStub) BulkUpsert(ctx context.Context, records []models.SubjectGradeRecord) error {
	if s.bulkErr != nil {
		return s.bulkErr
	}
	for i := range records {
		if err := s.Upsert(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *gradeRecordRepoStub) UpdateDerived(_ context.Context, record *models.SubjectGradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[record.Key()]
	if !ok || !sameScores(stored, *record) {
		return repository.ErrStaleRecord
	}
	stored.WorkTotal = record.WorkTotal
	stored.PeriodTotal = record.PeriodTotal
	stored.ProfileID = record.ProfileID
	stored.ProfileVersion = record.ProfileVersion
	s.items[record.Key()] = stored
	s.derived++
	return nil
}

func (s *gradeRecordRepoStub) Delete(_ context.Context, key models.GradeRecordKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, key)
	return nil
}

func sameScores(a, b models.SubjectGradeRecord) bool {
	am, bm := a.Months(), b.Months()
	for i := range am {
		if !sameScore(am[i], bm[i]) {
			return false
		}
	}
	return sameScore(a.ExamScore, b.ExamScore)
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortRecords(records []models.SubjectGradeRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].StudentID != records[j].StudentID {
			return records[i].StudentID < records[j].StudentID
		}
		if records[i].SubjectID != records[j].SubjectID {
			return records[i].SubjectID < records[j].SubjectID
		}
		return records[i].Period < records[j].Period
	})
}

type studentRepoStub struct {
	items map[string]models.Student
}

func (s *studentRepoStub) FindByID(_ context.Context, id string) (*models.Student, error) {
	st, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (s *studentRepoStub) ListByIDs(_ context.Context, ids []string) (map[string]models.Student, error) {
	out := map[string]models.Student{}
	for _, id := range ids {
		if st, ok := s.items[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (s *studentRepoStub) ListByScope(_ context.Context, level models.EducationLevel, system models.StudySystem) ([]models.Student, error) {
	var out []models.Student
	for _, st := range s.items {
		if st.EducationLevel == level && st.StudySystem == system && st.Active {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

type subjectRepoStub struct {
	items map[string]models.Subject
}

func (s *subjectRepoStub) FindByID(_ context.Context, id string) (*models.Subject, error) {
	sub, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sub, nil
}

func (s *subjectRepoStub) ListByIDs(_ context.Context, ids []string) (map[string]models.Subject, error) {
	out := map[string]models.Subject{}
	for _, id := range ids {
		if sub, ok := s.items[id]; ok {
			out[id] = sub
		}
	}
	return out, nil
}

type resolverStub struct {
	mu       sync.Mutex
	profiles map[models.DistributionKey]models.DistributionProfile
	calls    int
}

func (r *resolverStub) Resolve(_ context.Context, key models.DistributionKey) (*models.DistributionProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	p, ok := r.profiles[models.DistributionKey{EducationLevel: key.EducationLevel, StudySystem: key.StudySystem}]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConfigurationNotFound, "grading not configured")
	}
	return &p, nil
}

func testStudents() map[string]models.Student {
	return map[string]models.Student{
		"reg-1":     {ID: "reg-1", FullName: "Amal", EducationLevel: models.LevelFirstYear, StudySystem: models.StudySystemRegular, Active: true},
		"reg-2":     {ID: "reg-2", FullName: "Basim", EducationLevel: models.LevelFirstYear, StudySystem: models.StudySystemRegular, Active: true},
		"reg-3":     {ID: "reg-3", FullName: "Dalia", EducationLevel: models.LevelFirstYear, StudySystem: models.StudySystemRegular, Active: true},
		"dist-1":    {ID: "dist-1", FullName: "Hadi", EducationLevel: models.LevelFirstYear, StudySystem: models.StudySystemDistance, Active: true},
		"diploma-1": {ID: "diploma-1", FullName: "Jamal", EducationLevel: models.LevelThirdYear, StudySystem: models.StudySystemDistance, DiplomaTrack: true, Active: true},
	}
}

func testSubjects() map[string]models.Subject {
	return map[string]models.Subject{
		"math": {ID: "math", Code: "MATH", Name: "Mathematics"},
		"phys": {ID: "phys", Code: "PHYS", Name: "Physics"},
	}
}
