package grading

import (
	"context"
	"errors"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

// ErrNotConfigured reports that no distribution governs the requested key.
// Callers must treat it as "grading not configured", never as a zero profile.
var ErrNotConfigured = errors.New("grading: distribution not configured")

// Source resolves a distribution profile for a key.
type Source interface {
	Lookup(ctx context.Context, key models.DistributionKey) (*models.DistributionProfile, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, key models.DistributionKey) (*models.DistributionProfile, error)

// Lookup calls f.
func (f SourceFunc) Lookup(ctx context.Context, key models.DistributionKey) (*models.DistributionProfile, error) {
	return f(ctx, key)
}

// Registry tries its sources in order and returns the first match.
type Registry struct {
	sources []Source
}

// NewRegistry builds a registry. Earlier sources take precedence.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: sources}
}

// Lookup returns the governing profile or ErrNotConfigured.
func (r *Registry) Lookup(ctx context.Context, key models.DistributionKey) (*models.DistributionProfile, error) {
	for _, source := range r.sources {
		if source == nil {
			continue
		}
		profile, err := source.Lookup(ctx, key)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, ErrNotConfigured) {
			return nil, err
		}
	}
	return nil, ErrNotConfigured
}

// LegacyTable is the fixed per-subject distribution table. It only answers
// lookups that name a subject it knows.
type LegacyTable struct {
	entries map[legacyKey]models.DistributionProfile
}

type legacyKey struct {
	level   models.EducationLevel
	system  models.StudySystem
	subject string
}

// NewLegacyTable indexes the given profiles by level, system and subject.
func NewLegacyTable(profiles ...models.DistributionProfile) *LegacyTable {
	t := &LegacyTable{entries: make(map[legacyKey]models.DistributionProfile, len(profiles))}
	for _, p := range profiles {
		p.Source = models.ProfileSourceLegacy
		p.Subject = models.NormalizeLabel(p.Subject)
		t.entries[legacyKey{level: p.EducationLevel, system: p.StudySystem, subject: p.Subject}] = p
	}
	return t
}

// Lookup implements Source.
func (t *LegacyTable) Lookup(_ context.Context, key models.DistributionKey) (*models.DistributionProfile, error) {
	subject := models.NormalizeLabel(key.Subject)
	if t == nil || subject == "" {
		return nil, ErrNotConfigured
	}
	profile, ok := t.entries[legacyKey{level: key.EducationLevel, system: key.StudySystem, subject: subject}]
	if !ok {
		return nil, ErrNotConfigured
	}
	return &profile, nil
}

// Len returns the number of legacy entries.
func (t *LegacyTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// DefaultLegacyTable returns the fixed table historically applied to regular
// students: two 25-point periods and a 50-point final period for core
// subjects, and a 50-point scale for activity subjects.
func DefaultLegacyTable() *LegacyTable {
	core := models.DistributionProfile{
		FirstPeriod:  models.PeriodDistribution{MonthsCount: 3, MonthlyGrade: 25, MonthlyAverage: 25, PeriodExam: 25, PeriodTotal: 25},
		SecondPeriod: models.PeriodDistribution{MonthsCount: 3, MonthlyGrade: 25, MonthlyAverage: 25, PeriodExam: 25, PeriodTotal: 25},
		ThirdPeriod:  models.PeriodDistribution{MonthsCount: 0, PeriodExam: 50, PeriodTotal: 50},
		TotalGrade:   100,
	}
	activity := models.DistributionProfile{
		FirstPeriod:  models.PeriodDistribution{MonthsCount: 2, MonthlyGrade: 10, MonthlyAverage: 10, PeriodExam: 10, PeriodTotal: 10},
		SecondPeriod: models.PeriodDistribution{MonthsCount: 2, MonthlyGrade: 10, MonthlyAverage: 10, PeriodExam: 10, PeriodTotal: 10},
		ThirdPeriod:  models.PeriodDistribution{MonthsCount: 0, PeriodExam: 30, PeriodTotal: 30},
		TotalGrade:   50,
	}
	subjects := []struct {
		name string
		base models.DistributionProfile
	}{
		{"اللغة العربية", core},
		{"التربية الإسلامية", core},
		{"الرياضيات", core},
		{"التربية الفنية", activity},
		{"التربية الرياضية", activity},
	}

	var profiles []models.DistributionProfile
	for _, level := range []models.EducationLevel{models.LevelFirstYear, models.LevelSecondYear, models.LevelThirdYear} {
		for _, subject := range subjects {
			p := subject.base
			p.ID = "legacy:" + string(level) + ":" + subject.name
			p.EducationLevel = level
			p.StudySystem = models.StudySystemRegular
			p.Subject = subject.name
			p.Version = 1
			profiles = append(profiles, p)
		}
	}
	return NewLegacyTable(profiles...)
}
