package models

import "time"

// PeriodDistribution holds the maxima configured for one grading period.
type PeriodDistribution struct {
	MonthsCount    int     `db:"months_count" json:"months_count" validate:"gte=0,lte=3"`
	MonthlyGrade   float64 `db:"monthly_grade" json:"monthly_grade" validate:"gte=0"`
	MonthlyAverage float64 `db:"monthly_average" json:"monthly_average" validate:"gte=0"`
	PeriodExam     float64 `db:"period_exam" json:"period_exam" validate:"gte=0"`
	PeriodTotal    float64 `db:"period_total" json:"period_total" validate:"gte=0"`
}

// DistributionProfile governs grading for one (education level, study system)
// pair. Legacy profiles additionally carry the subject they apply to.
type DistributionProfile struct {
	ID                string             `db:"id" json:"id"`
	EducationLevel    EducationLevel     `db:"education_level" json:"education_level"`
	StudySystem       StudySystem        `db:"study_system" json:"study_system"`
	Subject           string             `db:"subject" json:"subject,omitempty"`
	Source            ProfileSource      `db:"source" json:"source"`
	Version           int                `db:"version" json:"version"`
	FirstPeriod       PeriodDistribution `db:"first" json:"first_period"`
	SecondPeriod      PeriodDistribution `db:"second" json:"second_period"`
	ThirdPeriod       PeriodDistribution `db:"third" json:"third_period"`
	TwoPeriodsWeight  float64            `db:"two_periods_weight" json:"two_periods_weight"`
	ThirdPeriodWeight float64            `db:"third_period_weight" json:"third_period_weight"`
	TotalGrade        float64            `db:"total_grade" json:"total_grade"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// Period returns the configuration of the requested grading period.
func (p *DistributionProfile) Period(period Period) PeriodDistribution {
	switch period {
	case PeriodFirst:
		return p.FirstPeriod
	case PeriodSecond:
		return p.SecondPeriod
	default:
		return p.ThirdPeriod
	}
}

// Weighted reports whether the profile combines periods with explicit weights.
func (p *DistributionProfile) Weighted() bool {
	return p.TwoPeriodsWeight+p.ThirdPeriodWeight > 0
}

// TotalPossible is the maximum final total a student can reach.
func (p *DistributionProfile) TotalPossible() float64 {
	if p.Weighted() && p.TotalGrade > 0 {
		return p.TotalGrade
	}
	return p.FirstPeriod.PeriodTotal + p.SecondPeriod.PeriodTotal + p.ThirdPeriod.PeriodTotal
}

// DistributionKey identifies the profile lookup target.
type DistributionKey struct {
	EducationLevel EducationLevel
	StudySystem    StudySystem
	Subject        string
}

// DistributionFilter scopes profile listings.
type DistributionFilter struct {
	EducationLevel EducationLevel
	StudySystem    StudySystem
}
