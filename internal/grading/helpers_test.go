package grading

import "github.com/noah-isme/institute-grading-api/internal/models"

func f(v float64) *float64 { return &v }

func flexibleProfile() *models.DistributionProfile {
	return &models.DistributionProfile{
		ID:                "flex",
		EducationLevel:    models.LevelFirstYear,
		StudySystem:       models.StudySystemRegular,
		Source:            models.ProfileSourceFlexible,
		Version:           1,
		FirstPeriod:       models.PeriodDistribution{MonthsCount: 3, MonthlyGrade: 100, MonthlyAverage: 90, PeriodExam: 100, PeriodTotal: 100},
		SecondPeriod:      models.PeriodDistribution{MonthsCount: 3, MonthlyGrade: 100, MonthlyAverage: 90, PeriodExam: 100, PeriodTotal: 100},
		ThirdPeriod:       models.PeriodDistribution{MonthsCount: 0, PeriodExam: 100, PeriodTotal: 100},
		TwoPeriodsWeight:  50,
		ThirdPeriodWeight: 50,
		TotalGrade:        100,
	}
}
