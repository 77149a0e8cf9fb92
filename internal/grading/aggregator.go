package grading

import (
	"math"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

const (
	workWeight = 0.4
	examWeight = 0.6
)

// Aggregate is the derived part of a period record.
type Aggregate struct {
	WorkTotal   float64
	PeriodTotal *float64
}

// AggregatePeriod turns raw monthly grades and the exam score into the
// period's work total and period total.
//
// Only the first dist.MonthsCount monthly slots count. The work total is the
// mean of the months that were entered, capped at dist.MonthlyAverage; with no
// month entered it is 0. The period total stays nil until the exam score is
// known. Periods one and two weigh work and exam 40/60; the third period adds
// them.
func AggregatePeriod(months [3]*float64, exam *float64, dist models.PeriodDistribution, period models.Period) Aggregate {
	work := workTotal(months, dist)
	if exam == nil {
		return Aggregate{WorkTotal: Round1(work)}
	}

	var total float64
	if period == models.PeriodThird {
		total = work + *exam
	} else {
		total = work*workWeight + *exam*examWeight
	}
	return Aggregate{WorkTotal: Round1(work), PeriodTotal: roundPtr(&total)}
}

// PeriodMax is the highest period total AggregatePeriod can produce under
// dist, reached with every configured month and the exam at their maxima.
func PeriodMax(dist models.PeriodDistribution, period models.Period) float64 {
	var work float64
	if dist.MonthsCount > 0 {
		work = math.Min(dist.MonthlyAverage, dist.MonthlyGrade)
	}
	if period == models.PeriodThird {
		return Round1(work + dist.PeriodExam)
	}
	return Round1(work*workWeight + dist.PeriodExam*examWeight)
}

// AggregateRecord recomputes the derived fields of a record in place.
func AggregateRecord(record *models.SubjectGradeRecord, profile *models.DistributionProfile) {
	agg := AggregatePeriod(record.Months(), record.ExamScore, profile.Period(record.Period), record.Period)
	record.WorkTotal = agg.WorkTotal
	record.PeriodTotal = agg.PeriodTotal
	record.ProfileID = profile.ID
	record.ProfileVersion = profile.Version
}

func workTotal(months [3]*float64, dist models.PeriodDistribution) float64 {
	limit := dist.MonthsCount
	if limit > len(months) {
		limit = len(months)
	}
	var sum float64
	var count int
	for i := 0; i < limit; i++ {
		if months[i] == nil {
			continue
		}
		sum += *months[i]
		count++
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count)
	if mean > dist.MonthlyAverage {
		return dist.MonthlyAverage
	}
	return mean
}
