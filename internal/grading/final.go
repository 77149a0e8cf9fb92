package grading

import "github.com/noah-isme/institute-grading-api/internal/models"

// letterThresholds maps inclusive lower percentage bounds to tiers, highest first.
var letterThresholds = []struct {
	min   float64
	grade models.LetterGrade
}{
	{90, models.GradeExcellent},
	{80, models.GradeVeryGood},
	{70, models.GradeGood},
	{60, models.GradeAcceptable},
	{50, models.GradeWeak},
}

// FinalInput carries the period totals of one subject for one academic year.
// Third is the third period's total, which equals its exam score when the
// period has no configured months. Required lists the periods the student's
// eligibility makes mandatory.
type FinalInput struct {
	First    *float64
	Second   *float64
	Third    *float64
	Required []models.Period
}

// Outcome is the result of combining period totals.
type Outcome struct {
	FinalTotal    float64
	TotalPossible float64
	Percentage    float64
	LetterGrade   models.LetterGrade
	Status        models.ResultStatus
}

// LetterFor maps a percentage to its letter tier.
func LetterFor(percentage float64) models.LetterGrade {
	for _, t := range letterThresholds {
		if percentage >= t.min {
			return t.grade
		}
	}
	return models.GradeFail
}

// ComputeFinal combines period totals into the final outcome. The third value
// is clamped to the profile's third period ceiling. While a required period
// has no total the status is INCOMPLETE and no letter grade is assigned; the
// partial total is still reported.
func ComputeFinal(in FinalInput, profile *models.DistributionProfile) Outcome {
	first := valueOr(in.First)
	second := valueOr(in.Second)
	third := valueOr(in.Third)
	if ceiling := profile.ThirdPeriod.PeriodTotal; third > ceiling {
		third = ceiling
	}

	var final float64
	if profile.Weighted() {
		twoMax := profile.FirstPeriod.PeriodTotal + profile.SecondPeriod.PeriodTotal
		final = scale(first+second, twoMax, profile.TwoPeriodsWeight) +
			scale(third, profile.ThirdPeriod.PeriodTotal, profile.ThirdPeriodWeight)
	} else {
		final = first + second + third
	}

	out := Outcome{
		FinalTotal:    Round1(final),
		TotalPossible: profile.TotalPossible(),
	}
	// The tier is read from the reported one-decimal percentage, so a raw
	// 49.95% reports as 50.0 and passes.
	if out.TotalPossible > 0 {
		out.Percentage = Round1(final / out.TotalPossible * 100)
	}

	if !complete(in) {
		out.Status = models.ResultIncomplete
		return out
	}
	out.LetterGrade = LetterFor(out.Percentage)
	if out.LetterGrade.Passing() {
		out.Status = models.ResultPassed
	} else {
		out.Status = models.ResultFailed
	}
	return out
}

func complete(in FinalInput) bool {
	if len(in.Required) == 0 {
		return false
	}
	for _, period := range in.Required {
		var total *float64
		switch period {
		case models.PeriodFirst:
			total = in.First
		case models.PeriodSecond:
			total = in.Second
		case models.PeriodThird:
			total = in.Third
		}
		if total == nil {
			return false
		}
	}
	return true
}

func scale(value, ceiling, weight float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return value / ceiling * weight
}

func valueOr(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
