package grading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

func TestComputeFinalFlexibleScenario(t *testing.T) {
	out := ComputeFinal(FinalInput{
		First:    f(90.3),
		Second:   f(88.0),
		Third:    f(78),
		Required: models.AllPeriods,
	}, flexibleProfile())

	assert.Equal(t, 83.6, out.FinalTotal)
	assert.Equal(t, 100.0, out.TotalPossible)
	assert.Equal(t, 83.6, out.Percentage)
	assert.Equal(t, models.GradeVeryGood, out.LetterGrade)
	assert.Equal(t, models.ResultPassed, out.Status)
}

func TestComputeFinalLegacyClampsThirdPeriod(t *testing.T) {
	profile, err := DefaultLegacyTable().Lookup(context.Background(), models.DistributionKey{
		EducationLevel: models.LevelSecondYear,
		StudySystem:    models.StudySystemRegular,
		Subject:        "الرياضيات",
	})
	if !assert.NoError(t, err) {
		return
	}

	out := ComputeFinal(FinalInput{First: f(20), Second: f(22.5), Third: f(60), Required: models.AllPeriods}, profile)

	assert.Equal(t, 92.5, out.FinalTotal)
	assert.Equal(t, 100.0, out.TotalPossible)
	assert.Equal(t, models.GradeExcellent, out.LetterGrade)
	assert.Equal(t, models.ResultPassed, out.Status)
}

func TestComputeFinalIncompleteWhenRequiredPeriodMissing(t *testing.T) {
	out := ComputeFinal(FinalInput{First: f(90), Third: f(90), Required: models.AllPeriods}, flexibleProfile())

	assert.Equal(t, models.ResultIncomplete, out.Status)
	assert.Empty(t, out.LetterGrade)
}

func TestComputeFinalIncompleteWithoutRequiredPeriods(t *testing.T) {
	out := ComputeFinal(FinalInput{First: f(90), Second: f(90), Third: f(90)}, flexibleProfile())
	assert.Equal(t, models.ResultIncomplete, out.Status)
}

func TestComputeFinalDistanceStudentThirdPeriodOnly(t *testing.T) {
	profile := &models.DistributionProfile{
		EducationLevel:    models.LevelFirstYear,
		StudySystem:       models.StudySystemDistance,
		ThirdPeriod:       models.PeriodDistribution{PeriodExam: 100, PeriodTotal: 100},
		ThirdPeriodWeight: 100,
		TotalGrade:        100,
	}

	failed := ComputeFinal(FinalInput{Third: f(45), Required: []models.Period{models.PeriodThird}}, profile)
	assert.Equal(t, models.ResultFailed, failed.Status)
	assert.Equal(t, models.GradeFail, failed.LetterGrade)
	assert.Equal(t, 45.0, failed.Percentage)

	passed := ComputeFinal(FinalInput{Third: f(71), Required: []models.Period{models.PeriodThird}}, profile)
	assert.Equal(t, models.ResultPassed, passed.Status)
	assert.Equal(t, models.GradeGood, passed.LetterGrade)
}

func TestLetterForBoundaries(t *testing.T) {
	cases := map[float64]models.LetterGrade{
		100:  models.GradeExcellent,
		90:   models.GradeExcellent,
		89.9: models.GradeVeryGood,
		80:   models.GradeVeryGood,
		70:   models.GradeGood,
		60:   models.GradeAcceptable,
		50:   models.GradeWeak,
		49.9: models.GradeFail,
		0:    models.GradeFail,
	}
	for percentage, want := range cases {
		assert.Equal(t, want, LetterFor(percentage), "percentage %v", percentage)
	}
}

func TestComputeFinalTiersRoundedPercentage(t *testing.T) {
	profile := &models.DistributionProfile{ThirdPeriod: models.PeriodDistribution{PeriodExam: 100, PeriodTotal: 100}}
	required := []models.Period{models.PeriodThird}

	rounded := ComputeFinal(FinalInput{Third: f(49.95), Required: required}, profile)
	assert.Equal(t, 50.0, rounded.Percentage)
	assert.Equal(t, models.GradeWeak, rounded.LetterGrade)
	assert.Equal(t, models.ResultPassed, rounded.Status)

	below := ComputeFinal(FinalInput{Third: f(49.94), Required: required}, profile)
	assert.Equal(t, 49.9, below.Percentage)
	assert.Equal(t, models.GradeFail, below.LetterGrade)
	assert.Equal(t, models.ResultFailed, below.Status)
}

func TestComputeFinalIsDeterministic(t *testing.T) {
	in := FinalInput{First: f(61.2), Second: f(70.4), Third: f(55), Required: models.AllPeriods}
	want := ComputeFinal(in, flexibleProfile())
	for i := 0; i < 50; i++ {
		assert.Equal(t, want, ComputeFinal(in, flexibleProfile()))
	}
}
