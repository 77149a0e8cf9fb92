package grading

import "github.com/noah-isme/institute-grading-api/internal/models"

// ResolveEligibility classifies which periods accept grade entry for a
// student. It holds no state and must be re-run on every entry attempt since
// a student's study system or diploma flag may change between years.
func ResolveEligibility(ctx models.StudentAcademicContext) models.Eligibility {
	distance := ctx.StudySystem.IsDistance()

	switch {
	case distance && ctx.DiplomaTrack:
		return models.Eligibility{
			CanEnterGrades:   false,
			AvailablePeriods: []models.Period{},
			Notes:            []string{"diploma-track distance students are graded by the ministerial evaluation"},
		}
	case distance && !ctx.EducationLevel.IsFinal():
		return models.Eligibility{
			CanEnterGrades:   true,
			AvailablePeriods: []models.Period{models.PeriodThird},
			Notes:            []string{"distance students below the final year are graded on the third period only"},
		}
	default:
		return models.Eligibility{
			CanEnterGrades:   true,
			AvailablePeriods: append([]models.Period(nil), models.AllPeriods...),
		}
	}
}
