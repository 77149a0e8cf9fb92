package grading

import (
	"fmt"
	"math"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

// quantumTolerance accepts values whose tenths are integral up to float noise.
const quantumTolerance = 1e-6

// Rejection explains why a raw score was refused.
type Rejection struct {
	Value  float64         `json:"value"`
	Slot   models.SlotKind `json:"slot"`
	Max    float64         `json:"max"`
	Reason string          `json:"reason"`
}

func (r *Rejection) Error() string {
	return r.Reason
}

// SlotMax returns the configured maximum for a slot of the period.
func SlotMax(slot models.SlotKind, dist models.PeriodDistribution) float64 {
	if slot == models.SlotExam {
		return dist.PeriodExam
	}
	return dist.MonthlyGrade
}

// Validate checks a raw score against the maximum of its slot. It returns nil
// when the value is accepted and a *Rejection otherwise.
func Validate(value float64, slot models.SlotKind, dist models.PeriodDistribution) error {
	limit := SlotMax(slot, dist)
	reject := func(reason string) error {
		return &Rejection{Value: value, Slot: slot, Max: limit, Reason: reason}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return reject("grade is not a number")
	}
	if value < 0 {
		return reject(fmt.Sprintf("grade %v is negative", value))
	}
	if value > limit {
		return reject(fmt.Sprintf("grade %v exceeds the maximum of %v for %s", value, limit, slotName(slot)))
	}
	tenths := value * 10
	if math.Abs(tenths-math.Round(tenths)) > quantumTolerance {
		return reject(fmt.Sprintf("grade %v has more than one decimal place", value))
	}
	return nil
}

// ValidateEntry checks every supplied field of a period entry. Months beyond
// the period's configured count are refused. The returned slice is empty
// when all fields are acceptable.
func ValidateEntry(months [3]*float64, exam *float64, dist models.PeriodDistribution) []error {
	var errs []error
	for i, month := range months {
		if month == nil {
			continue
		}
		if i >= dist.MonthsCount {
			errs = append(errs, &Rejection{
				Value:  *month,
				Slot:   models.SlotMonthly,
				Max:    0,
				Reason: fmt.Sprintf("month %d is not configured for this period", i+1),
			})
			continue
		}
		if err := Validate(*month, models.SlotMonthly, dist); err != nil {
			errs = append(errs, err)
		}
	}
	if exam != nil {
		if err := Validate(*exam, models.SlotExam, dist); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func slotName(slot models.SlotKind) string {
	if slot == models.SlotExam {
		return "the period exam"
	}
	return "a monthly grade"
}
